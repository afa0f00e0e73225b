package journal

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/google/uuid"
	"github.com/veikko/mapstore/internal/data"
)

// Postgres implements Journal backed by PostgreSQL. It expects a table
// `transfers` with a unique index on `fingerprint`; the schema is ensured on
// connect.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a journal using the provided DSN.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	j := &Postgres{db: db}
	if err := j.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// NewPostgresFromEnv constructs a DSN using component env vars.
// Recognized envs (with defaults):
//
//	POSTGRES_HOST (postgres), POSTGRES_PORT (5432), POSTGRES_DB (mapstore),
//	POSTGRES_USER (mapstore), POSTGRES_PASSWORD (empty), POSTGRES_SSLMODE (disable)
//
// Credentials and db name are URL-encoded to handle special characters safely.
func NewPostgresFromEnv() (*Postgres, error) {
	host := getenv("POSTGRES_HOST", "postgres")
	port := getenv("POSTGRES_PORT", "5432")
	db := getenv("POSTGRES_DB", "mapstore")
	user := getenv("POSTGRES_USER", "mapstore")
	pass := getenv("POSTGRES_PASSWORD", "")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return NewPostgres(u.String())
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (j *Postgres) Close() error { return j.db.Close() }

var _ Journal = (*Postgres)(nil)

func (j *Postgres) ensureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS transfers (
    id UUID PRIMARY KEY,
    country TEXT NOT NULL,
    files TEXT NOT NULL,
    version BIGINT NOT NULL,
    bytes BIGINT NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    fingerprint TEXT NOT NULL UNIQUE,
    finished_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

func (j *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO transfers (id, country, files, version, bytes, outcome, fingerprint, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (fingerprint) DO NOTHING;
`, uuid.NewString(), e.Country, e.Files.String(), e.Version, e.Bytes, string(e.Outcome), e.Fingerprint, e.FinishedAt)
	return err
}

func (j *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT country, files, version, bytes, outcome, fingerprint, finished_at
FROM transfers ORDER BY finished_at DESC LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var files, outcome string
		if err := rows.Scan(&e.Country, &files, &e.Version, &e.Bytes, &outcome, &e.Fingerprint, &e.FinishedAt); err != nil {
			return nil, err
		}
		if opt, perr := data.ParseMapOptions(files); perr == nil {
			e.Files = opt
		}
		e.FilesLabel = files
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
