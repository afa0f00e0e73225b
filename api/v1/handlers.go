package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/journal"
	"github.com/veikko/mapstore/internal/storage"
)

// Countries serves the country-package API on top of the storage engine.
type Countries struct {
	l *slog.Logger
	s *storage.Storage
	j journal.Journal
}

func NewCountries(l *slog.Logger, s *storage.Storage, j journal.Journal) *Countries {
	return &Countries{l: l, s: s, j: j}
}

type downloadBody struct {
	Files string `json:"files"`
}

// countryView is the wire form of one country's derived state.
type countryView struct {
	ID         string      `json:"id"`
	Status     data.Status `json:"status"`
	LocalSize  int64       `json:"localSize"`
	RemoteSize int64       `json:"remoteSize"`
	Files      string      `json:"files,omitempty"`
	Version    int64       `json:"version,omitempty"`
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets handlers that upgrade the connection (the websocket event
// stream) take over the underlying net.Conn.
func (w *rwLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *rwLogger) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// context keys
type ctxKeyDownload struct{}

func (c *Countries) view(id data.CountryID) countryView {
	v := countryView{ID: string(id), Status: c.s.Status(id)}
	v.LocalSize, v.RemoteSize = c.s.Sizes(id, data.MapOptionMapWithCarRouting)
	if lf := c.s.LatestLocalFile(id); lf != nil {
		v.Files = lf.Files().String()
		v.Version = lf.Version()
	}
	return v
}

func (c *Countries) GetCountries(w http.ResponseWriter, r *http.Request) {
	ids := c.s.CountryIDs()
	out := make([]countryView, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.view(id))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		markErr(w, err)
	}
}

func (c *Countries) GetCountry(w http.ResponseWriter, r *http.Request) {
	id := data.CountryID(mux.Vars(r)["id"])
	if _, err := c.s.CountryFileByID(id); err != nil {
		markErr(w, err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.view(id)); err != nil {
		markErr(w, err)
	}
}

func (c *Countries) DownloadCountry(w http.ResponseWriter, r *http.Request) {
	id := data.CountryID(mux.Vars(r)["id"])
	v := r.Context().Value(ctxKeyDownload{})
	body, ok := v.(downloadBody)
	if !ok {
		markErr(w, ErrDownloadCtx)
		http.Error(w, ErrDownloadCtx.Error(), http.StatusInternalServerError)
		return
	}

	files, err := data.ParseMapOptions(body.Files)
	if err != nil {
		markErr(w, err)
		http.Error(w, "Invalid files (allowed: map|routing|map+routing)", http.StatusBadRequest)
		return
	}
	if err := c.s.DownloadCountry(id, files); err != nil {
		markErr(w, err)
		if errors.Is(err, data.ErrCountryNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to request download", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(c.view(id)); err != nil {
		markErr(w, err)
	}
}

func (c *Countries) DeleteCountry(w http.ResponseWriter, r *http.Request) {
	id := data.CountryID(mux.Vars(r)["id"])
	files, err := data.ParseMapOptions(r.URL.Query().Get("files"))
	if err != nil {
		markErr(w, err)
		http.Error(w, "Invalid files (allowed: map|routing|map+routing)", http.StatusBadRequest)
		return
	}
	if err := c.s.DeleteCountry(id, files); err != nil {
		markErr(w, err)
		if errors.Is(err, data.ErrCountryNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.view(id)); err != nil {
		markErr(w, err)
	}
}

func (c *Countries) DeleteFromQueue(w http.ResponseWriter, r *http.Request) {
	id := data.CountryID(mux.Vars(r)["id"])
	if err := c.s.DeleteFromDownloader(id); err != nil {
		markErr(w, err)
		if errors.Is(err, data.ErrNotInQueue) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to cancel", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Countries) GetJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			markErr(w, ErrBadLimit)
			http.Error(w, ErrBadLimit.Error(), http.StatusBadRequest)
			return
		}
		limit = n
	}
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()
	entries, err := c.j.Recent(ctx, limit)
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		markErr(w, err)
	}
}
