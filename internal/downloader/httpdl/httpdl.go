// Package httpdl implements the Downloader capability over plain HTTP.
// Component files are fetched into a ".downloading" payload next to their
// final path, with a ".resume" sidecar carrying resumable-transfer metadata.
// Both survive a failed attempt; on success the payload is atomically renamed
// into place and the sidecar removed.
package httpdl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/localfile"
	"github.com/veikko/mapstore/internal/metrics"
)

const (
	defaultRetries = 2
	copyBufSize    = 64 * 1024
)

// Option customizes the downloader.
type Option func(*Downloader)

// WithRetries sets how many times a failed component fetch is retried before
// the attempt is reported as failed.
func WithRetries(n int) Option {
	return func(d *Downloader) { d.retries = n }
}

// WithClient swaps the HTTP client (tests use httptest servers with short
// timeouts).
func WithClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithLogger wires a shared application logger into the downloader.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.log = l
		}
	}
}

// Downloader fetches component files from a map-data server laid out as
// {base}/{version}/{file}. It services one job at a time, matching the
// engine's single-active-transfer contract.
type Downloader struct {
	base    *url.URL
	client  *http.Client
	rep     downloader.Reporter
	log     *slog.Logger
	retries int

	mu       sync.Mutex
	activeID data.CountryID
	cancel   context.CancelFunc
}

// New creates a downloader fetching from baseURL.
func New(baseURL string, rep downloader.Reporter, opts ...Option) (*Downloader, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	d := &Downloader{
		base:    u,
		client:  &http.Client{Timeout: 10 * time.Minute},
		rep:     rep,
		log:     slog.Default(),
		retries: defaultRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

var _ downloader.Downloader = (*Downloader)(nil)

func (d *Downloader) Start(job downloader.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.activeID = job.ID
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(ctx, job)
}

func (d *Downloader) Cancel(id data.CountryID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeID == id && d.cancel != nil {
		d.cancel()
		d.activeID = ""
		d.cancel = nil
	}
}

func (d *Downloader) run(ctx context.Context, job downloader.Job) {
	var total int64
	comps := job.Files.Components()
	for _, c := range comps {
		total += job.Country.RemoteSize(c)
	}

	var done int64
	for _, c := range comps {
		size := job.Country.RemoteSize(c)
		if size <= 0 {
			continue
		}
		var err error
		for attempt := 0; attempt <= d.retries; attempt++ {
			err = d.fetchComponent(ctx, job, c, &done, total)
			if err == nil || ctx.Err() != nil {
				break
			}
			d.log.Warn("component fetch failed", "country", job.ID, "component", c.String(), "attempt", attempt, "err", err)
		}
		if ctx.Err() != nil {
			// Cancelled: buffered bytes stay in the payload file but are
			// never reported or committed.
			return
		}
		if err != nil {
			d.report(downloader.Event{ID: job.ID, Attempt: job.Attempt, Type: downloader.EventFailed})
			return
		}
		d.report(downloader.Event{
			ID:      job.ID,
			Attempt: job.Attempt,
			Type:    downloader.EventComponentDone,
			Files:   c,
			Size:    size,
		})
	}
	if ctx.Err() != nil {
		return
	}
	d.report(downloader.Event{ID: job.ID, Attempt: job.Attempt, Type: downloader.EventComplete})
}

func (d *Downloader) fetchComponent(ctx context.Context, job downloader.Job, comp data.MapOptions, done *int64, total int64) error {
	started := time.Now()
	name := job.Country.Name()
	final := localfile.ComponentPath(job.Root, name, comp, job.Version)
	part := localfile.DownloadPath(job.Root, name, comp, job.Version)
	resumePath := localfile.ResumePath(job.Root, name, comp, job.Version)

	offset, etag := resumeOffset(part, resumePath)
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek payload: %w", err)
	}

	resp, err := d.request(ctx, job.Version, name+componentSuffix(comp), offset, etag)
	if err != nil {
		d.persistResume(resumePath, offset, etag)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if e := resp.Header.Get("ETag"); e != "" {
		etag = e
	}

	if resp.StatusCode == http.StatusOK && offset > 0 {
		// Server ignored the range request; start the component over.
		offset = 0
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind payload: %w", err)
		}
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("truncate payload: %w", err)
		}
	}

	written := offset
	*done += offset
	buf := make([]byte, copyBufSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				d.persistResume(resumePath, written, etag)
				*done -= written
				return fmt.Errorf("write payload: %w", werr)
			}
			written += int64(n)
			*done += int64(n)
			if ctx.Err() == nil {
				d.report(downloader.Event{
					ID:       job.ID,
					Attempt:  job.Attempt,
					Type:     downloader.EventProgress,
					Progress: &downloader.Progress{Done: *done, Total: total},
				})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			d.persistResume(resumePath, written, etag)
			*done -= written
			return fmt.Errorf("read body: %w", rerr)
		}
	}

	if err := f.Sync(); err != nil {
		d.persistResume(resumePath, written, etag)
		*done -= written
		return fmt.Errorf("sync payload: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := os.Rename(part, final); err != nil {
		d.persistResume(resumePath, written, etag)
		*done -= written
		return fmt.Errorf("finalize component: %w", err)
	}
	_ = os.Remove(resumePath)
	metrics.ComponentFetchDuration.WithLabelValues(comp.String()).Observe(time.Since(started).Seconds())
	return nil
}

func (d *Downloader) request(ctx context.Context, version int64, file string, offset int64, etag string) (*http.Response, error) {
	u := *d.base
	u.Path, _ = url.JoinPath(u.Path, fmt.Sprintf("%d", version), file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		if etag != "" {
			req.Header.Set("If-Range", etag)
		}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", file, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", file, resp.StatusCode)
	}
	return resp, nil
}

func (d *Downloader) report(e downloader.Event) {
	if d.rep != nil {
		d.rep.Report(e)
	}
}

func componentSuffix(comp data.MapOptions) string {
	if comp == data.MapOptionCarRouting {
		return localfile.RoutingExt
	}
	return localfile.MapExt
}
