package httpdl

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/localfile"
)

const testVersion = 1504

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapServer serves component files from an in-memory map keyed by
// "{version}/{file}", honoring Range requests.
func mapServer(files map[string][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		body, ok := files[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			var off int64
			if _, err := fmt.Sscanf(rng, "bytes=%d-", &off); err == nil && off > 0 && off < int64(len(body)) {
				w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", off, len(body)-1, len(body)))
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write(body[off:])
				return
			}
		}
		_, _ = w.Write(body)
	}))
}

func collectEvents(t *testing.T, ch <-chan downloader.Event) []downloader.Event {
	t.Helper()
	var got []downloader.Event
	for {
		select {
		case e := <-ch:
			got = append(got, e)
			if e.Type == downloader.EventComplete || e.Type == downloader.EventFailed {
				return got
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for terminal event, got %d events", len(got))
		}
	}
}

func newJob(root string, cf data.CountryFile, files data.MapOptions) downloader.Job {
	return downloader.Job{
		ID:      data.CountryID(cf.Name()),
		Attempt: uuid.NewString(),
		Country: cf,
		Files:   files,
		Version: testVersion,
		Root:    root,
	}
}

func TestDownloadBothComponents(t *testing.T) {
	mapBody := []byte(strings.Repeat("m", 200*1024))
	routingBody := []byte(strings.Repeat("r", 50*1024))
	srv := mapServer(map[string][]byte{
		strconv.Itoa(testVersion) + "/Uruguay.mwm":         mapBody,
		strconv.Itoa(testVersion) + "/Uruguay.mwm.routing": routingBody,
	})
	defer srv.Close()

	root := t.TempDir()
	cf := data.NewCountryFile("Uruguay", int64(len(mapBody)), int64(len(routingBody)))
	ch := make(chan downloader.Event, 64)
	dl, err := New(srv.URL, downloader.NewChanReporter(ch), WithClient(srv.Client()), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := localfile.PreparePlace(root, cf, testVersion); err != nil {
		t.Fatalf("PreparePlace: %v", err)
	}
	job := newJob(root, cf, data.MapOptionMapWithCarRouting)
	dl.Start(job)

	events := collectEvents(t, ch)
	last := events[len(events)-1]
	if last.Type != downloader.EventComplete {
		t.Fatalf("terminal event = %v, want complete", last.Type)
	}

	var componentDone []downloader.Event
	var progressTotal int64
	for _, e := range events {
		if e.Attempt != job.Attempt {
			t.Fatalf("event carries attempt %q, want %q", e.Attempt, job.Attempt)
		}
		switch e.Type {
		case downloader.EventComponentDone:
			componentDone = append(componentDone, e)
		case downloader.EventProgress:
			if e.Progress.Done <= progressTotal {
				t.Fatalf("progress went backwards: %d after %d", e.Progress.Done, progressTotal)
			}
			progressTotal = e.Progress.Done
		}
	}
	if len(componentDone) != 2 {
		t.Fatalf("got %d component-done events, want 2", len(componentDone))
	}
	if componentDone[0].Files != data.MapOptionMap || componentDone[1].Files != data.MapOptionCarRouting {
		t.Fatalf("component order = %v, %v", componentDone[0].Files, componentDone[1].Files)
	}

	got, err := os.ReadFile(localfile.ComponentPath(root, "Uruguay", data.MapOptionMap, testVersion))
	if err != nil {
		t.Fatalf("read map component: %v", err)
	}
	if len(got) != len(mapBody) {
		t.Fatalf("map component size = %d, want %d", len(got), len(mapBody))
	}
	if _, err := os.Stat(localfile.ResumePath(root, "Uruguay", data.MapOptionMap, testVersion)); !os.IsNotExist(err) {
		t.Fatalf("resume sidecar survived a successful fetch")
	}
}

func TestResumeFromSidecar(t *testing.T) {
	body := []byte(strings.Repeat("x", 100*1024))
	rangeSeen := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng != "" {
			rangeSeen = true
			var off int64
			_, _ = fmt.Sscanf(rng, "bytes=%d-", &off)
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(body[off:])
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	root := t.TempDir()
	cf := data.NewCountryFile("Algeria", int64(len(body)), 0)
	if _, err := localfile.PreparePlace(root, cf, testVersion); err != nil {
		t.Fatalf("PreparePlace: %v", err)
	}

	// An earlier attempt left half the payload behind.
	half := int64(len(body) / 2)
	part := localfile.DownloadPath(root, "Algeria", data.MapOptionMap, testVersion)
	if err := os.WriteFile(part, body[:half], 0o644); err != nil {
		t.Fatalf("seed payload: %v", err)
	}
	sidecar := fmt.Sprintf(`{"offset":%d}`, half)
	if err := os.WriteFile(localfile.ResumePath(root, "Algeria", data.MapOptionMap, testVersion), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("seed sidecar: %v", err)
	}

	ch := make(chan downloader.Event, 64)
	dl, err := New(srv.URL, downloader.NewChanReporter(ch), WithClient(srv.Client()), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dl.Start(newJob(root, cf, data.MapOptionMap))

	events := collectEvents(t, ch)
	if events[len(events)-1].Type != downloader.EventComplete {
		t.Fatalf("terminal event = %v, want complete", events[len(events)-1].Type)
	}
	if !rangeSeen {
		t.Fatalf("downloader never sent a Range request")
	}
	got, err := os.ReadFile(localfile.ComponentPath(root, "Algeria", data.MapOptionMap, testVersion))
	if err != nil {
		t.Fatalf("read component: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("resumed component content mismatch")
	}
}

func TestFailureAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := t.TempDir()
	cf := data.NewCountryFile("Azerbaijan", 4096, 0)
	if _, err := localfile.PreparePlace(root, cf, testVersion); err != nil {
		t.Fatalf("PreparePlace: %v", err)
	}

	ch := make(chan downloader.Event, 16)
	dl, err := New(srv.URL, downloader.NewChanReporter(ch), WithClient(srv.Client()), WithRetries(1), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dl.Start(newJob(root, cf, data.MapOptionMap))

	events := collectEvents(t, ch)
	if len(events) != 1 || events[0].Type != downloader.EventFailed {
		t.Fatalf("events = %+v, want a single failed event", events)
	}
	if _, err := os.Stat(localfile.ComponentPath(root, "Azerbaijan", data.MapOptionMap, testVersion)); !os.IsNotExist(err) {
		t.Fatalf("final component exists after a failed attempt")
	}
}

func TestProgressStaysWithinTargetAcrossRetries(t *testing.T) {
	body := []byte(strings.Repeat("x", 3*copyBufSize))
	srv := mapServer(map[string][]byte{
		strconv.Itoa(testVersion) + "/Algeria.mwm": body,
	})
	defer srv.Close()

	root := t.TempDir()
	cf := data.NewCountryFile("Algeria", int64(len(body)), 0)
	if _, err := localfile.PreparePlace(root, cf, testVersion); err != nil {
		t.Fatalf("PreparePlace: %v", err)
	}
	// A directory at the final path makes every rename fail, so each retry
	// restarts from locally buffered bytes.
	final := localfile.ComponentPath(root, "Algeria", data.MapOptionMap, testVersion)
	if err := os.Mkdir(final, 0o755); err != nil {
		t.Fatalf("mkdir final: %v", err)
	}

	ch := make(chan downloader.Event, 64)
	dl, err := New(srv.URL, downloader.NewChanReporter(ch), WithClient(srv.Client()), WithRetries(2), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dl.Start(newJob(root, cf, data.MapOptionMap))

	events := collectEvents(t, ch)
	if last := events[len(events)-1]; last.Type != downloader.EventFailed {
		t.Fatalf("terminal event = %v, want failed", last.Type)
	}
	for _, e := range events {
		if e.Type != downloader.EventProgress {
			continue
		}
		if e.Progress.Done > e.Progress.Total {
			t.Fatalf("progress %d exceeds target %d", e.Progress.Done, e.Progress.Total)
		}
	}
}

func TestCancelStopsEvents(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", copyBufSize)))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
		_, _ = w.Write([]byte(strings.Repeat("b", copyBufSize)))
	}))
	defer srv.Close()
	defer close(release)

	root := t.TempDir()
	cf := data.NewCountryFile("Venezuela", 2*copyBufSize, 0)
	if _, err := localfile.PreparePlace(root, cf, testVersion); err != nil {
		t.Fatalf("PreparePlace: %v", err)
	}

	ch := make(chan downloader.Event, 16)
	dl, err := New(srv.URL, downloader.NewChanReporter(ch), WithClient(srv.Client()), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dl.Start(newJob(root, cf, data.MapOptionMap))

	select {
	case e := <-ch:
		if e.Type != downloader.EventProgress {
			t.Fatalf("first event = %v, want progress", e.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first progress event")
	}

	dl.Cancel(data.CountryID("Venezuela"))

	// Progress events read before the cancel landed may still sit in the
	// channel; only terminal or component events would be a bug.
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case e := <-ch:
			if e.Type != downloader.EventProgress {
				t.Fatalf("unexpected event after cancel: %+v", e)
			}
		case <-deadline:
			return
		}
	}
}
