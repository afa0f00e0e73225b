package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/journal"
	"github.com/veikko/mapstore/internal/metrics"
	"github.com/veikko/mapstore/internal/storage"
)

func newTestRouter(t *testing.T, ready bool) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := data.NewCatalog([]data.CountryFile{data.NewCountryFile("Uruguay", 100, 10)})
	s := storage.New(logger, catalog, storage.Config{Root: t.TempDir(), DataVersion: 1504}, nil)
	return New(logger, s, journal.NewInMemory(4), ReadyFunc(func() bool { return ready }))
}

func TestMetricsEndpointEmitsFamilies(t *testing.T) {
	metrics.Register()
	metrics.DownloadEvents.WithLabelValues("progress").Inc()
	metrics.StatusNotifications.Inc()
	metrics.QueueDepth.Set(2)

	r := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "mapstore_download_events_total") {
		t.Fatalf("missing download_events_total in metrics: %s", body)
	}
	if !strings.Contains(body, "mapstore_status_notifications_total") {
		t.Fatalf("missing status_notifications_total in metrics: %s", body)
	}
	if !strings.Contains(body, "mapstore_queue_depth") {
		t.Fatalf("missing queue_depth gauge in metrics: %s", body)
	}
}

func TestReadyz(t *testing.T) {
	r := newTestRouter(t, false)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while not ready, got %d", w.Code)
	}

	r = newTestRouter(t, true)
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", w.Code)
	}
}
