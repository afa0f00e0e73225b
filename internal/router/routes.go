package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/veikko/mapstore/api/v1"
	"github.com/veikko/mapstore/internal/auth"
	"github.com/veikko/mapstore/internal/journal"
	"github.com/veikko/mapstore/internal/storage"
)

// Ready reports whether the service finished startup (local maps registered
// and the event loop running).
type Ready interface {
	Ready() bool
}

// ReadyFunc adapts a closure to the Ready interface.
type ReadyFunc func() bool

func (f ReadyFunc) Ready() bool { return f() }

// New sets up the application routes and required middleware.
func New(logger *slog.Logger, s *storage.Storage, j journal.Journal, ready Ready) *mux.Router {

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")
	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write readyz response", "err", err)
		}
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	countries := v1.NewCountries(logger, s, j)

	r.Use(v1.RequestID)
	r.Use(countries.Log)
	r.Use(auth.Middleware)

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/countries", countries.GetCountries)
	get.HandleFunc("/countries/{id}", countries.GetCountry)
	get.HandleFunc("/journal", countries.GetJournal)
	get.HandleFunc("/events", countries.StreamEvents)

	// POSTs
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/countries/{id}/download", countries.DownloadCountry)
	post.Use(v1.MiddlewareDownloadValidation)

	// DELETEs
	del := api.Methods("DELETE").Subrouter()
	del.HandleFunc("/countries/{id}", countries.DeleteCountry)
	del.HandleFunc("/countries/{id}/queue", countries.DeleteFromQueue)

	return r
}
