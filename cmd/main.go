package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/downloader/httpdl"
	"github.com/veikko/mapstore/internal/journal"
	"github.com/veikko/mapstore/internal/metrics"
	"github.com/veikko/mapstore/internal/router"
	"github.com/veikko/mapstore/internal/storage"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger() *slog.Logger {
	var out io.Writer = os.Stdout
	if file := os.Getenv("MAPSTORE_LOG_FILE"); file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return slog.New(slog.NewJSONHandler(out, nil))
}

func main() {
	logger := newLogger()
	slog.SetDefault(logger)
	metrics.Register()

	catalogPath := env("MAPSTORE_CATALOG", "countries.json")
	f, err := os.Open(catalogPath)
	if err != nil {
		logger.Error("open catalog", "path", catalogPath, "err", err)
		os.Exit(1)
	}
	catalog, err := data.LoadCatalog(f)
	_ = f.Close()
	if err != nil {
		logger.Error("load catalog", "path", catalogPath, "err", err)
		os.Exit(1)
	}

	version, err := strconv.ParseInt(env("MAPSTORE_DATA_VERSION", "250901"), 10, 64)
	if err != nil {
		logger.Error("parse data version", "err", err)
		os.Exit(1)
	}

	var j journal.Journal
	if os.Getenv("POSTGRES_HOST") != "" {
		pg, err := journal.NewPostgresFromEnv()
		if err != nil {
			logger.Error("connect postgres journal", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		j = pg
	} else {
		j = journal.NewInMemory(0)
	}

	events := make(chan downloader.Event, 64)
	s := storage.New(logger, catalog, storage.Config{
		Root:        env("MAPSTORE_DATA_DIR", "./maps"),
		DataVersion: version,
	}, events, storage.WithJournal(j))

	dl, err := httpdl.New(env("MAPSTORE_MIRROR_URL", "http://localhost:8080/maps"),
		downloader.NewChanReporter(events), httpdl.WithLogger(logger))
	if err != nil {
		logger.Error("create downloader", "err", err)
		os.Exit(1)
	}
	s.SetDownloader(dl)

	var ready atomic.Bool
	handler := router.New(logger, s, j, router.ReadyFunc(ready.Load))

	s.Run()
	s.RegisterAllLocalMaps()
	ready.Store(true)

	server := &http.Server{
		Addr:         env("MAPSTORE_ADDR", ":9090"),
		Handler:      handler,
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting mapstore API", "addr", server.Addr, "dataVersion", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received terminate, graceful shutdown", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	s.Stop()
}
