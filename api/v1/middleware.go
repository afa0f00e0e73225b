package v1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// MiddlewareDownloadValidation decodes and validates the download request
// body before the handler runs. An empty body is allowed and means the full
// component set.
func MiddlewareDownloadValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body downloadBody
		err := decodeJSONStrict(w, r, &body, 1<<20, "application/json")
		switch {
		case errors.Is(err, ErrContentType):
			markErr(w, err)
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		case errors.Is(err, io.EOF):
			body = downloadBody{}
		case err != nil:
			markErr(w, err)
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyDownload{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Log wraps every request with an access-log record carrying status, size
// and duration.
func (c *Countries) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		timeElapsed := time.Since(startTime)
		if rw.err != nil {
			c.l.Error(rw.err.Error(),
				"method", r.Method,
				"url", r.URL.Path,
				"status", rw.status,
				"remote", r.RemoteAddr,
				"ua", r.UserAgent(),
				"dur_ms", timeElapsed.Milliseconds(),
				"bytes", rw.bytes)
			return
		}

		c.l.Info("", "method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"dur_ms", timeElapsed.Milliseconds(),
			"bytes", rw.bytes)
	})
}
