package auth

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
)

// Middleware enforces a static bearer token taken from MAPSTORE_API_TOKEN.
// Health and metrics endpoints stay open so probes and scrapers work without
// credentials.
func Middleware(next http.Handler) http.Handler {
	token := os.Getenv("MAPSTORE_API_TOKEN")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		// Expect: Authorization: Bearer <token>
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			http.Error(w, "missing API token", http.StatusUnauthorized)
			return
		}

		got := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "invalid API token", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
