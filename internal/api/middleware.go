package api

import (
	"crypto/subtle"
	"net/http"
)

// apiKeyMiddleware gates the client API behind the static x-api-key.
// An empty configured key disables the check (local development).
func apiKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				got := r.Header.Get("x-api-key")
				if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
					writeError(w, http.StatusUnauthorized, "invalid or missing x-api-key")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
