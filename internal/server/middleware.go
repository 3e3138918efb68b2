package server

import "net/http"

// apiKeyMiddleware gates every center endpoint behind the static shared
// key. The key is compared for exact equality against the Authorization
// header; a missing or wrong key is rejected before any store access.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != apiKey {
				writeError(w, http.StatusUnauthorized, "invalid or missing api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
