// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// isLocalhostOrigin returns true if the origin is http(s)://localhost with an optional port.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost"} {
		rest, ok := strings.CutPrefix(origin, prefix)
		if ok && (rest == "" || strings.HasPrefix(rest, ":")) {
			return true
		}
	}
	return false
}

// originAllowed builds the origin check from the configured whitelist.
// A "*" entry allows every origin and is reported as wildcard.
func originAllowed(origins []string) (check func(r *http.Request, origin string) bool, wildcard bool) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	check = func(_ *http.Request, origin string) bool {
		if origin == "" {
			return false
		}
		if wildcard || isLocalhostOrigin(origin) {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
	return check, wildcard
}

// CORS returns middleware answering preflights and setting CORS headers for
// the given origins. Localhost origins on any port are always permitted.
// Credentials are only allowed for an explicit origin list.
func CORS(origins []string) func(http.Handler) http.Handler {
	check, wildcard := originAllowed(origins)
	return cors.Handler(cors.Options{
		AllowOriginFunc:  check,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           86400,
	})
}

// SecurityHeaders returns middleware that sets headers suited to a JSON API.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
