package middleware

import (
	"net/http"
	"strings"
)

const (
	corsMethods = "GET, PUT, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-API-Key"
)

// CORS admits browser dashboards served from origins. An empty list or a
// "*" entry admits any origin. OPTIONS requests are answered here.
func CORS(origins []string) func(http.Handler) http.Handler {
	anyOrigin := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[strings.ToLower(origin)]; ok || anyOrigin {
					h.Set("Access-Control-Allow-Origin", origin)
					if r.Method == http.MethodOptions {
						h.Set("Access-Control-Allow-Methods", corsMethods)
						h.Set("Access-Control-Allow-Headers", corsHeaders)
						h.Set("Access-Control-Max-Age", "600")
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
