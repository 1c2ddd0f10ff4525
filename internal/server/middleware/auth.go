package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth checks the API key on every path not listed in public. The key may
// arrive as a Bearer token or an X-API-Key header; WebSocket upgrades may
// also pass it as ?token= since browsers cannot set headers on them. An
// empty key disables auth.
func Auth(key string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range public {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			got := presentedKey(r)
			switch {
			case got == "":
				reject(w, http.StatusUnauthorized, "api key required")
			case subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1:
				reject(w, http.StatusUnauthorized, "api key rejected")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	if v := r.Header.Get("X-API-Key"); v != "" {
		return strings.TrimSpace(v)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
