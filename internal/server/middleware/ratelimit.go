package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// RateLimit caps each client address at limit requests per window. The
// request goes through when the limiter itself fails.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	retry := strconv.Itoa(int(math.Ceil(window.Seconds() / float64(max(limit, 1)))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			ok, err := limiter.Allow(r.Context(), "api:"+remoteIP(r), limit, window)
			if err != nil || ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retry)
			reject(w, http.StatusTooManyRequests, "too many requests")
		})
	}
}

// remoteIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func remoteIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
