package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client IP.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

// RateLimitBySubject limits requests per authenticated caller and falls back
// to the client IP. It must run after RequireAuth.
func RateLimitBySubject(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(keyBySubject),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

func keyBySubject(r *http.Request) (string, error) {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "sub:" + p.Subject, nil
	}
	return httprate.KeyByIP(r)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded",
		"code":  "rate_limit",
	})
}
