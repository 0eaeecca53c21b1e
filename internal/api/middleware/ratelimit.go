package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/bjjsocial/bjjsocial/internal/api/models"
)

// RateLimitConfig is one rate-limit tier: at most RequestLimit requests per
// WindowLength for each key.
type RateLimitConfig struct {
	Name         string
	RequestLimit int
	WindowLength time.Duration
}

// Export endpoint tiers, per minute.
var (
	// BatchRateLimit covers batch submissions, which render many documents.
	BatchRateLimit = RateLimitConfig{Name: "batch", RequestLimit: 10, WindowLength: time.Minute}
	// ExpensiveRateLimit covers exports that page through the whole
	// community or read a stored page.
	ExpensiveRateLimit = RateLimitConfig{Name: "expensive", RequestLimit: 30, WindowLength: time.Minute}
	StandardRateLimit  = RateLimitConfig{Name: "standard", RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP keys the limit on the client IP (X-Forwarded-For or
// X-Real-IP when present).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByClient keys the limit on the authenticated API client, so one
// client shares its budget across IPs. Anonymous requests fall back to IP.
func RateLimitByClient(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, func(r *http.Request) (string, error) {
		if client := GetClient(r.Context()); client != "" {
			return "client:" + client, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(cfg.RequestLimit, cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(tooManyRequests(cfg)),
	)
}

// tooManyRequests answers with a problem. httprate does not expose when the
// window resets, so Retry-After is the whole window.
func tooManyRequests(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(max(1, int(cfg.WindowLength.Seconds())))
	detail := "Rate limit exceeded. Please try again later."
	if cfg.Name != "" {
		detail = fmt.Sprintf("Rate limit exceeded for %s exports (%d per %s). Please try again later.",
			cfg.Name, cfg.RequestLimit, cfg.WindowLength)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		models.NewTooManyRequests(GetRequestID(r.Context()), detail).
			WithInstance(r.URL.Path).
			Write(w)
	}
}
