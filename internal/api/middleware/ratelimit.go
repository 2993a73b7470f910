package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/stresssense/stresssense/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations. Agents are expected to poll at most
// every few seconds, so the budgets leave generous headroom over a
// well-behaved client before blocking a runaway one.
var (
	// RegistrationRateLimit applies to device registration and key
	// rotation (10 req/min). These endpoints generate fresh keys, so
	// they get the tightest budget.
	RegistrationRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// CommandPollRateLimit applies to the pending-command listing
	// (30 req/min per device).
	CommandPollRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// TelemetryWriteRateLimit applies to stress submission endpoints
	// (10 req/min per device).
	TelemetryWriteRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// RemoteCheckPollRateLimit applies to the lightweight remote-check
	// poll (60 req/min per device).
	RemoteCheckPollRateLimit = RateLimitConfig{
		RequestLimit: 60,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to everything else (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

// RateLimitByDevice creates a rate limiter middleware keyed by the device
// credential. Falls back to IP-based limiting when no credential is
// presented, so unauthenticated probing shares one budget per source
// address instead of getting a fresh budget per bogus key.
func RateLimitByDevice(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByDeviceOrIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

// keyByDeviceOrIP returns the presented device credential if any,
// otherwise the client IP. The raw key never leaves the process and
// limiter entries expire with the window.
func keyByDeviceOrIP(r *http.Request) (string, error) {
	if key := DeviceCredential(r); key != "" {
		return "device:" + key, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceededHandler writes an RFC7807 Problem response when rate limit is exceeded.
func rateLimitExceededHandler(w http.ResponseWriter, r *http.Request) {
	traceID := GetRequestID(r.Context())

	problem := models.NewTooManyRequests(traceID, "Rate limit exceeded. Please try again later.")
	problem.Instance = r.URL.Path

	// httprate doesn't expose the exact reset time, so use a conservative
	// estimate of one window.
	w.Header().Set("Retry-After", strconv.Itoa(60))

	problem.Write(w)
}
