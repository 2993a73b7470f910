package middleware

import (
	"net/http"
	"os"

	"github.com/stresssense/stresssense/internal/api/models"
)

// securityHeaders are applied to every response. The API serves only JSON
// to non-browser clients, so the CSP and permissions policy lock everything
// down.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Permissions-Policy":        "geolocation=(), camera=(), microphone=()",
}

// SecurityHeaders adds standard security headers to all HTTP responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range securityHeaders {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plaintext requests when REQUIRE_TLS=true. The check
// reads X-Forwarded-Proto, which the load balancer in front of the service
// sets; direct plaintext traffic without the header is left to the balancer
// to refuse.
func RequireTLS(next http.Handler) http.Handler {
	requireTLS := os.Getenv("REQUIRE_TLS") == "true"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requireTLS {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				requestID := GetRequestID(r.Context())
				problem := models.NewProblem(
					"https://api.stresssense.io/problems/tls-required",
					"TLS required",
					http.StatusForbidden,
					requestID,
				)
				problem.Detail = "This endpoint requires HTTPS"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
