package middleware

import (
	"context"
	"net/http"

	"github.com/stresssense/stresssense/internal/api/models"
	"github.com/stresssense/stresssense/internal/device"
)

// deviceKey is the context key for the authenticated device.
type deviceKey struct{}

// Credential carriers, in precedence order. The header wins when both are
// present; the query form exists for agents whose HTTP stack cannot set
// custom headers.
const (
	// DeviceKeyHeader carries the device API key.
	DeviceKeyHeader = "X-Device-Key"

	// DeviceKeyQueryParam is the query-string fallback for the key.
	DeviceKeyQueryParam = "api_key"
)

// DeviceAuthenticator authenticates a presented device credential. The
// device service satisfies this.
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, credential string) (*device.Device, error)
}

// DeviceAuth creates authentication middleware that resolves the device
// credential to an active device. All failures produce the same 401 so a
// caller cannot distinguish a revoked key from one that never existed.
func DeviceAuth(devices DeviceAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := DeviceCredential(r)
			if credential == "" {
				writeUnauthorized(w, r, "missing device credential")
				return
			}

			d, err := devices.Authenticate(r.Context(), credential)
			if err != nil {
				// Uniform detail regardless of cause.
				writeUnauthorized(w, r, "invalid device credential")
				return
			}

			ctx := context.WithValue(r.Context(), deviceKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceCredential extracts the device credential from the request without
// validating it. Header takes precedence over the query parameter.
func DeviceCredential(r *http.Request) string {
	if key := r.Header.Get(DeviceKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(DeviceKeyQueryParam)
}

// GetDevice retrieves the authenticated device from the context. Returns
// nil if the request did not pass device authentication.
func GetDevice(ctx context.Context) *device.Device {
	if d, ok := ctx.Value(deviceKey{}).(*device.Device); ok {
		return d
	}
	return nil
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}
