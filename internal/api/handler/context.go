package handler

import (
	"context"

	"github.com/stresssense/stresssense/internal/api/middleware"
	"github.com/stresssense/stresssense/internal/device"
)

// GetDevice retrieves the authenticated device from the context.
// This is a convenience wrapper around middleware.GetDevice.
func GetDevice(ctx context.Context) *device.Device {
	return middleware.GetDevice(ctx)
}

// GetOperatorID retrieves the authenticated operator ID from the context.
func GetOperatorID(ctx context.Context) string {
	return middleware.GetOperatorID(ctx)
}
