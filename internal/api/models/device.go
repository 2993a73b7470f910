package models

import "strings"

// Device represents a registered agent device. The key hash never leaves
// the server; the plaintext key appears only in registration and rotation
// responses.
type Device struct {
	DeviceID   string     `json:"deviceId"`
	EmployeeID string     `json:"employeeId"`
	DeviceName string     `json:"deviceName"`
	DeviceKind string     `json:"deviceKind"`
	Active     bool       `json:"active"`
	LastSeenAt *Timestamp `json:"lastSeenAt,omitempty"`
	CreatedAt  Timestamp  `json:"createdAt"`
}

// DeviceRegisterRequest is the request body for registering a device.
type DeviceRegisterRequest struct {
	EmployeeID string `json:"employeeId"`
	DeviceName string `json:"deviceName"`
	DeviceKind string `json:"deviceKind,omitempty"`
}

// Validate checks required fields and returns field errors.
func (r *DeviceRegisterRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.EmployeeID) == "" {
		errs = append(errs, FieldError{Field: "employeeId", Message: "is required", Code: "required"})
	}
	if strings.TrimSpace(r.DeviceName) == "" {
		errs = append(errs, FieldError{Field: "deviceName", Message: "is required", Code: "required"})
	}
	return errs
}

// DeviceRegisterResponse is returned by registration and key rotation. It
// is the only place the plaintext key is ever surfaced.
type DeviceRegisterResponse struct {
	DeviceID   string    `json:"deviceId"`
	EmployeeID string    `json:"employeeId"`
	DeviceName string    `json:"deviceName"`
	DeviceKind string    `json:"deviceKind"`
	APIKey     string    `json:"apiKey"`
	CreatedAt  Timestamp `json:"createdAt"`
}

// PagedDevices represents a list of an employee's devices.
type PagedDevices struct {
	Items []Device          `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
