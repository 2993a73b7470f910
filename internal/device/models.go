// Package device provides the device registry and authenticator for the
// agent fleet. Devices authenticate with a peppered API key; exactly one
// active device exists per (employee, kind) pair.
package device

import (
	"errors"
	"time"
)

// Registry errors.
var (
	// ErrNotFound is returned when a device id does not resolve.
	ErrNotFound = errors.New("device not found")

	// ErrUnauthorized is returned for any credential failure. It is
	// deliberately uniform: callers must not learn which lookup path failed.
	ErrUnauthorized = errors.New("invalid device credential")

	// ErrInvalidArgument is returned when registration input is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind tags the class of agent software running on a device. Registration
// is keyed on (employee, kind), so an employee owns at most one active
// device of each kind.
type Kind string

// DefaultKind is assumed when a registration omits the device kind. It
// matches what the deployed desktop agents send.
const DefaultKind Kind = "windows_agent"

// Device is a registered agent endpoint. KeyHash is authoritative; PlainKey
// is a migration-window mirror and is empty unless the mirror is enabled.
// Devices are never hard-deleted, only deactivated.
type Device struct {
	ID         string
	EmployeeID string
	Name       string
	Kind       Kind
	KeyHash    string
	PlainKey   string
	Active     bool
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
