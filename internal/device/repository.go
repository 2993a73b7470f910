package device

import (
	"context"
	"time"
)

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by id.
	Get(ctx context.Context, deviceID string) (*Device, error)

	// GetActiveByOwner retrieves the active device for an (employee, kind)
	// pair, if any.
	GetActiveByOwner(ctx context.Context, employeeID string, kind Kind) (*Device, error)

	// GetActiveByKeyHash retrieves an active device by its key digest.
	GetActiveByKeyHash(ctx context.Context, keyHash string) (*Device, error)

	// GetActiveByPlainKey retrieves an active device by its plaintext key
	// mirror. Only records written during the migration window match.
	GetActiveByPlainKey(ctx context.Context, plainKey string) (*Device, error)

	// ListByEmployee retrieves devices owned by an employee, newest first.
	ListByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]*Device, error)

	// Upsert inserts the device, or, when an active device already exists
	// for the same (employee, kind), replaces that record's credential and
	// metadata in place while keeping its id. The check-then-write is
	// atomic. On update the passed device's ID is overwritten with the
	// surviving id. Returns true when a new record was created.
	Upsert(ctx context.Context, d *Device) (created bool, err error)

	// Update rewrites an existing device record.
	Update(ctx context.Context, d *Device) error

	// TouchLastSeen updates only the last-seen timestamp.
	TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error
}
