package stress

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no reading matches a lookup.
var ErrNotFound = errors.New("reading not found")

// ListOptions narrows a per-employee reading query.
type ListOptions struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Repository defines the interface for reading persistence. Readings are
// append-only.
type Repository interface {
	// Create stores a new reading.
	Create(ctx context.Context, r *Reading) error

	// ListByEmployee retrieves an employee's readings, newest first,
	// optionally bounded by time range and limit.
	ListByEmployee(ctx context.Context, employeeID string, opts ListOptions) ([]*Reading, error)

	// LatestByEmployee retrieves the employee's most recent reading.
	LatestByEmployee(ctx context.Context, employeeID string) (*Reading, error)
}
