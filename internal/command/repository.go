package command

import "context"

// Repository defines the interface for command persistence.
type Repository interface {
	// Get retrieves a command by id.
	Get(ctx context.Context, commandID string) (*Command, error)

	// Create stores a new command.
	Create(ctx context.Context, c *Command) error

	// UpdateStatus rewrites the command's status, timestamps, and error
	// detail, but only while the stored status still equals expected.
	// Returns errStaleStatus when a concurrent transition won.
	UpdateStatus(ctx context.Context, c *Command, expected Status) error

	// ListPendingByDevice retrieves a device's pending commands in creation
	// order (oldest first).
	ListPendingByDevice(ctx context.Context, deviceID string) ([]*Command, error)

	// LatestPendingByDeviceAndType retrieves the most recently created
	// pending command of the given type for the device, or ErrNotFound.
	LatestPendingByDeviceAndType(ctx context.Context, deviceID string, t Type) (*Command, error)
}
