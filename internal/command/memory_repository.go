package command

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL
// implementation.
type InMemoryRepository struct {
	mu       sync.RWMutex
	commands map[string]*Command // keyed by command ID
	seq      []string            // insertion order, for stable tie-breaks
}

// NewInMemoryRepository creates a new in-memory command repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		commands: make(map[string]*Command),
	}
}

// Get retrieves a command by id.
func (r *InMemoryRepository) Get(_ context.Context, commandID string) (*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.commands[commandID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCommand(c), nil
}

// Create stores a new command.
func (r *InMemoryRepository) Create(_ context.Context, c *Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[c.ID] = copyCommand(c)
	r.seq = append(r.seq, c.ID)
	return nil
}

// UpdateStatus rewrites the command while the stored status still matches.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, c *Command, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.commands[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expected {
		return errStaleStatus
	}
	r.commands[c.ID] = copyCommand(c)
	return nil
}

// ListPendingByDevice retrieves pending commands in creation order.
func (r *InMemoryRepository) ListPendingByDevice(_ context.Context, deviceID string) ([]*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Command, 0)
	for _, id := range r.seq {
		c := r.commands[id]
		if c.DeviceID == deviceID && c.Status == StatusPending {
			items = append(items, copyCommand(c))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// LatestPendingByDeviceAndType retrieves the newest pending command of the
// given type for the device.
func (r *InMemoryRepository) LatestPendingByDeviceAndType(_ context.Context, deviceID string, t Type) (*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Command
	for _, id := range r.seq {
		c := r.commands[id]
		if c.DeviceID != deviceID || c.Type != t || c.Status != StatusPending {
			continue
		}
		// Insertion order breaks created-at ties: most recent wins.
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyCommand(latest), nil
}

// copyCommand creates a deep copy of a command.
func copyCommand(c *Command) *Command {
	if c == nil {
		return nil
	}
	cp := *c
	if c.AckAt != nil {
		t := *c.AckAt
		cp.AckAt = &t
	}
	if c.DoneAt != nil {
		t := *c.DoneAt
		cp.DoneAt = &t
	}
	if c.Error != nil {
		s := *c.Error
		cp.Error = &s
	}
	return &cp
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
