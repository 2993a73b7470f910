package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL
// implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device // keyed by device ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Get retrieves a device by id.
func (r *InMemoryRepository) Get(_ context.Context, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDevice(d), nil
}

// GetActiveByOwner retrieves the active device for an (employee, kind) pair.
func (r *InMemoryRepository) GetActiveByOwner(_ context.Context, employeeID string, kind Kind) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := r.findActiveOwnerLocked(employeeID, kind)
	if d == nil {
		return nil, ErrNotFound
	}
	return copyDevice(d), nil
}

// GetActiveByKeyHash retrieves an active device by its key digest.
func (r *InMemoryRepository) GetActiveByKeyHash(_ context.Context, keyHash string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Active && d.KeyHash == keyHash {
			return copyDevice(d), nil
		}
	}
	return nil, ErrNotFound
}

// GetActiveByPlainKey retrieves an active device by its plaintext key mirror.
func (r *InMemoryRepository) GetActiveByPlainKey(_ context.Context, plainKey string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Active && d.PlainKey != "" && d.PlainKey == plainKey {
			return copyDevice(d), nil
		}
	}
	return nil, ErrNotFound
}

// ListByEmployee retrieves devices owned by an employee, newest first.
func (r *InMemoryRepository) ListByEmployee(_ context.Context, employeeID string, activeOnly bool) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, d := range r.devices {
		if d.EmployeeID != employeeID {
			continue
		}
		if activeOnly && !d.Active {
			continue
		}
		items = append(items, copyDevice(d))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Upsert inserts the device or replaces the existing active (employee, kind)
// record in place. The whole check-then-write runs under one write lock so
// two near-simultaneous registrations cannot create two active devices.
func (r *InMemoryRepository) Upsert(_ context.Context, d *Device) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findActiveOwnerLocked(d.EmployeeID, d.Kind); existing != nil {
		existing.Name = d.Name
		existing.KeyHash = d.KeyHash
		existing.PlainKey = d.PlainKey
		existing.Active = true
		existing.LastSeenAt = d.LastSeenAt
		existing.UpdatedAt = d.UpdatedAt
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
		return false, nil
	}

	r.devices[d.ID] = copyDevice(d)
	return true, nil
}

// Update rewrites an existing device record.
func (r *InMemoryRepository) Update(_ context.Context, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID]; !ok {
		return ErrNotFound
	}
	r.devices[d.ID] = copyDevice(d)
	return nil
}

// TouchLastSeen updates only the last-seen timestamp.
func (r *InMemoryRepository) TouchLastSeen(_ context.Context, deviceID string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAt = seenAt
	return nil
}

// findActiveOwnerLocked returns the live record (not a copy) for an active
// (employee, kind) pair. Callers must hold at least the read lock.
func (r *InMemoryRepository) findActiveOwnerLocked(employeeID string, kind Kind) *Device {
	for _, d := range r.devices {
		if d.Active && d.EmployeeID == employeeID && d.Kind == kind {
			return d
		}
	}
	return nil
}

// copyDevice creates a copy of a device so callers cannot mutate stored state.
func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
