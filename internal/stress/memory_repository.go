package stress

import (
	"context"
	"sort"
	"sync"
)

// defaultListLimit bounds per-employee queries when no limit is given.
const defaultListLimit = 50

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL
// implementation.
type InMemoryRepository struct {
	mu       sync.RWMutex
	readings []*Reading
}

// NewInMemoryRepository creates a new in-memory reading repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create stores a new reading.
func (r *InMemoryRepository) Create(_ context.Context, reading *Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readings = append(r.readings, copyReading(reading))
	return nil
}

// ListByEmployee retrieves an employee's readings, newest first.
func (r *InMemoryRepository) ListByEmployee(_ context.Context, employeeID string, opts ListOptions) ([]*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Reading, 0)
	for _, reading := range r.readings {
		if reading.EmployeeID != employeeID {
			continue
		}
		if opts.From != nil && reading.Timestamp.Before(*opts.From) {
			continue
		}
		if opts.To != nil && reading.Timestamp.After(*opts.To) {
			continue
		}
		items = append(items, copyReading(reading))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// LatestByEmployee retrieves the employee's most recent reading.
func (r *InMemoryRepository) LatestByEmployee(ctx context.Context, employeeID string) (*Reading, error) {
	items, err := r.ListByEmployee(ctx, employeeID, ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// copyReading creates a deep copy of a reading.
func copyReading(r *Reading) *Reading {
	if r == nil {
		return nil
	}
	cp := *r
	if r.FaceQuality != nil {
		fq := *r.FaceQuality
		cp.FaceQuality = &fq
	}
	return &cp
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
