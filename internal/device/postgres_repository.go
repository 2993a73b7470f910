package device

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// The devices table carries a partial unique index over (employee_id, kind)
// WHERE active, which is what makes Upsert's check-then-write safe under
// concurrent registrations:
//
//	CREATE UNIQUE INDEX devices_active_owner
//	    ON devices (employee_id, kind) WHERE active;
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const deviceColumns = `id, employee_id, name, kind, key_hash, plain_key, active, last_seen_at, created_at, updated_at`

// Get retrieves a device by id.
func (r *PostgresRepository) Get(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return r.scanDevice(ctx, query, deviceID)
}

// GetActiveByOwner retrieves the active device for an (employee, kind) pair.
func (r *PostgresRepository) GetActiveByOwner(ctx context.Context, employeeID string, kind Kind) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE employee_id = $1 AND kind = $2 AND active`
	return r.scanDevice(ctx, query, employeeID, kind)
}

// GetActiveByKeyHash retrieves an active device by its key digest.
func (r *PostgresRepository) GetActiveByKeyHash(ctx context.Context, keyHash string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE key_hash = $1 AND active`
	return r.scanDevice(ctx, query, keyHash)
}

// GetActiveByPlainKey retrieves an active device by its plaintext key mirror.
func (r *PostgresRepository) GetActiveByPlainKey(ctx context.Context, plainKey string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE plain_key = $1 AND active`
	return r.scanDevice(ctx, query, plainKey)
}

// scanDevice scans a single device from a query.
func (r *PostgresRepository) scanDevice(ctx context.Context, query string, args ...interface{}) (*Device, error) {
	var d Device
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.EmployeeID,
		&d.Name,
		&d.Kind,
		&d.KeyHash,
		&d.PlainKey,
		&d.Active,
		&d.LastSeenAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByEmployee retrieves devices owned by an employee, newest first.
func (r *PostgresRepository) ListByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE employee_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		var d Device
		err := rows.Scan(
			&d.ID,
			&d.EmployeeID,
			&d.Name,
			&d.Kind,
			&d.KeyHash,
			&d.PlainKey,
			&d.Active,
			&d.LastSeenAt,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// Upsert inserts the device or replaces the existing active (employee, kind)
// record in place. The partial unique index serializes concurrent
// registrations for the same pair; on conflict the existing row keeps its id
// and created_at.
func (r *PostgresRepository) Upsert(ctx context.Context, d *Device) (bool, error) {
	query := `
		INSERT INTO devices (id, employee_id, name, kind, key_hash, plain_key, active, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (employee_id, kind) WHERE active DO UPDATE SET
			name = EXCLUDED.name,
			key_hash = EXCLUDED.key_hash,
			plain_key = EXCLUDED.plain_key,
			active = TRUE,
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		d.ID,
		d.EmployeeID,
		d.Name,
		d.Kind,
		d.KeyHash,
		d.PlainKey,
		d.Active,
		d.LastSeenAt,
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&d.ID, &d.CreatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Update rewrites an existing device record.
func (r *PostgresRepository) Update(ctx context.Context, d *Device) error {
	query := `
		UPDATE devices SET
			name = $2,
			kind = $3,
			key_hash = $4,
			plain_key = $5,
			active = $6,
			last_seen_at = $7,
			updated_at = $8
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Name,
		d.Kind,
		d.KeyHash,
		d.PlainKey,
		d.Active,
		d.LastSeenAt,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen updates only the last-seen timestamp.
func (r *PostgresRepository) TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	query := `UPDATE devices SET last_seen_at = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, deviceID, seenAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
