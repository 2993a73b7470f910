package command

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL command repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const commandColumns = `id, device_id, type, status, created_at, ack_at, done_at, error`

// Get retrieves a command by id.
func (r *PostgresRepository) Get(ctx context.Context, commandID string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE id = $1`

	var c Command
	err := r.pool.QueryRow(ctx, query, commandID).Scan(
		&c.ID,
		&c.DeviceID,
		&c.Type,
		&c.Status,
		&c.CreatedAt,
		&c.AckAt,
		&c.DoneAt,
		&c.Error,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create stores a new command.
func (r *PostgresRepository) Create(ctx context.Context, c *Command) error {
	query := `
		INSERT INTO commands (id, device_id, type, status, created_at, ack_at, done_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.DeviceID,
		c.Type,
		c.Status,
		c.CreatedAt,
		c.AckAt,
		c.DoneAt,
		c.Error,
	)
	return err
}

// UpdateStatus rewrites the command while the stored status still matches.
// The status predicate in the WHERE clause is the compare-and-swap that
// keeps transitions forward-only under concurrent acknowledgments.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, c *Command, expected Status) error {
	query := `
		UPDATE commands SET
			status = $2,
			ack_at = $3,
			done_at = $4,
			error = $5
		WHERE id = $1 AND status = $6
	`

	result, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Status,
		c.AckAt,
		c.DoneAt,
		c.Error,
		expected,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Either the command is gone or someone transitioned it first.
		if _, getErr := r.Get(ctx, c.ID); getErr != nil {
			return getErr
		}
		return errStaleStatus
	}
	return nil
}

// ListPendingByDevice retrieves pending commands in creation order.
func (r *PostgresRepository) ListPendingByDevice(ctx context.Context, deviceID string) ([]*Command, error) {
	query := `
		SELECT ` + commandColumns + `
		FROM commands
		WHERE device_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, deviceID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*Command, 0)
	for rows.Next() {
		var c Command
		err := rows.Scan(
			&c.ID,
			&c.DeviceID,
			&c.Type,
			&c.Status,
			&c.CreatedAt,
			&c.AckAt,
			&c.DoneAt,
			&c.Error,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestPendingByDeviceAndType retrieves the newest pending command of the
// given type for the device.
func (r *PostgresRepository) LatestPendingByDeviceAndType(ctx context.Context, deviceID string, t Type) (*Command, error) {
	query := `
		SELECT ` + commandColumns + `
		FROM commands
		WHERE device_id = $1 AND type = $2 AND status = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var c Command
	err := r.pool.QueryRow(ctx, query, deviceID, t, StatusPending).Scan(
		&c.ID,
		&c.DeviceID,
		&c.Type,
		&c.Status,
		&c.CreatedAt,
		&c.AckAt,
		&c.DoneAt,
		&c.Error,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
