package stress

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// face_quality is a JSONB column; request_id is empty for uncorrelated
// readings.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const readingColumns = `id, employee_id, device_id, emotion, stress_level, confidence, timestamp, ingested_at, mapping_mismatch, face_quality, request_id`

// Create stores a new reading.
func (r *PostgresRepository) Create(ctx context.Context, reading *Reading) error {
	query := `
		INSERT INTO stress_readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		reading.ID,
		reading.EmployeeID,
		reading.DeviceID,
		reading.Emotion,
		reading.StressLevel,
		reading.Confidence,
		reading.Timestamp,
		reading.IngestedAt,
		reading.MappingMismatch,
		reading.FaceQuality,
		reading.RequestID,
	)
	return err
}

// ListByEmployee retrieves an employee's readings, newest first.
func (r *PostgresRepository) ListByEmployee(ctx context.Context, employeeID string, opts ListOptions) ([]*Reading, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + readingColumns + ` FROM stress_readings WHERE employee_id = $1`)

	args := []interface{}{employeeID}
	if opts.From != nil {
		args = append(args, *opts.From)
		sb.WriteString(` AND timestamp >= $2`)
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		if opts.From != nil {
			sb.WriteString(` AND timestamp <= $3`)
		} else {
			sb.WriteString(` AND timestamp <= $2`)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	sb.WriteString(` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*Reading, 0)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestByEmployee retrieves the employee's most recent reading.
func (r *PostgresRepository) LatestByEmployee(ctx context.Context, employeeID string) (*Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM stress_readings
		WHERE employee_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, employeeID)
	reading, err := scanReading(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return reading, nil
}

func scanReading(row pgx.Row) (*Reading, error) {
	var reading Reading
	err := row.Scan(
		&reading.ID,
		&reading.EmployeeID,
		&reading.DeviceID,
		&reading.Emotion,
		&reading.StressLevel,
		&reading.Confidence,
		&reading.Timestamp,
		&reading.IngestedAt,
		&reading.MappingMismatch,
		&reading.FaceQuality,
		&reading.RequestID,
	)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
