package stress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/device"
	"github.com/stresssense/stresssense/internal/events"
)

// Correlator closes remote-check requests referenced by submissions. The
// remotecheck service satisfies this. The device id identifies the
// submitter; a correlator must refuse to close another device's command.
type Correlator interface {
	Resolve(ctx context.Context, requestID, deviceID string, failed bool, detail string) error
}

// Service validates, persists, and fans out stress readings.
type Service struct {
	repo       Repository
	validator  *Validator
	correlator Correlator
	publisher  events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

// ServiceConfig holds configuration for the stress service.
type ServiceConfig struct {
	Repo      Repository
	Validator *Validator

	// Correlator may be nil; request ids on submissions are then ignored.
	Correlator Correlator

	// Publisher may be nil; defaults to discarding events.
	Publisher events.Publisher

	Logger zerolog.Logger

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// NewService creates a new stress service.
func NewService(cfg ServiceConfig) *Service {
	validator := cfg.Validator
	if validator == nil {
		validator = NewValidator(nil)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:       cfg.Repo,
		validator:  validator,
		correlator: cfg.Correlator,
		publisher:  publisher,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Record validates the submission against the authenticated device, assigns
// a server id and ingestion timestamp, persists the reading, publishes the
// ingested event, and, when the submission carries a request id, resolves
// the correlated remote check.
func (s *Service) Record(ctx context.Context, d *device.Device, sub *Submission) (*Reading, error) {
	reading, err := s.validator.Validate(sub, d, s.now())
	if err != nil {
		return nil, err
	}

	reading.ID = newReadingID()
	reading.IngestedAt = s.now()

	if err := s.repo.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("storing reading: %w", err)
	}

	if reading.MappingMismatch {
		s.logger.Warn().
			Str("reading_id", reading.ID).
			Str("emotion", string(reading.Emotion)).
			Str("stress_level", string(reading.StressLevel)).
			Float64("confidence", reading.Confidence).
			Msg("stress level disagrees with emotion mapping")
	}

	s.publisher.ReadingIngested(ctx, events.ReadingIngested{
		ReadingID:       reading.ID,
		EmployeeID:      reading.EmployeeID,
		DeviceID:        reading.DeviceID,
		Emotion:         string(reading.Emotion),
		StressLevel:     string(reading.StressLevel),
		Confidence:      reading.Confidence,
		MappingMismatch: reading.MappingMismatch,
		RequestID:       reading.RequestID,
		IngestedAt:      reading.IngestedAt,
	})

	if reading.RequestID != "" && s.correlator != nil {
		failed := sub.AnalysisError != ""
		if err := s.correlator.Resolve(ctx, reading.RequestID, d.ID, failed, sub.AnalysisError); err != nil {
			// The reading is already persisted; correlation is best-effort.
			s.logger.Error().
				Err(err).
				Str("reading_id", reading.ID).
				Str("request_id", reading.RequestID).
				Msg("failed to resolve remote check")
		}
	}

	s.logger.Info().
		Str("reading_id", reading.ID).
		Str("employee_id", reading.EmployeeID).
		Str("device_id", reading.DeviceID).
		Msg("stress reading recorded")
	return reading, nil
}

// ListByEmployee retrieves an employee's readings, newest first.
func (s *Service) ListByEmployee(ctx context.Context, employeeID string, opts ListOptions) ([]*Reading, error) {
	return s.repo.ListByEmployee(ctx, employeeID, opts)
}

// LatestByEmployee retrieves the employee's most recent reading.
func (s *Service) LatestByEmployee(ctx context.Context, employeeID string) (*Reading, error) {
	return s.repo.LatestByEmployee(ctx, employeeID)
}

// newReadingID returns a reading id with the "rdg_" prefix.
func newReadingID() string {
	return "rdg_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}
