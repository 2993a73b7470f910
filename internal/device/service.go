package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/secrets"
)

// Service provides registry and authentication operations over a Repository.
type Service struct {
	repo            Repository
	secrets         *secrets.Manager
	plaintextMirror bool
	lastSeen        *LastSeenWriter
	logger          zerolog.Logger
}

// ServiceConfig holds configuration for the device service.
type ServiceConfig struct {
	Repo    Repository
	Secrets *secrets.Manager

	// PlaintextMirror stores the plaintext key alongside its hash and
	// enables the plaintext lookup path during authentication. This is a
	// time-boxed migration shim for legacy records, not a security posture;
	// leave it off unless a migration is in flight.
	PlaintextMirror bool

	// LastSeen receives best-effort last-seen updates after successful
	// authentication. May be nil (updates are skipped).
	LastSeen *LastSeenWriter

	Logger zerolog.Logger
}

// NewService creates a new device service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:            cfg.Repo,
		secrets:         cfg.Secrets,
		plaintextMirror: cfg.PlaintextMirror,
		lastSeen:        cfg.LastSeen,
		logger:          cfg.Logger,
	}
}

// Register creates a device for (employeeID, kind) and returns it together
// with the plaintext API key. The plaintext is returned exactly once; only
// its hash is retained unless the migration mirror is enabled. When an
// active device already exists for the pair, its credential and metadata are
// replaced in place and the existing device id is returned, which models an
// agent reinstall without orphaning historical records.
func (s *Service) Register(ctx context.Context, employeeID, name string, kind Kind) (*Device, string, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, "", fmt.Errorf("%w: employee id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		return nil, "", fmt.Errorf("%w: device name is required", ErrInvalidArgument)
	}
	if kind == "" {
		kind = DefaultKind
	}

	plaintext, err := s.secrets.GenerateKey(0)
	if err != nil {
		return nil, "", fmt.Errorf("generating device key: %w", err)
	}

	now := time.Now().UTC()
	d := &Device{
		ID:         newDeviceID(),
		EmployeeID: employeeID,
		Name:       name,
		Kind:       kind,
		KeyHash:    s.secrets.HashKey(plaintext),
		Active:     true,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if s.plaintextMirror {
		d.PlainKey = plaintext
	}

	created, err := s.repo.Upsert(ctx, d)
	if err != nil {
		return nil, "", fmt.Errorf("upserting device: %w", err)
	}

	event := s.logger.Info().
		Str("device_id", d.ID).
		Str("employee_id", employeeID).
		Str("kind", string(kind))
	if created {
		event.Msg("device registered")
	} else {
		event.Msg("device re-registered, credential rotated")
	}

	return d, plaintext, nil
}

// RotateKey generates a fresh key for the device, stores its hash, and
// returns the new plaintext. The previous key stops verifying immediately.
func (s *Service) RotateKey(ctx context.Context, deviceID string) (string, error) {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return "", err
	}

	plaintext, err := s.secrets.GenerateKey(0)
	if err != nil {
		return "", fmt.Errorf("generating device key: %w", err)
	}

	d.KeyHash = s.secrets.HashKey(plaintext)
	d.PlainKey = ""
	if s.plaintextMirror {
		d.PlainKey = plaintext
	}
	d.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, d); err != nil {
		return "", fmt.Errorf("storing rotated key: %w", err)
	}

	s.logger.Info().Str("device_id", deviceID).Msg("device key rotated")
	return plaintext, nil
}

// Deactivate marks the device inactive. Inactive devices cannot
// authenticate and are skipped when commands are targeted.
func (s *Service) Deactivate(ctx context.Context, deviceID string) error {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if !d.Active {
		return nil
	}

	d.Active = false
	d.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, d); err != nil {
		return fmt.Errorf("deactivating device: %w", err)
	}

	s.logger.Info().Str("device_id", deviceID).Msg("device deactivated")
	return nil
}

// Lookup retrieves a device by id.
func (s *Service) Lookup(ctx context.Context, deviceID string) (*Device, error) {
	return s.repo.Get(ctx, deviceID)
}

// LookupByEmployee retrieves devices owned by an employee.
func (s *Service) LookupByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]*Device, error) {
	return s.repo.ListByEmployee(ctx, employeeID, activeOnly)
}

// Authenticate resolves a credential to an active device. The plaintext
// mirror is consulted first when enabled (some legacy records only populated
// the mirror), then the peppered hash. Every failure returns the same
// ErrUnauthorized so the response cannot be used as a credential-guessing
// oracle. On success the device's last-seen timestamp is updated
// asynchronously; the update never blocks or fails the request.
func (s *Service) Authenticate(ctx context.Context, credential string) (*Device, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}

	var d *Device
	if s.plaintextMirror {
		found, err := s.repo.GetActiveByPlainKey(ctx, credential)
		switch {
		case err == nil:
			d = found
		case !errors.Is(err, ErrNotFound):
			s.logger.Error().Err(err).Msg("plaintext credential lookup failed")
			return nil, ErrUnauthorized
		}
	}

	if d == nil {
		found, err := s.repo.GetActiveByKeyHash(ctx, s.secrets.HashKey(credential))
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.Error().Err(err).Msg("hashed credential lookup failed")
			}
			return nil, ErrUnauthorized
		}
		// Constant-time confirmation of the indexed lookup.
		if !s.secrets.VerifyKey(credential, found.KeyHash) {
			return nil, ErrUnauthorized
		}
		d = found
	}

	if s.lastSeen != nil {
		s.lastSeen.Enqueue(d.ID)
	}
	return d, nil
}

// newDeviceID returns a device id with the "dev_" prefix.
func newDeviceID() string {
	return "dev_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}
