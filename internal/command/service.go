package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/device"
)

// cancelledDetail is stored as the error detail of cancelled commands.
const cancelledDetail = "cancelled"

// DeviceLookup resolves a device id to its registry record. The device
// service satisfies this.
type DeviceLookup interface {
	Lookup(ctx context.Context, deviceID string) (*device.Device, error)
}

// Service provides command dispatch operations.
type Service struct {
	repo    Repository
	devices DeviceLookup
	logger  zerolog.Logger
}

// NewService creates a new command service.
func NewService(repo Repository, devices DeviceLookup, logger zerolog.Logger) *Service {
	return &Service{repo: repo, devices: devices, logger: logger}
}

// Create dispatches a new pending command to the device. Returns
// ErrDeviceNotFound when the device is unknown or inactive and
// ErrUnknownType for a type outside the closed enum.
func (s *Service) Create(ctx context.Context, deviceID string, t Type) (*Command, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	d, err := s.devices.Lookup(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("resolving target device: %w", err)
	}
	if !d.Active {
		return nil, ErrDeviceNotFound
	}

	c := &Command{
		ID:        newCommandID(),
		DeviceID:  deviceID,
		Type:      t,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("storing command: %w", err)
	}

	s.logger.Info().
		Str("command_id", c.ID).
		Str("device_id", deviceID).
		Str("type", string(t)).
		Msg("command created")
	return c, nil
}

// Get retrieves a command by id.
func (s *Service) Get(ctx context.Context, commandID string) (*Command, error) {
	return s.repo.Get(ctx, commandID)
}

// ListPending returns the device's pending commands in creation order.
// Verifying that the caller is the device itself is the boundary's job, not
// this method's.
func (s *Service) ListPending(ctx context.Context, deviceID string) ([]*Command, error) {
	return s.repo.ListPendingByDevice(ctx, deviceID)
}

// LatestPending returns the most recently created pending command of the
// given type for the device, or ErrNotFound.
func (s *Service) LatestPending(ctx context.Context, deviceID string, t Type) (*Command, error) {
	return s.repo.LatestPendingByDeviceAndType(ctx, deviceID, t)
}

// Acknowledge advances the command to newStatus. Transitions only move
// forward: acknowledging a command that already reached an equal or later
// stage is a no-op that returns the stored command, so retried
// acknowledgments after a network blip are safe. AckAt is stamped on entry
// to ack, DoneAt on entry to done/failed; errorDetail is stored when present.
func (s *Service) Acknowledge(ctx context.Context, commandID string, newStatus Status, errorDetail *string) (*Command, error) {
	if !newStatus.Valid() || newStatus == StatusPending {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	for {
		c, err := s.repo.Get(ctx, commandID)
		if err != nil {
			return nil, err
		}

		if statusRank[newStatus] <= statusRank[c.Status] {
			// Already there or beyond; idempotent success.
			return c, nil
		}

		prev := c.Status
		now := time.Now().UTC()
		c.Status = newStatus
		switch newStatus {
		case StatusAck:
			c.AckAt = &now
		case StatusDone, StatusFailed:
			c.DoneAt = &now
		}
		if errorDetail != nil && *errorDetail != "" {
			c.Error = errorDetail
		}

		err = s.repo.UpdateStatus(ctx, c, prev)
		if errors.Is(err, errStaleStatus) {
			// Lost the race; re-read and re-apply the forward-only rule.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storing command transition: %w", err)
		}

		s.logger.Info().
			Str("command_id", commandID).
			Str("from", string(prev)).
			Str("to", string(newStatus)).
			Msg("command acknowledged")
		return c, nil
	}
}

// Cancel fails a command that has not completed, storing "cancelled" as its
// error detail. Cancelling a terminal command is an idempotent no-op, like
// Acknowledge.
func (s *Service) Cancel(ctx context.Context, commandID string) (*Command, error) {
	detail := cancelledDetail
	return s.Acknowledge(ctx, commandID, StatusFailed, &detail)
}

// newCommandID returns a command id with the "cmd_" prefix.
func newCommandID() string {
	return "cmd_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}
