// Package remotecheck lets an operator request an on-demand reading from an
// employee's device. A remote check is an "analyze-now" command whose id
// doubles as the correlation token carried by the eventual telemetry
// submission.
package remotecheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/command"
	"github.com/stresssense/stresssense/internal/device"
)

// ErrNoActiveDevice is returned when the employee has no active device of
// the agent kind to target.
var ErrNoActiveDevice = errors.New("no active device for employee")

// DeviceResolver lists an employee's devices. The device service satisfies
// this.
type DeviceResolver interface {
	LookupByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]*device.Device, error)
}

// Dispatcher is the slice of the command service the correlator needs.
type Dispatcher interface {
	Create(ctx context.Context, deviceID string, t command.Type) (*command.Command, error)
	Get(ctx context.Context, commandID string) (*command.Command, error)
	LatestPending(ctx context.Context, deviceID string, t command.Type) (*command.Command, error)
	Acknowledge(ctx context.Context, commandID string, newStatus command.Status, errorDetail *string) (*command.Command, error)
}

// PendingCheck is the poll result handed to the agent.
type PendingCheck struct {
	Pending   bool
	RequestID string
	CreatedAt time.Time
}

// Service correlates remote-check requests with telemetry submissions.
type Service struct {
	devices  DeviceResolver
	commands Dispatcher
	kind     device.Kind
	logger   zerolog.Logger
}

// ServiceConfig holds configuration for the remote-check service.
type ServiceConfig struct {
	Devices  DeviceResolver
	Commands Dispatcher

	// Kind selects which of the employee's devices receives remote checks.
	// Defaults to the desktop agent kind.
	Kind device.Kind

	Logger zerolog.Logger
}

// NewService creates a new remote-check service.
func NewService(cfg ServiceConfig) *Service {
	kind := cfg.Kind
	if kind == "" {
		kind = device.DefaultKind
	}
	return &Service{
		devices:  cfg.Devices,
		commands: cfg.Commands,
		kind:     kind,
		logger:   cfg.Logger,
	}
}

// Request creates a pending analyze-now command for the employee's active
// agent device and returns it. The command id is the correlation token the
// agent must echo back on submission.
func (s *Service) Request(ctx context.Context, employeeID string) (*command.Command, error) {
	d, err := s.resolveDevice(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	c, err := s.commands.Create(ctx, d.ID, command.TypeAnalyzeNow)
	if err != nil {
		return nil, fmt.Errorf("creating remote check: %w", err)
	}

	s.logger.Info().
		Str("request_id", c.ID).
		Str("employee_id", employeeID).
		Str("device_id", d.ID).
		Msg("remote check requested")
	return c, nil
}

// PollPending reports whether a remote check is waiting for the employee's
// device. When several are pending the most recently created wins. The call
// is read-only; agents poll it frequently.
func (s *Service) PollPending(ctx context.Context, employeeID string) (*PendingCheck, error) {
	d, err := s.resolveDevice(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	c, err := s.commands.LatestPending(ctx, d.ID, command.TypeAnalyzeNow)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			return &PendingCheck{Pending: false}, nil
		}
		return nil, err
	}

	return &PendingCheck{
		Pending:   true,
		RequestID: c.ID,
		CreatedAt: c.CreatedAt,
	}, nil
}

// Resolve closes the remote check identified by requestID after its reading
// arrived, using the dispatcher's idempotent acknowledgment. Only the device
// the command was dispatched to may close it; a request id naming another
// device's command is treated like an unknown id. The request id on a reading
// is a weak reference: an unknown id is logged and swallowed so a purged
// command never fails an otherwise valid submission.
func (s *Service) Resolve(ctx context.Context, requestID, deviceID string, failed bool, detail string) error {
	c, err := s.commands.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			s.logger.Warn().
				Str("request_id", requestID).
				Str("device_id", deviceID).
				Msg("submission referenced an unknown remote check request")
			return nil
		}
		return fmt.Errorf("resolving remote check: %w", err)
	}
	if c.DeviceID != deviceID {
		s.logger.Warn().
			Str("request_id", requestID).
			Str("device_id", deviceID).
			Str("command_device_id", c.DeviceID).
			Msg("submission referenced another device's remote check")
		return nil
	}

	status := command.StatusDone
	var errorDetail *string
	if failed {
		status = command.StatusFailed
		if detail != "" {
			errorDetail = &detail
		}
	}

	if _, err := s.commands.Acknowledge(ctx, requestID, status, errorDetail); err != nil {
		return fmt.Errorf("resolving remote check: %w", err)
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("status", string(status)).
		Msg("remote check resolved")
	return nil
}

func (s *Service) resolveDevice(ctx context.Context, employeeID string) (*device.Device, error) {
	devices, err := s.devices.LookupByEmployee(ctx, employeeID, true)
	if err != nil {
		return nil, fmt.Errorf("resolving employee devices: %w", err)
	}
	for _, d := range devices {
		if d.Kind == s.kind {
			return d, nil
		}
	}
	return nil, ErrNoActiveDevice
}
