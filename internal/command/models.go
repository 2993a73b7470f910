// Package command implements the command dispatcher: creation of commands
// targeted at a device, polling-oriented delivery, and idempotent
// acknowledgment. Commands are an audit trail and are never deleted.
package command

import (
	"errors"
	"time"
)

// Dispatcher errors.
var (
	// ErrNotFound is returned when a command id does not resolve.
	ErrNotFound = errors.New("command not found")

	// ErrDeviceNotFound is returned when a command targets an unknown or
	// inactive device.
	ErrDeviceNotFound = errors.New("target device not found or inactive")

	// ErrUnknownType is returned for a command type outside the closed enum.
	ErrUnknownType = errors.New("unknown command type")

	// ErrInvalidStatus is returned for an acknowledgment status outside the
	// state machine.
	ErrInvalidStatus = errors.New("invalid command status")

	// errStaleStatus signals a lost compare-and-swap on a concurrent
	// transition; the service re-reads and re-applies.
	errStaleStatus = errors.New("command status changed concurrently")
)

// Type is the closed enum of work a device can be asked to perform.
type Type string

// TypeAnalyzeNow asks the agent to capture and analyze a reading
// immediately. It is the only command type today.
const TypeAnalyzeNow Type = "analyze-now"

// Valid reports whether t is a known command type.
func (t Type) Valid() bool {
	return t == TypeAnalyzeNow
}

// Status is a command's position in the pending -> ack -> done/failed state
// machine. The ack stage is optional telemetry: an agent may complete a
// command directly from pending.
type Status string

const (
	StatusPending Status = "pending"
	StatusAck     Status = "ack"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// statusRank orders statuses so transitions only ever move forward.
var statusRank = map[Status]int{
	StatusPending: 0,
	StatusAck:     1,
	StatusDone:    2,
	StatusFailed:  2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Command is a unit of work dispatched to one device.
type Command struct {
	ID        string
	DeviceID  string
	Type      Type
	Status    Status
	CreatedAt time.Time
	AckAt     *time.Time
	DoneAt    *time.Time
	Error     *string
}
