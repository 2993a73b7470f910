// Package events publishes domain events for downstream consumers, such as
// the analytics pipeline that aggregates stress readings. Publishing is
// fire-and-forget: ingestion must never block or fail because a consumer is
// slow or the broker is down.
package events

import (
	"context"
	"time"
)

// ReadingIngested is emitted after a stress reading is admitted and
// persisted.
type ReadingIngested struct {
	ReadingID       string    `json:"readingId"`
	EmployeeID      string    `json:"employeeId"`
	DeviceID        string    `json:"deviceId"`
	Emotion         string    `json:"emotion"`
	StressLevel     string    `json:"stressLevel"`
	Confidence      float64   `json:"confidence"`
	MappingMismatch bool      `json:"mappingMismatch"`
	RequestID       string    `json:"requestId,omitempty"`
	IngestedAt      time.Time `json:"ingestedAt"`
}

// Publisher emits domain events. Implementations must not block the caller
// beyond local serialization.
type Publisher interface {
	ReadingIngested(ctx context.Context, event ReadingIngested)
}

// NopPublisher discards all events. Used when no broker is configured and
// in tests.
type NopPublisher struct{}

// ReadingIngested discards the event.
func (NopPublisher) ReadingIngested(context.Context, ReadingIngested) {}

// Ensure NopPublisher implements Publisher.
var _ Publisher = NopPublisher{}
