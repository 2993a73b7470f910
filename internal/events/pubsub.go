package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
	Logger    zerolog.Logger
}

// NewPubSubPublisher creates a publisher for the configured topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
		logger:    cfg.Logger,
	}, nil
}

// ReadingIngested publishes the event. Delivery failures are logged, not
// returned: a reading that is already persisted must not be failed
// retroactively because the broker is unreachable.
func (p *PubSubPublisher) ReadingIngested(ctx context.Context, event ReadingIngested) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("reading_id", event.ReadingID).Msg("failed to encode event")
		return
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":  "reading_ingested",
			"employee_id": event.EmployeeID,
		},
	})

	go func() {
		if _, err := result.Get(context.WithoutCancel(ctx)); err != nil {
			p.logger.Error().
				Err(err).
				Str("reading_id", event.ReadingID).
				Msg("failed to publish event")
		}
	}()
}

// Close flushes outstanding messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// Ensure PubSubPublisher implements Publisher.
var _ Publisher = (*PubSubPublisher)(nil)
