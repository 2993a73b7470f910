package device

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// lastSeenBuffer bounds how many pending updates may queue before new ones
// are dropped. Last-seen is best-effort by contract, so dropping is fine.
const lastSeenBuffer = 256

// LastSeenWriter applies last-seen updates outside the request path. Updates
// are retried briefly with exponential backoff; a circuit breaker stops the
// writer from hammering a store that is down. Both failure modes drop the
// update rather than surfacing an error to the authenticating request.
type LastSeenWriter struct {
	store   Repository
	updates chan lastSeenUpdate
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
	done    chan struct{}
}

type lastSeenUpdate struct {
	deviceID string
	seenAt   time.Time
}

// NewLastSeenWriter creates a writer over the given repository.
func NewLastSeenWriter(store Repository, logger zerolog.Logger) *LastSeenWriter {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "device-last-seen",
		Timeout: 30 * time.Second,
	})

	return &LastSeenWriter{
		store:   store,
		updates: make(chan lastSeenUpdate, lastSeenBuffer),
		breaker: breaker,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is cancelled.
func (w *LastSeenWriter) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-w.updates:
				w.apply(ctx, u)
			}
		}
	}()
}

// Wait blocks until the writer loop has exited.
func (w *LastSeenWriter) Wait() {
	<-w.done
}

// Enqueue schedules a last-seen update for the device. Never blocks: when
// the buffer is full the update is dropped.
func (w *LastSeenWriter) Enqueue(deviceID string) {
	u := lastSeenUpdate{deviceID: deviceID, seenAt: time.Now().UTC()}
	select {
	case w.updates <- u:
	default:
		w.logger.Debug().Str("device_id", deviceID).Msg("last-seen buffer full, update dropped")
	}
}

func (w *LastSeenWriter) apply(ctx context.Context, u lastSeenUpdate) {
	_, err := w.breaker.Execute(func() (struct{}, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxElapsedTime = 5 * time.Second

		op := func() error {
			err := w.store.TouchLastSeen(ctx, u.deviceID, u.seenAt)
			if err == nil || errors.Is(err, ErrNotFound) {
				// A deactivated-and-gone device is not a transient failure.
				return nil
			}
			return err
		}
		return struct{}{}, backoff.Retry(op, backoff.WithContext(bo, ctx))
	})
	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("device_id", u.deviceID).
			Msg("last-seen update dropped")
	}
}
