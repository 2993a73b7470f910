package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresssense/stresssense/internal/device"
)

func seedDevice(t *testing.T, repo *device.InMemoryRepository) *device.Device {
	t.Helper()

	d := &device.Device{
		ID:         "dev_lastseen",
		EmployeeID: "emp_1",
		Name:       "workstation",
		Kind:       device.DefaultKind,
		KeyHash:    "abc123",
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := repo.Upsert(context.Background(), d)
	require.NoError(t, err)
	return d
}

func TestLastSeenWriter_AppliesUpdate(t *testing.T) {
	repo := device.NewInMemoryRepository()
	d := seedDevice(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	writer := device.NewLastSeenWriter(repo, zerolog.Nop())
	writer.Start(ctx)

	writer.Enqueue(d.ID)

	assert.Eventually(t, func() bool {
		got, err := repo.Get(context.Background(), d.ID)
		if err != nil {
			return false
		}
		return !got.LastSeenAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	writer.Wait()
}

func TestLastSeenWriter_UnknownDeviceDoesNotTripBreaker(t *testing.T) {
	repo := device.NewInMemoryRepository()
	d := seedDevice(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	writer := device.NewLastSeenWriter(repo, zerolog.Nop())
	writer.Start(ctx)

	// A missing device is treated as resolved, so subsequent updates for
	// real devices still go through.
	writer.Enqueue("dev_gone")
	writer.Enqueue(d.ID)

	assert.Eventually(t, func() bool {
		got, err := repo.Get(context.Background(), d.ID)
		if err != nil {
			return false
		}
		return !got.LastSeenAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	writer.Wait()
}

func TestLastSeenWriter_StopsOnCancel(t *testing.T) {
	repo := device.NewInMemoryRepository()

	ctx, cancel := context.WithCancel(context.Background())
	writer := device.NewLastSeenWriter(repo, zerolog.Nop())
	writer.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		writer.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop after context cancellation")
	}
}
