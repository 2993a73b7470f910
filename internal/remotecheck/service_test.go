package remotecheck_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresssense/stresssense/internal/command"
	"github.com/stresssense/stresssense/internal/device"
	"github.com/stresssense/stresssense/internal/remotecheck"
	"github.com/stresssense/stresssense/internal/secrets"
)

type fixture struct {
	devices  *device.Service
	commands *command.Service
	checks   *remotecheck.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sm, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	devices := device.NewService(device.ServiceConfig{
		Repo:    device.NewInMemoryRepository(),
		Secrets: sm,
		Logger:  zerolog.Nop(),
	})
	commands := command.NewService(command.NewInMemoryRepository(), devices, zerolog.Nop())
	checks := remotecheck.NewService(remotecheck.ServiceConfig{
		Devices:  devices,
		Commands: commands,
		Kind:     "agent",
		Logger:   zerolog.Nop(),
	})
	return &fixture{devices: devices, commands: commands, checks: checks}
}

func (f *fixture) registerAgent(t *testing.T, employeeID string) *device.Device {
	t.Helper()
	d, _, err := f.devices.Register(context.Background(), employeeID, "desktop", "agent")
	require.NoError(t, err)
	return d
}

// Request -> poll -> resolve, the whole correlation round trip.
func TestService_RemoteCheckRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.registerAgent(t, "emp-1")

	c, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, c.DeviceID)
	assert.Equal(t, command.StatusPending, c.Status)

	poll, err := f.checks.PollPending(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, poll.Pending)
	assert.Equal(t, c.ID, poll.RequestID)
	assert.Equal(t, c.CreatedAt, poll.CreatedAt)

	require.NoError(t, f.checks.Resolve(ctx, poll.RequestID, d.ID, false, ""))

	resolved, err := f.commands.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, command.StatusDone, resolved.Status)

	after, err := f.checks.PollPending(ctx, "emp-1")
	require.NoError(t, err)
	assert.False(t, after.Pending)
	assert.Empty(t, after.RequestID)
}

func TestService_Request_NoActiveDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checks.Request(ctx, "emp-unknown")
	assert.ErrorIs(t, err, remotecheck.ErrNoActiveDevice)

	// A deactivated device does not count.
	d := f.registerAgent(t, "emp-1")
	require.NoError(t, f.devices.Deactivate(ctx, d.ID))
	_, err = f.checks.Request(ctx, "emp-1")
	assert.ErrorIs(t, err, remotecheck.ErrNoActiveDevice)
}

func TestService_Request_WrongKindIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.devices.Register(ctx, "emp-1", "phone", "mobile")
	require.NoError(t, err)

	_, err = f.checks.Request(ctx, "emp-1")
	assert.ErrorIs(t, err, remotecheck.ErrNoActiveDevice)
}

// With two checks outstanding the agent is pointed at the newest one.
func TestService_PollPending_MostRecentWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "emp-1")

	_, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)
	newest, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)

	poll, err := f.checks.PollPending(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, poll.Pending)
	assert.Equal(t, newest.ID, poll.RequestID)
}

func TestService_Resolve_Failed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.registerAgent(t, "emp-1")

	c, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)

	require.NoError(t, f.checks.Resolve(ctx, c.ID, d.ID, true, "no face detected"))

	resolved, err := f.commands.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, command.StatusFailed, resolved.Status)
	require.NotNil(t, resolved.Error)
	assert.Equal(t, "no face detected", *resolved.Error)
}

// A dangling request id must never bubble up as an error: the reference is
// best-effort correlation, not a guaranteed join.
func TestService_Resolve_UnknownRequestID(t *testing.T) {
	f := newFixture(t)
	d := f.registerAgent(t, "emp-1")
	assert.NoError(t, f.checks.Resolve(context.Background(), "cmd_gone", d.ID, false, ""))
}

// A device may only close its own command. A request id naming another
// device's command is swallowed like an unknown id and the command stays
// pending.
func TestService_Resolve_OtherDevicesCommandUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "emp-1")
	intruder := f.registerAgent(t, "emp-2")

	c, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)

	require.NoError(t, f.checks.Resolve(ctx, c.ID, intruder.ID, false, ""))

	after, err := f.commands.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, command.StatusPending, after.Status)

	poll, err := f.checks.PollPending(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, poll.Pending)
}

func TestService_Resolve_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.registerAgent(t, "emp-1")

	c, err := f.checks.Request(ctx, "emp-1")
	require.NoError(t, err)

	require.NoError(t, f.checks.Resolve(ctx, c.ID, d.ID, false, ""))
	require.NoError(t, f.checks.Resolve(ctx, c.ID, d.ID, false, ""))
	// A later failure report does not rewrite the done outcome.
	require.NoError(t, f.checks.Resolve(ctx, c.ID, d.ID, true, "late error"))

	resolved, err := f.commands.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, command.StatusDone, resolved.Status)
}
