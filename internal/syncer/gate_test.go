package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*RunGate, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRunGate(client, time.Minute), server
}

func TestRunGateSerialisesRuns(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	release, err := gate.Acquire(ctx, "run-1")
	require.NoError(t, err)

	_, err = gate.Acquire(ctx, "run-2")
	require.ErrorIs(t, err, ErrRunActive)

	release()

	release2, err := gate.Acquire(ctx, "run-3")
	require.NoError(t, err)
	release2()
}

func TestRunGateLockExpires(t *testing.T) {
	gate, server := newTestGate(t)
	ctx := context.Background()

	_, err := gate.Acquire(ctx, "run-1")
	require.NoError(t, err)

	// A crashed holder never releases; the TTL frees the lock.
	server.FastForward(2 * time.Minute)

	release, err := gate.Acquire(ctx, "run-2")
	require.NoError(t, err)
	release()
}

func TestNilRunGateIsOpen(t *testing.T) {
	var gate *RunGate
	release, err := gate.Acquire(context.Background(), "run-1")
	require.NoError(t, err)
	release()
}
