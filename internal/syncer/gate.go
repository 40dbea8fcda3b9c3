package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const runLockKey = "stoksync:sync:run-lock"

// ErrRunActive indicates another reconciliation run currently holds the
// lock. A refused run writes nothing: no history entry, no issues.
var ErrRunActive = errors.New("syncer: another sync run is already active")

// RunGate serialises runs across every trigger surface (HTTP, cron)
// with a Redis lock. The TTL bounds how long a crashed process can keep
// the lock.
type RunGate struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunGate constructs RunGate.
func NewRunGate(client *redis.Client, ttl time.Duration) *RunGate {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunGate{client: client, ttl: ttl}
}

// Acquire takes the run lock for runID and returns a release function.
// Returns ErrRunActive when another run holds it.
func (g *RunGate) Acquire(ctx context.Context, runID string) (func(), error) {
	if g == nil || g.client == nil {
		return func() {}, nil
	}
	ok, err := g.client.SetNX(ctx, runLockKey, runID, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunActive
	}
	release := func() {
		// Release must survive caller cancellation so the next run
		// is not blocked until the TTL expires.
		g.client.Del(context.WithoutCancel(ctx), runLockKey)
	}
	return release, nil
}
