// Package jobs wires background processing: the scheduled reconciliation
// run and the Asynq worker that executes it.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/stoksync/stoksync/internal/jobs"
	"github.com/stoksync/stoksync/internal/syncer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncRun is the task type for a reconciliation run.
	TaskSyncRun = "sync:run"
)

// SyncRunPayload parameterises a reconciliation run task.
type SyncRunPayload struct {
	RunType string `json:"run_type"`
}

// NewSyncRunTask constructs an Asynq task for a reconciliation run.
func NewSyncRunTask(runType syncer.RunType) (*asynq.Task, error) {
	data, err := json.Marshal(SyncRunPayload{RunType: string(runType)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncRun, data), nil
}

// SyncRunJob executes reconciliation run tasks.
type SyncRunJob struct {
	engine  *syncer.Engine
	gate    *syncer.RunGate
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	after   func()
}

// NewSyncRunJob constructs SyncRunJob. The after hook runs when a run
// finishes, used to invalidate cached dashboard data. It may be nil,
// as may metrics.
func NewSyncRunJob(engine *syncer.Engine, gate *syncer.RunGate, logger *slog.Logger, metrics *jobmetrics.Metrics, after func()) *SyncRunJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncRunJob{engine: engine, gate: gate, logger: logger, metrics: metrics, after: after}
}

// Handle processes one TaskSyncRun task. An already-active run is not an
// error: the task is dropped and the next cron tick tries again.
func (j *SyncRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SyncRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	runType := syncer.RunType(payload.RunType)
	if runType != syncer.RunTypeManual {
		runType = syncer.RunTypeScheduled
	}

	release, err := j.gate.Acquire(ctx, uuid.NewString())
	if err != nil {
		if errors.Is(err, syncer.ErrRunActive) {
			j.metrics.AddSkip(TaskSyncRun, "run_active")
			j.logger.Info("sync run skipped, another run is active")
			return nil
		}
		return err
	}
	defer release()

	tracker := j.metrics.Track(TaskSyncRun)
	result := j.engine.Run(ctx, runType, j.after)
	_ = tracker.End(nil)
	j.logger.Info("scheduled sync run finished",
		slog.String("run_id", result.RunID),
		slog.String("status", result.Status),
		slog.Int("products_sent", result.ProductsSent),
		slog.Int("issues_found", result.IssuesFound))
	return nil
}
