package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/worker"
	"github.com/google/uuid"
)

// ErrInvalidJobKey is returned when a trigger presents the wrong job key
var ErrInvalidJobKey = errors.New("invalid job key")

// JobRunner starts full refresh runs in the background on behalf of external triggers
type JobRunner struct {
	orch     *Orchestrator
	pool     *worker.WorkerPool
	trackers map[model.DataKind]*Tracker
	jobKeys  map[model.DataKind]uuid.UUID
}

// NewJobRunner creates a runner backed by a worker pool of the given size
func NewJobRunner(orch *Orchestrator, workers, queueSize int) *JobRunner {
	r := &JobRunner{
		orch:     orch,
		trackers: make(map[model.DataKind]*Tracker),
		jobKeys:  make(map[model.DataKind]uuid.UUID),
	}
	r.pool = worker.NewWorkerPool(workers, queueSize, r.execute)
	return r
}

// Register makes a kind triggerable with the given job key.
// A nil job key disables triggering for the kind.
func (r *JobRunner) Register(t *Tracker, jobKey uuid.UUID) {
	r.trackers[t.Kind()] = t
	r.jobKeys[t.Kind()] = jobKey
}

func (r *JobRunner) Start() {
	r.pool.Start()
}

func (r *JobRunner) Stop(ctx context.Context) {
	r.pool.Stop(ctx)
}

// Trigger validates key and queues a refresh of every configured key for kind.
// The returned job id is queryable immediately.
func (r *JobRunner) Trigger(ctx context.Context, kind model.DataKind, key uuid.UUID) (string, error) {
	tracker, ok := r.trackers[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	expected := r.jobKeys[kind]
	if expected == uuid.Nil || key != expected {
		return "", ErrInvalidJobKey
	}

	keys := tracker.Keys()
	jobID, err := r.orch.Begin(kind, keys)
	if err != nil {
		return "", err
	}

	if err := r.pool.Submit(ctx, worker.Job{JobID: jobID, Kind: kind, Keys: keys}); err != nil {
		r.orch.Ledger().Fail(jobID, fmt.Sprintf("failed to queue job: %v", err))
		return "", fmt.Errorf("failed to queue job: %w", err)
	}

	slog.Info("Queued triggered fetch run", "job_id", jobID, "kind", kind)
	return jobID, nil
}

func (r *JobRunner) execute(ctx context.Context, job worker.Job) error {
	if len(job.Keys) == 0 {
		r.orch.Ledger().Complete(job.JobID, map[string]string{"records_processed": "0"})
		return nil
	}
	_, err := r.orch.Execute(ctx, job.JobID, job.Kind, job.Keys)
	return err
}
