package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/google/uuid"
)

// DefaultRetention is how long a job status stays queryable after it starts
const DefaultRetention = 24 * time.Hour

// Ledger is an in-memory store for fetch run statuses
type Ledger struct {
	mu        sync.RWMutex
	jobs      map[string]*model.JobStatus
	retention time.Duration
	now       func() time.Time
}

// New creates a ledger with the given retention
func New(retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{
		jobs:      make(map[string]*model.JobStatus),
		retention: retention,
		now:       time.Now,
	}
}

// WithClock overrides the ledger clock
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Begin records a new Running job and returns its id
func (l *Ledger) Begin(kind model.DataKind, metadata map[string]string) string {
	jobID := uuid.New().String()

	status := &model.JobStatus{
		JobID:     jobID,
		JobType:   kind.JobType(),
		Kind:      kind,
		State:     model.JobRunning,
		StartTime: l.now().UTC(),
		Metadata:  make(map[string]string, len(metadata)),
	}
	for k, v := range metadata {
		status.Metadata[k] = v
	}

	l.mu.Lock()
	l.jobs[jobID] = status
	l.mu.Unlock()

	return jobID
}

// Complete moves a Running job to Completed and merges result metadata
func (l *Ledger) Complete(jobID string, result map[string]string) {
	l.finish(jobID, model.JobCompleted, "", result)
}

// Fail moves a Running job to Failed with an error message
func (l *Ledger) Fail(jobID string, message string) {
	l.finish(jobID, model.JobFailed, message, nil)
}

func (l *Ledger) finish(jobID string, state model.JobState, message string, result map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	status, exists := l.jobs[jobID]
	if !exists {
		slog.Warn("Job status not found", "job_id", jobID, "state", state)
		return
	}
	if status.State.Terminal() {
		slog.Warn("Job already finished, ignoring transition",
			"job_id", jobID,
			"current_state", status.State,
			"requested_state", state,
		)
		return
	}

	end := l.now().UTC()
	status.State = state
	status.EndTime = &end
	status.ErrorMessage = message
	for k, v := range result {
		status.Metadata[k] = v
	}
}

// Get returns a copy of the job status. Expired jobs are reported absent.
func (l *Ledger) Get(jobID string) (model.JobStatus, bool) {
	l.mu.RLock()
	status, exists := l.jobs[jobID]
	if !exists {
		l.mu.RUnlock()
		return model.JobStatus{}, false
	}
	if l.expired(status) {
		l.mu.RUnlock()
		l.mu.Lock()
		delete(l.jobs, jobID)
		l.mu.Unlock()
		return model.JobStatus{}, false
	}
	out := status.Clone()
	l.mu.RUnlock()
	return out, true
}

// Len returns the number of retained jobs
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.jobs)
}

// Sweep removes expired jobs and returns how many were dropped
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, status := range l.jobs {
		if l.expired(status) {
			delete(l.jobs, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired jobs every interval until ctx is cancelled
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				slog.Debug("Swept expired job statuses", "count", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Ledger) expired(status *model.JobStatus) bool {
	return l.now().Sub(status.StartTime) > l.retention
}
