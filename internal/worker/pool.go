package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is stopped")

// ExecutorFunc processes a single job
type ExecutorFunc func(ctx context.Context, job Job) error

// WorkerPool runs queued jobs on a fixed set of goroutines
type WorkerPool struct {
	workers    int
	jobs       chan Job
	executorFn ExecutorFunc
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, jobQueueSize int, fn ExecutorFunc) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers:    workers,
		jobs:       make(chan Job, jobQueueSize),
		executorFn: fn,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	slog.Info("Starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels in-flight jobs, drains the queue and waits for workers.
// Drained jobs run with a cancelled context so they still reach a terminal state.
func (wp *WorkerPool) Stop(ctx context.Context) {
	slog.Info("Stopping worker pool")

	// Cancel first so a Submit blocked on a full queue releases its read lock.
	wp.cancel()

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for workers to finish")
	}
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobs <- job:
		slog.Debug("Job submitted to worker pool", "job_id", job.JobID, "kind", job.Kind)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrPoolStopped
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for job := range wp.jobs {
		slog.Debug("Worker processing job", "worker_id", id, "job_id", job.JobID)

		if err := wp.executorFn(wp.ctx, job); err != nil {
			slog.Debug("Job finished with error", "worker_id", id, "job_id", job.JobID, "error", err)
		}
	}

	slog.Debug("Worker stopped", "worker_id", id)
}
