package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/service"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// State is the lifecycle state of a scheduler
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner performs one fetch run
type Runner interface {
	Run(ctx context.Context, kind model.DataKind, keys []string) (service.RunResult, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// fixedDelay fires every d after the previous tick. Unlike cron.Every it keeps sub-second precision.
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// ParseSchedule returns the cron schedule for expr, or a fixed delay of interval when expr is empty
func ParseSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		if interval <= 0 {
			return nil, fmt.Errorf("polling interval must be positive, got %s", interval)
		}
		return fixedDelay(interval), nil
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// Scheduler periodically refreshes every configured key of one kind
type Scheduler struct {
	kind     model.DataKind
	keys     []string
	schedule cron.Schedule
	runner   Runner
	now      func() time.Time

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates an idle scheduler
func NewScheduler(kind model.DataKind, keys []string, schedule cron.Schedule, runner Runner) *Scheduler {
	return &Scheduler{
		kind:     kind,
		keys:     keys,
		schedule: schedule,
		runner:   runner,
		now:      time.Now,
	}
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start launches the refresh loop. The loop stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	slog.Info("Starting scheduler",
		"kind", s.kind,
		"keys", strings.Join(s.keys, ","),
		"first_tick", s.schedule.Next(s.now()).Format(time.RFC3339),
	)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go s.run(loopCtx)
	return nil
}

// Stop cancels the loop, including any in-flight fetch, and waits for it to exit
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	slog.Info("Stopping scheduler", "kind", s.kind)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped", "kind", s.kind)
	case <-ctx.Done():
		slog.Warn("Timeout waiting for scheduler to stop", "kind", s.kind)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	defer s.state.Store(int32(StateStopped))

	// Run immediately on start
	if len(s.keys) > 0 {
		s.tick(ctx)
	}

	for {
		now := s.now()
		wait := s.schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			s.tick(ctx)
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Scheduler context done", "kind", s.kind)
			return
		}
	}
}

// tick performs one run. Failures are logged and never end the loop.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	correlationID := uuid.New().String()
	slog.Debug("Scheduler tick", "kind", s.kind, "correlation_id", correlationID)

	start := time.Now()
	res, err := s.runner.Run(ctx, s.kind, s.keys)
	duration := time.Since(start)

	switch {
	case err == nil:
		slog.Info("Scheduled refresh completed",
			"kind", s.kind,
			"job_id", res.JobID,
			"records_processed", res.RecordsProcessed,
			"correlation_id", correlationID,
			"duration_ms", duration.Milliseconds(),
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		slog.Info("Scheduled refresh cancelled",
			"kind", s.kind,
			"job_id", res.JobID,
			"correlation_id", correlationID,
		)
	default:
		slog.Error("Scheduled refresh failed",
			"kind", s.kind,
			"job_id", res.JobID,
			"correlation_id", correlationID,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	}
}
