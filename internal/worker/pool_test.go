package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	wp := NewWorkerPool(2, 4, func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.JobID)
		mu.Unlock()
		return nil
	})
	wp.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, wp.Submit(context.Background(), Job{JobID: id, Kind: model.KindStock}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	wp.Stop(ctx)
}

func TestStopCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	var cancelled bool

	wp := NewWorkerPool(1, 1, func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		cancelled = true
		return ctx.Err()
	})
	wp.Start()
	require.NoError(t, wp.Submit(context.Background(), Job{JobID: "slow"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	wp.Stop(ctx)

	assert.True(t, cancelled)
}

func TestSubmitAfterStop(t *testing.T) {
	wp := NewWorkerPool(1, 1, func(ctx context.Context, job Job) error { return nil })
	wp.Start()
	wp.Stop(context.Background())

	err := wp.Submit(context.Background(), Job{JobID: "late"})
	assert.ErrorIs(t, err, ErrPoolStopped)
}
