package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLedger() (*Ledger, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(DefaultRetention).WithClock(clock.Now), clock
}

func TestBeginCreatesRunningJob(t *testing.T) {
	l, clock := newLedger()

	jobID := l.Begin(model.KindStock, map[string]string{"keys": "AAPL,MSFT"})
	_, err := uuid.Parse(jobID)
	require.NoError(t, err)

	status, ok := l.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, model.JobRunning, status.State)
	assert.Equal(t, "StockRefresh", status.JobType)
	assert.Equal(t, clock.Now(), status.StartTime)
	assert.Nil(t, status.EndTime)
	assert.Equal(t, "AAPL,MSFT", status.Metadata["keys"])
}

func TestCompleteMergesMetadata(t *testing.T) {
	l, clock := newLedger()
	jobID := l.Begin(model.KindWeather, map[string]string{"keys": "London"})

	clock.Advance(2 * time.Second)
	l.Complete(jobID, map[string]string{"records_processed": "1"})

	status, ok := l.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, model.JobCompleted, status.State)
	require.NotNil(t, status.EndTime)
	assert.Equal(t, 2*time.Second, status.EndTime.Sub(status.StartTime))
	assert.Equal(t, "London", status.Metadata["keys"])
	assert.Equal(t, "1", status.Metadata["records_processed"])
	assert.Empty(t, status.ErrorMessage)
}

func TestFailRecordsMessage(t *testing.T) {
	l, _ := newLedger()
	jobID := l.Begin(model.KindStock, nil)

	l.Fail(jobID, "provider unavailable")

	status, ok := l.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, model.JobFailed, status.State)
	assert.Equal(t, "provider unavailable", status.ErrorMessage)
	assert.NotNil(t, status.EndTime)
}

func TestTerminalStateIsFinal(t *testing.T) {
	l, _ := newLedger()
	jobID := l.Begin(model.KindStock, nil)

	l.Complete(jobID, nil)
	l.Fail(jobID, "late failure")

	status, _ := l.Get(jobID)
	assert.Equal(t, model.JobCompleted, status.State)
	assert.Empty(t, status.ErrorMessage)
}

func TestUnknownJobIsIgnored(t *testing.T) {
	l, _ := newLedger()

	assert.NotPanics(t, func() {
		l.Complete("missing", nil)
		l.Fail("missing", "boom")
	})
	_, ok := l.Get("missing")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	l, _ := newLedger()
	jobID := l.Begin(model.KindStock, map[string]string{"keys": "AAPL"})

	status, _ := l.Get(jobID)
	status.Metadata["keys"] = "mutated"
	status.State = model.JobFailed

	again, _ := l.Get(jobID)
	assert.Equal(t, "AAPL", again.Metadata["keys"])
	assert.Equal(t, model.JobRunning, again.State)
}

func TestExpiry(t *testing.T) {
	l, clock := newLedger()
	old := l.Begin(model.KindStock, nil)
	l.Complete(old, nil)

	clock.Advance(12 * time.Hour)
	recent := l.Begin(model.KindWeather, nil)

	clock.Advance(12*time.Hour + time.Second)

	_, ok := l.Get(old)
	assert.False(t, ok)
	_, ok = l.Get(recent)
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	l, clock := newLedger()
	for i := 0; i < 3; i++ {
		l.Begin(model.KindStock, nil)
	}
	clock.Advance(DefaultRetention + time.Minute)
	l.Begin(model.KindStock, nil)

	assert.Equal(t, 3, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestJobIDsAreUnique(t *testing.T) {
	l, _ := newLedger()
	seen := make(map[string]struct{})

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := l.Begin(model.KindStock, nil)
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 100)
}
