package archive

import (
	"context"
	"testing"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLatest(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := s.Save(context.Background(), model.KindStock, []model.DataRecord{
		model.StockQuote{Symbol: "AAPL", Price: 190, Timestamp: base},
		model.StockQuote{Symbol: "MSFT", Price: 410, Timestamp: base},
	})
	require.NoError(t, err)

	err = s.Save(context.Background(), model.KindStock, []model.DataRecord{
		model.StockQuote{Symbol: "AAPL", Price: 191, Timestamp: base.Add(time.Minute)},
	})
	require.NoError(t, err)

	latest, err := s.Latest(model.KindStock)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byKey := map[string]model.StockQuote{}
	for _, rec := range latest {
		q := rec.(model.StockQuote)
		byKey[q.Symbol] = q
	}
	assert.Equal(t, 191.0, byKey["AAPL"].Price)
	assert.Equal(t, 410.0, byKey["MSFT"].Price)
}

func TestStore_OlderCaptureDoesNotMoveLatest(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(context.Background(), model.KindWeather, []model.DataRecord{
		model.WeatherReading{Location: "London", Temperature: 12, Timestamp: base},
	}))
	require.NoError(t, s.Save(context.Background(), model.KindWeather, []model.DataRecord{
		model.WeatherReading{Location: "London", Temperature: 3, Timestamp: base.Add(-time.Hour)},
	}))

	latest, err := s.Latest(model.KindWeather)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 12.0, latest[0].(model.WeatherReading).Temperature)
}

func TestStore_HistoryNewestFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, s.Save(context.Background(), model.KindStock, []model.DataRecord{
			model.StockQuote{Symbol: "aapl", Price: float64(100 + i), Timestamp: base.Add(time.Duration(i) * time.Minute)},
		}))
	}

	hist, err := s.History(model.KindStock, "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 102.0, hist[0].(model.StockQuote).Price)
	assert.Equal(t, 101.0, hist[1].(model.StockQuote).Price)

	other, err := s.Latest(model.KindWeather)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_SaveAfterClose(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Save(context.Background(), model.KindStock, []model.DataRecord{
		model.StockQuote{Symbol: "AAPL", Timestamp: time.Now()},
	})
	assert.Error(t, err)
}

func TestStore_RecordsWithoutTimestampKeepHistory(t *testing.T) {
	s := openTemp(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	for _, price := range []float64{1, 2} {
		require.NoError(t, s.Save(context.Background(), model.KindStock, []model.DataRecord{
			model.StockQuote{Symbol: "AAA", Price: price},
		}))
	}

	hist, err := s.History(model.KindStock, "AAA", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 2.0, hist[0].(model.StockQuote).Price)
	assert.False(t, hist[1].CapturedAt().IsZero())

	latest, err := s.Latest(model.KindStock)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 2.0, latest[0].(model.StockQuote).Price)
	assert.Equal(t, clock, latest[0].CapturedAt())
}
