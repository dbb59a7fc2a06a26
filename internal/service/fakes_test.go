package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dandantas/pulse/internal/cache"
	"github.com/dandantas/pulse/internal/ledger"
	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/provider"
)

type fakeFetcher struct {
	kind model.DataKind
	fn   func(ctx context.Context, keys []string) (provider.Result, error)

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeFetcher) Kind() model.DataKind { return f.kind }

func (f *fakeFetcher) Fetch(ctx context.Context, keys []string) (provider.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), keys...))
	f.mu.Unlock()
	return f.fn(ctx, keys)
}

func (f *fakeFetcher) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type fakeSink struct {
	mu      sync.Mutex
	saved   []model.DataRecord
	failErr error
}

func (s *fakeSink) Save(ctx context.Context, kind model.DataKind, records []model.DataRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saved = append(s.saved, records...)
	return nil
}

var errProvider = errors.New("provider unavailable")

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func quotesFor(keys []string) provider.Result {
	res := provider.Result{}
	for _, k := range keys {
		res.Records = append(res.Records, model.StockQuote{Symbol: k, Price: 10, Timestamp: testNow})
	}
	return res
}

func readingsExcept(failing string) func(ctx context.Context, keys []string) (provider.Result, error) {
	return func(ctx context.Context, keys []string) (provider.Result, error) {
		res := provider.Result{Failures: map[string]error{}}
		for _, k := range keys {
			if k == failing {
				res.Failures[k] = errProvider
				continue
			}
			res.Records = append(res.Records, model.WeatherReading{Location: k, Timestamp: testNow})
		}
		return res, nil
	}
}

type harness struct {
	ledger  *ledger.Ledger
	orch    *Orchestrator
	stocks  *cache.FreshnessCache
	weather *cache.FreshnessCache
	stockF  *fakeFetcher
	weathF  *fakeFetcher
	sink    *fakeSink
}

func newHarness() *harness {
	h := &harness{
		ledger:  ledger.New(ledger.DefaultRetention),
		stocks:  cache.New(model.KindStock),
		weather: cache.New(model.KindWeather),
		sink:    &fakeSink{},
		stockF: &fakeFetcher{kind: model.KindStock, fn: func(ctx context.Context, keys []string) (provider.Result, error) {
			return quotesFor(keys), nil
		}},
	}
	h.weathF = &fakeFetcher{kind: model.KindWeather, fn: readingsExcept("")}
	h.orch = NewOrchestrator(h.ledger, h.sink)
	h.orch.Register(h.stocks, Strategy{Fetcher: h.stockF})
	h.orch.Register(h.weather, Strategy{Fetcher: h.weathF})
	return h
}
