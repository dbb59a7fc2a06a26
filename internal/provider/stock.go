package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dandantas/pulse/internal/model"
)

// DefaultStockFields maps quote fields to their location inside one record
var DefaultStockFields = FieldMap{
	"symbol":         "$.symbol",
	"price":          "$.price",
	"change":         "$.change",
	"percent_change": "$.percentChange",
	"volume":         "$.volume",
	"timestamp":      "$.timestamp",
}

// StockClient fetches quotes for all symbols in a single batch request
type StockClient struct {
	opts    Options
	caller  *caller
	extract *extractor
}

// NewStockClient creates a batch stock quote fetcher
func NewStockClient(opts Options) (*StockClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("stock provider base URL is required")
	}
	if opts.RecordsPath == "" {
		opts.RecordsPath = "$.data"
	}

	ex, err := newExtractor(opts.RecordsPath, DefaultStockFields, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("stock provider: %w", err)
	}

	return &StockClient{
		opts:    opts,
		caller:  newCaller("stock", opts.Client, opts.Retry, opts.Breaker),
		extract: ex,
	}, nil
}

func (c *StockClient) Kind() model.DataKind {
	return model.KindStock
}

// Fetch requests every symbol at once. Any transport or decoding error fails the whole batch.
func (c *StockClient) Fetch(ctx context.Context, keys []string) (Result, error) {
	u, err := c.opts.endpoint("/api/v1/stocks", url.Values{"symbols": {strings.Join(keys, ",")}})
	if err != nil {
		return Result{}, &FetchError{Kind: model.KindStock, Keys: keys, Err: err}
	}

	slog.Info("Fetching stock data", "symbols", strings.Join(keys, ","))

	body, err := c.caller.get(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &FetchError{Kind: model.KindStock, Keys: keys, Err: err}
	}

	raw, err := c.extract.records(body)
	if err != nil {
		return Result{}, &FetchError{Kind: model.KindStock, Keys: keys, Err: err}
	}

	records := make([]model.DataRecord, 0, len(raw))
	for _, item := range raw {
		quote, err := toQuote(c.extract.values(item))
		if err != nil {
			slog.Warn("Skipping malformed stock record", "error", err)
			continue
		}
		records = append(records, quote)
	}

	return Result{Records: records}, nil
}

func toQuote(v map[string]any) (model.StockQuote, error) {
	symbol := coerceString(v["symbol"])
	if symbol == "" {
		return model.StockQuote{}, fmt.Errorf("record has no symbol")
	}

	q := model.StockQuote{Symbol: symbol}
	var err error
	if q.Price, err = coerceNumber(v["price"]); err != nil {
		return q, fmt.Errorf("price: %w", err)
	}
	if q.Change, err = coerceNumber(v["change"]); err != nil {
		return q, fmt.Errorf("change: %w", err)
	}
	if q.PercentChange, err = coerceNumber(v["percent_change"]); err != nil {
		return q, fmt.Errorf("percent_change: %w", err)
	}
	volume, err := coerceNumber(v["volume"])
	if err != nil {
		return q, fmt.Errorf("volume: %w", err)
	}
	q.Volume = int64(volume)
	if q.Timestamp, err = coerceTime(v["timestamp"]); err != nil {
		return q, fmt.Errorf("timestamp: %w", err)
	}
	return q, nil
}
