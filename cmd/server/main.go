package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dandantas/pulse/internal/archive"
	"github.com/dandantas/pulse/internal/cache"
	"github.com/dandantas/pulse/internal/config"
	"github.com/dandantas/pulse/internal/database"
	"github.com/dandantas/pulse/internal/handler"
	"github.com/dandantas/pulse/internal/ledger"
	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/provider"
	"github.com/dandantas/pulse/internal/scheduler"
	"github.com/dandantas/pulse/internal/service"
	"github.com/dandantas/pulse/pkg/middleware"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	config.InitLogger(cfg)

	slog.Info("Starting Pulse feed service", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record sink
	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open record sink", "sink", cfg.SinkType, "error", err)
		os.Exit(1)
	}
	defer sinks.close()

	// Job status ledger
	jobLedger := ledger.New(cfg.LedgerRetention)
	go jobLedger.Run(ctx, cfg.LedgerSweepInterval)

	orch := service.NewOrchestrator(jobLedger, sinks.sink)
	runner := service.NewJobRunner(orch, cfg.WorkerPoolSize, cfg.JobQueueSize)

	var (
		dataHandlers []*handler.DataHandler
		schedulers   []*scheduler.Scheduler
	)
	issues := make(map[model.DataKind][]string, len(model.Kinds))

	for _, kind := range model.Kinds {
		kc := cfg.Kind(kind)

		fetcher, err := buildFetcher(kind, kc)
		if err != nil {
			slog.Error("Failed to build provider", "kind", kind, "error", err)
			os.Exit(1)
		}

		c := cache.New(kind)
		orch.Register(c, service.Strategy{Fetcher: fetcher, Policy: service.PolicyFor(kind)})
		tracker := service.NewTracker(c, orch, service.NewOnDemand(c, orch, cfg.ReadSingleFlight), kc.Keys, kc.StaleAfter)
		if sinks.archive != nil {
			warmStart(tracker, sinks.archive)
		}
		runner.Register(tracker, kc.ParsedJobKey())

		var history handler.HistoryReader
		if sinks.archive != nil {
			history = sinks.archive
		}
		dataHandlers = append(dataHandlers, handler.NewDataHandler(tracker, history))
		issues[kind] = kc.Issues()

		if cfg.SchedulerEnabled {
			schedule, err := scheduler.ParseSchedule(kc.Schedule, kc.PollingInterval)
			if err != nil {
				slog.Error("Invalid schedule", "kind", kind, "error", err)
				os.Exit(1)
			}
			schedulers = append(schedulers, scheduler.NewScheduler(kind, tracker.Keys(), schedule, orch))
		}

		slog.Info("Configured data kind",
			"kind", kind,
			"keys", len(kc.Keys),
			"simulated", kc.Simulated(),
			"triggerable", kc.JobKey != "",
		)
	}

	runner.Start()
	for _, s := range schedulers {
		if err := s.Start(ctx); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	healthHandler := handler.NewHealthHandler(cfg.SinkType, sinks.pinger(), issues, version)
	jobHandler := handler.NewJobHandler(runner, jobLedger)

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	router := handler.NewRouter(dataHandlers, jobHandler, healthHandler, corsConfig)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	slog.Info("Stopping schedulers...")
	for _, s := range schedulers {
		s.Stop(shutdownCtx)
	}

	slog.Info("Stopping job runner...")
	runner.Stop(shutdownCtx)

	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	slog.Info("Pulse feed service stopped")
}

func buildFetcher(kind model.DataKind, kc config.KindConfig) (provider.Fetcher, error) {
	if kc.Simulated() {
		slog.Warn("No provider base URL configured, serving simulated data", "kind", kind)
		return provider.NewSimulated(kind, kc.SimulatedLatency), nil
	}

	opts := provider.Options{
		BaseURL:     kc.APIBaseURL,
		APIKey:      kc.APIKey,
		RecordsPath: kc.RecordsPath,
		Fields:      provider.FieldMap(kc.Fields),
		Concurrency: kc.Concurrency,
		Retry: provider.RetryConfig{
			MaxAttempts:  kc.RetryMaxAttempts,
			InitialDelay: kc.RetryDelay,
			MaxDelay:     kc.RetryMaxDelay,
		},
		Client:  provider.NewHTTPClient(kc.RequestTimeout),
		Breaker: provider.NewCircuitBreaker(kc.BreakerThreshold, kc.BreakerTimeout),
	}

	switch kind {
	case model.KindStock:
		return provider.NewStockClient(opts)
	case model.KindWeather:
		return provider.NewWeatherClient(opts)
	}
	return nil, fmt.Errorf("no provider for kind %q", kind)
}

// warmStart seeds the tracker's cache with the latest archived records so reads are served before the first run
func warmStart(t *service.Tracker, store *archive.Store) {
	records, err := store.Latest(t.Kind())
	if err != nil {
		slog.Warn("Failed to restore cache from archive", "kind", t.Kind(), "error", err)
		return
	}
	if n := t.Restore(records); n > 0 {
		slog.Info("Restored cache from archive",
			"kind", t.Kind(),
			"records", n,
			"skipped", len(records)-n,
		)
	}
}

type sinkSet struct {
	sink    service.RecordSink
	mongo   *database.MongoDB
	archive *archive.Store
}

func openSinks(ctx context.Context, cfg *config.Config) (*sinkSet, error) {
	switch cfg.SinkType {
	case config.SinkMongo:
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			return nil, err
		}
		if err := database.CreateIndexes(ctx, db); err != nil {
			_ = db.Disconnect(context.Background())
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		return &sinkSet{sink: database.NewRecordRepository(db), mongo: db}, nil
	case config.SinkLevelDB:
		store, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		return &sinkSet{sink: store, archive: store}, nil
	default:
		return &sinkSet{}, nil
	}
}

func (s *sinkSet) pinger() handler.Pinger {
	if s.mongo != nil {
		return s.mongo
	}
	return nil
}

func (s *sinkSet) close() {
	if s.mongo != nil {
		if err := s.mongo.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			slog.Error("Failed to close archive", "error", err)
		}
	}
}
