// Package app initializes and holds the long-lived services shared by the
// CLI commands: configuration, logging, the rate limiter, the circuit
// breaker, the API gateway, the persistence sink, and the progress hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/api"
	"github.com/riftwatch/rift-harvester/internal/config"
	"github.com/riftwatch/rift-harvester/internal/discovery"
	"github.com/riftwatch/rift-harvester/internal/health"
	"github.com/riftwatch/rift-harvester/internal/logging"
	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/progress"
	"github.com/riftwatch/rift-harvester/internal/progress/sinks"
	"github.com/riftwatch/rift-harvester/internal/ratelimit"
	"github.com/riftwatch/rift-harvester/internal/riot"
	"github.com/riftwatch/rift-harvester/internal/scrape"
	"github.com/riftwatch/rift-harvester/internal/store"
	"github.com/riftwatch/rift-harvester/internal/store/memory"
	"github.com/riftwatch/rift-harvester/internal/store/postgres"
)

// App is the dependency container built once at startup.
type App struct {
	Cfg       config.Config
	Log       *zap.Logger
	Platforms []model.Platform
	Limiter   *ratelimit.Limiter
	Breaker   *health.Breaker
	Client    *riot.Client
	Checker   *health.Manager
	Sink      store.Sink
	Snapshot  *sinks.SnapshotSink
	Hub       *progress.Hub
}

// New loads configuration and wires every service. The caller owns Close.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	platforms, err := model.Sequence(cfg.Scrape.Platforms)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Defaults: ratelimit.DefaultWindows(cfg.RateLimit.Per10Sec, cfg.RateLimit.Per10Min),
	})
	if err != nil {
		return nil, err
	}

	breaker := health.NewBreaker(health.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSeconds) * time.Second,
	})

	retryPolicy := health.RetryPolicy{
		Attempts: cfg.Retry.Attempts,
		Base:     time.Duration(cfg.Retry.BaseMs) * time.Millisecond,
		Factor:   cfg.Retry.Factor,
		MaxDelay: time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Jitter:   time.Duration(cfg.Retry.JitterMs) * time.Millisecond,
	}

	client := riot.NewClient(riot.Options{
		APIKey:  cfg.API.Key,
		Timeout: cfg.API.APITimeout(),
		Limiter: limiter,
		Breaker: breaker,
		Retry:   retryPolicy,
		Logger:  logger,
	})

	checker := health.NewManager(
		health.NewDNSChecker(time.Duration(cfg.Health.DNSTimeoutMs)*time.Millisecond),
		health.NewHTTPChecker(time.Duration(cfg.Health.HTTPTimeoutMs)*time.Millisecond, cfg.Health.StatusPath, cfg.API.Key),
		time.Duration(cfg.Health.CacheTTLSeconds)*time.Second,
		logger,
	)

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	snapshot := sinks.NewSnapshotSink()
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		sink.Close()
		return nil, err
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), promSink, snapshot)

	return &App{
		Cfg:       cfg,
		Log:       logger,
		Platforms: platforms,
		Limiter:   limiter,
		Breaker:   breaker,
		Client:    client,
		Checker:   checker,
		Sink:      sink,
		Snapshot:  snapshot,
		Hub:       hub,
	}, nil
}

func openSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Sink, error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory sink")
		return memory.New(), nil
	}
	pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.DB.DSN})
	if err != nil {
		return nil, fmt.Errorf("open postgres sink: %w", err)
	}
	return pg, nil
}

// Orchestrator builds the collection orchestrator on top of the container's
// services.
func (a *App) Orchestrator() (*scrape.Orchestrator, error) {
	queue := model.ParseQueue(a.Cfg.Scrape.Queue)
	start, end := a.Cfg.Scrape.PatchWindow()

	newEngine := func(model.Platform) scrape.Discoverer {
		return discovery.New(a.Client, discovery.Config{
			Queue:     queue,
			Seeds:     a.Cfg.Scrape.SeedPUUIDs,
			PageSize:  a.Cfg.Scrape.MatchesPerPlayer,
			StartTime: start,
			EndTime:   end,
			MaxSeeds:  a.Cfg.Scrape.SeedCount,
			Buffer:    a.Cfg.Scrape.ChunkSize,
		}, a.Log)
	}

	return scrape.New(a.Client, newEngine, a.Sink, a.Hub, scrape.Config{
		TargetPerRegion: int64(a.Cfg.Scrape.TargetPerRegion),
		GlobalCap:       int64(a.Cfg.Scrape.GlobalCap),
		MaxConcurrent:   int64(a.Cfg.Scrape.MaxConcurrent),
		Patch:           a.Cfg.Scrape.TargetPatch,
		Queue:           queue,
	}, a.Log)
}

// ServeDiagnostics starts the diagnostics HTTP server when enabled and
// returns its shutdown function.
func (a *App) ServeDiagnostics() (func(context.Context) error, error) {
	if !a.Cfg.Server.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           api.NewServer(a.Platforms, a.Checker, a.Breaker, a.Limiter, a.Snapshot, a.Log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Log.Info("diagnostics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("diagnostics server failed", zap.Error(err))
		}
	}()
	return srv.Shutdown, nil
}

// Close flushes the progress hub and releases the sink and logger.
func (a *App) Close(ctx context.Context) {
	if a.Hub != nil {
		if err := a.Hub.Close(ctx); err != nil {
			a.Log.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.Sink != nil {
		a.Sink.Close()
	}
	_ = a.Log.Sync()
}
