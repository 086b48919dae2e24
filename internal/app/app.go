// Package app provides the main application lifecycle management for the
// gopost service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gopost/internal/api"
	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/events"
	"github.com/jonesrussell/gopost/internal/facebook"
	"github.com/jonesrussell/gopost/internal/generation"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/pipeline"
	"github.com/jonesrussell/gopost/internal/scheduler"
	"github.com/jonesrussell/gopost/internal/store"
	"github.com/jonesrussell/gopost/internal/topics"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second

	pingTimeout = 5 * time.Second
)

// App represents the gopost application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	redisClient *redis.Client
	scheduler   *scheduler.Scheduler
	httpServer  *http.Server
	version     string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "gopost"),
		logger.String("version", opts.Version),
	)

	st, redisClient, err := store.Connect(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("create store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if pingErr := st.Ping(ctx); pingErr != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", pingErr)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	assets, err := generation.NewAssets(cfg.Assets.Dir)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("create asset dirs: %w", err)
	}

	keySvc := keys.NewService(st, m, appLogger)
	recorder := events.NewRecorder(st, appLogger)
	fbClient := facebook.NewClient(nil, appLogger)

	runner := pipeline.NewRunner(pipeline.Deps{
		Store:               st,
		Keys:                keySvc,
		Events:              recorder,
		Metrics:             m,
		Logger:              appLogger,
		Discoverer:          topics.NewDiscoverer(nil, appLogger),
		Selector:            topics.NewFilter(st, appLogger, cfg.Topics.SimilarityThreshold),
		Scripts:             generation.NewScriptGenerator(keySvc, nil),
		Voices:              generation.NewVoiceGenerator(keySvc, nil, assets, appLogger),
		Images:              generation.NewImageGenerator(keySvc, nil, assets, cfg.Cloudflare.AccountID, appLogger),
		Assembler:           generation.NewAssembler(assets, appLogger),
		Uploader:            generation.NewUploader(nil),
		Publisher:           fbClient,
		Assets:              assets,
		CloudflareAccountID: cfg.Cloudflare.AccountID,
	})

	sched := scheduler.New(st, runner, m, appLogger, cfg.Scheduler.TickInterval)

	router := api.NewRouter(api.Deps{
		Store:     st,
		Keys:      keySvc,
		Runner:    runner,
		Refresher: sched,
		Verifier:  fbClient,
		Registry:  registry,
		Logger:    appLogger,
		Config:    cfg,
	})

	return &App{
		config:      cfg,
		logger:      appLogger,
		redisClient: redisClient,
		scheduler:   sched,
		httpServer:  router.NewServer(),
		version:     opts.Version,
	}, nil
}

// Run starts the HTTP server and the scheduler and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	schedulerDone := make(chan struct{})

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()

	go func() {
		a.logger.Info("starting HTTP server",
			logger.String("address", a.config.Server.Address))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		a.scheduler.Start(schedCtx)
		close(schedulerDone)
	}()

	return a.waitForShutdown(schedCancel, schedulerDone, serverErr)
}

// waitForShutdown handles graceful shutdown
func (a *App) waitForShutdown(schedCancel context.CancelFunc, schedulerDone chan struct{}, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully",
			logger.String("signal", sig.String()))

	case err := <-serverErr:
		a.logger.Error("server error", logger.Error(err))
		shutdownErr = err
	}

	schedCancel()
	a.shutdownHTTPServer()

	select {
	case <-schedulerDone:
	case <-time.After(DefaultShutdownTimeout):
		a.logger.Warn("scheduler did not stop within shutdown timeout")
	}

	a.logger.Info("service stopped")
	return shutdownErr
}

// shutdownHTTPServer gracefully shuts down the HTTP server
func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close Redis client", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}
