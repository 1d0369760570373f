// Package app provides application lifecycle management for dealwatch.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/dealwatch/internal/announce"
	"github.com/jonesrussell/dealwatch/internal/api"
	"github.com/jonesrussell/dealwatch/internal/config"
	"github.com/jonesrussell/dealwatch/internal/database"
	"github.com/jonesrussell/dealwatch/internal/logger"
	"github.com/jonesrussell/dealwatch/internal/metrics"
	"github.com/jonesrussell/dealwatch/internal/publisher"
	"github.com/jonesrussell/dealwatch/internal/scanner"
	"github.com/jonesrussell/dealwatch/internal/storefront"
)

const (
	// DefaultShutdownTimeout is the timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	pingTimeout   = 5 * time.Second
	schemaTimeout = 30 * time.Second
)

// runner is one scheduled pipeline operation.
type runner interface {
	Run(ctx context.Context) error
}

// App holds the service with all its dependencies wired.
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *redis.Client
	cron        *cron.Cron
	httpServer  *http.Server
	version     string

	// gate serializes the three operations: one external rate budget,
	// one spender at a time.
	gate sync.Mutex

	discovery runner
	refresh   runner
	publish   runner
}

// Options contains configuration for creating a new App.
type Options struct {
	ConfigPath string
	Version    string
}

// New creates an App with all dependencies initialized.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "dealwatch"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancelSchema()
	if schemaErr := database.EnsureSchema(schemaCtx, db); schemaErr != nil {
		db.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("ensure schema: %w", schemaErr)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), pingTimeout)
	defer cancelPing()
	if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
		db.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to redis: %w", pingErr)
	}

	announcer, err := announce.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, appLogger)
	if err != nil {
		db.Close()
		redisClient.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("create announcer: %w", err)
	}

	tracker := metrics.NewTracker(redisClient, appLogger)
	records := database.NewRecordRepository(db)
	cursor := database.NewCursorRepository(db)

	client := storefront.NewClient(cfg.Storefront.BaseURL, cfg.Storefront.Region, cfg.Storefront.Timeout)
	gateway := storefront.NewGateway(client, storefront.GatewayConfig{
		RetryAttempts: cfg.Storefront.RetryAttempts,
		RetryPeriod:   cfg.Storefront.RetryPeriod,
		RateLimitRPS:  cfg.Storefront.RateLimitRPS,
	}, appLogger)

	a := &App{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		version:     opts.Version,
	}

	a.discovery = scanner.NewDiscovery(&a.gate, gateway, records, cursor, tracker, cfg.Pipeline.ProbeCount, appLogger)
	a.refresh = scanner.NewRefresh(&a.gate, gateway, records, tracker, cfg.Pipeline.UpdateLimit, appLogger)
	a.publish = publisher.New(&a.gate, gateway, records, announcer, tracker, appLogger)

	router := api.NewRouter(records, cursor, tracker, redisClient, appLogger)
	a.httpServer = router.NewServer(cfg.Server, cfg.Debug)

	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Run starts the schedule and the ops server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.startSchedule(runCtx); err != nil {
		return err
	}
	a.cron.Start()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("ops server listening", logger.String("address", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	a.logger.Info("schedule started",
		logger.Duration("discovery_interval", a.config.Pipeline.DiscoveryInterval),
		logger.Duration("refresh_interval", a.config.Pipeline.RefreshInterval),
		logger.Duration("publish_interval", a.config.Pipeline.PublishInterval))

	return a.waitForShutdown(cancel, serverErr)
}

// startSchedule registers the three operations on their own periods. Abort
// errors are intentionally not propagated: the next tick is the retry path.
func (a *App) startSchedule(ctx context.Context) error {
	a.cron = cron.New()

	jobs := []struct {
		name     string
		interval time.Duration
		job      runner
	}{
		{"discovery", a.config.Pipeline.DiscoveryInterval, a.discovery},
		{"refresh", a.config.Pipeline.RefreshInterval, a.refresh},
		{"publish", a.config.Pipeline.PublishInterval, a.publish},
	}

	for _, j := range jobs {
		job := j
		spec := fmt.Sprintf("@every %s", job.interval)
		if _, err := a.cron.AddFunc(spec, func() {
			if runErr := job.job.Run(ctx); runErr != nil {
				a.logger.Warn("scheduled run aborted",
					logger.String("job", job.name),
					logger.Error(runErr))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}
	return nil
}

func (a *App) waitForShutdown(cancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
		cancel()
		a.shutdown()
		return nil

	case err := <-serverErr:
		a.logger.Error("ops server error", logger.Error(err))
		cancel()
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	// Stop accepting new ticks; in-flight runs finish or abort on their own.
	stopCtx := a.cron.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("ops server shutdown failed", logger.Error(err))
	}

	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
		a.logger.Warn("timed out waiting for scheduled runs to finish")
	}
}

// Close releases all application resources.
func (a *App) Close() error {
	var errs []error

	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	_ = a.logger.Sync()

	return errors.Join(errs...)
}
