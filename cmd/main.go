package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "loan-ledger/docs"
	"loan-ledger/internal/api"
	"loan-ledger/internal/batch"
	"loan-ledger/internal/config"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/event"
	redisstore "loan-ledger/internal/infrastructure/cache/redis"
	"loan-ledger/internal/infrastructure/database/postgres"
	"loan-ledger/internal/infrastructure/database/sqlite"
	"loan-ledger/internal/infrastructure/logging"
	"loan-ledger/internal/infrastructure/monitoring"
	"loan-ledger/internal/infrastructure/resilience"
	"loan-ledger/internal/infrastructure/storage"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// @title Loan Ledger API
// @version 1.0
// @description Lending ledger for a single operator: borrowers, loans, payments, journals and reports.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("Application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, logger := initializeApp()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initialize snapshot storage: %w", err)
	}
	defer closeStore()

	publisher, closePublisher := initializePublisher(cfg, logger)
	defer closePublisher()

	collector := monitoring.NewCollector(prometheus.DefaultRegisterer)
	svc, err := initializeLedger(ctx, cfg, store, publisher, collector, logger)
	if err != nil {
		return err
	}

	reminderJob := batch.NewCollectionReminderJob(svc, publisher, collector, logger)
	cronScheduler := startBatchJobs(cfg, logger, reminderJob)

	router := api.SetupRouter(ctx, svc, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	return handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "storage_backend", cfg.Storage.Backend)

	return cfg, logger
}

// openStore builds the configured snapshot backend. Remote backends go
// through a circuit breaker and every backend is subject to the size quota.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ledger.SnapshotStore, func(), error) {
	var (
		backend ledger.SnapshotStore
		closer  = func() {}
	)

	switch name := strings.ToLower(strings.TrimSpace(cfg.Backend)); name {
	case "", "memory":
		backend = storage.NewMemoryStore()

	case "sqlite":
		repo, err := sqlite.Open(cfg.SQLite.Path, cfg.Key, logger)
		if err != nil {
			return nil, nil, err
		}
		backend = repo
		closer = func() {
			logger.Info("Closing SQLite database...")
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close SQLite database", slog.Any("error", err))
			}
		}

	case "postgres":
		pool, err := postgres.NewConnectionPool(ctx, cfg.Postgres, cfg.Timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewSnapshotRepository(pool, cfg.Key, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		backend = resilience.NewBreakerStore(repo, resilience.NewCircuitBreaker("postgres-snapshots", logger), cfg.Timeout)
		closer = func() {
			logger.Info("Closing database connection pool...")
			pool.Close()
		}

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingTimeout := cfg.Timeout
		if pingTimeout <= 0 {
			pingTimeout = 5 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		store := redisstore.NewSnapshotStore(client, cfg.Key, logger)
		backend = resilience.NewBreakerStore(store, resilience.NewCircuitBreaker("redis-snapshots", logger), cfg.Timeout)
		closer = func() {
			logger.Info("Closing redis client...")
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", slog.Any("error", err))
			}
		}

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", name)
	}

	return storage.WithLimit(backend, cfg.MaxBytes), closer, nil
}

func initializePublisher(cfg *config.Config, logger *slog.Logger) (event.EventPublisher, func()) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, ledger events will not be published")
		return event.NopEventPublisher{}, func() {}
	}

	conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("Continuing without event publishing", slog.Any("error", err))
		return event.NopEventPublisher{}, func() {}
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to set up RabbitMQ publisher, continuing without event publishing", slog.Any("error", err))
		_ = conn.Close()
		return event.NopEventPublisher{}, func() {}
	}
	return publisher, func() {
		logger.Info("Closing RabbitMQ connection...")
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ connection", slog.Any("error", err))
		}
	}
}

func initializeLedger(
	ctx context.Context,
	cfg *config.Config,
	store ledger.SnapshotStore,
	publisher event.EventPublisher,
	recorder ledger.Recorder,
	logger *slog.Logger,
) (ledger.Service, error) {
	logger.Info("Initializing ledger...", "backend", cfg.Storage.Backend, "max_bytes", cfg.Storage.MaxBytes)

	terms, err := loan.ParseTerms(cfg.Loan.DefaultTerms)
	if err != nil {
		logger.Warn("Invalid default terms, falling back", "configured", cfg.Loan.DefaultTerms, "terms", loan.DefaultTerms.String())
		terms = loan.DefaultTerms
	}

	svc := ledger.NewLedgerService(store, logger,
		ledger.WithEventPublisher(publisher),
		ledger.WithRecorder(recorder),
		ledger.WithDefaultTerms(terms),
	)

	result, err := svc.Load(ctx)
	switch {
	case err != nil && result == nil:
		return nil, fmt.Errorf("load ledger: %w", err)
	case err != nil:
		logger.Warn("Ledger loaded but the migrated snapshot could not be saved", slog.Any("error", err))
	case result.Discarded:
		logger.Warn("Stored snapshot was unreadable and has been discarded")
	}
	return svc, nil
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Loan ledger listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverErrors <- err
	}()
	return srv, serverErrors, shutdownChan
}

// handleShutdown blocks until a signal arrives or the server stops, then drains
// the scheduler and the HTTP server.
func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) error {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		logger.Info("HTTP server stopped before any signal")
	}

	stopScheduler(cronScheduler, 15*time.Second, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful HTTP shutdown failed, forcing close", slog.Any("error", err))
		return errors.Join(err, srv.Close())
	}
	logger.Info("Shutdown complete")
	return nil
}

// stopScheduler waits for a running reminder sweep to finish, up to timeout.
func stopScheduler(c *cron.Cron, timeout time.Duration, logger *slog.Logger) {
	select {
	case <-c.Stop().Done():
		logger.Info("Cron scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Cron scheduler did not stop in time", slog.Duration("timeout", timeout))
	}
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, reminderJob *batch.CollectionReminderJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.ReminderSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 8 * * *"
		logger.Warn("Collection reminder schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.ReminderTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "CollectionReminder")
		jobLogger.Info("Cron triggered: Running collection reminder job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := reminderJob.Run(ctx); runErr != nil {
			jobLogger.Error("Collection reminder job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Collection reminder job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule collection reminder job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled collection reminder job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	if uri == "" {
		return nil, fmt.Errorf("RabbitMQ URL is not configured")
	}

	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					if e != nil {
						logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
					}
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}
