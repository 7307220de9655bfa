package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"loan-ledger/internal/config"
	"loan-ledger/internal/event"
	"loan-ledger/internal/infrastructure/logging"
	"loan-ledger/internal/infrastructure/storage"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeApp(t *testing.T) {
	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store round trip", func(t *testing.T) {
		store, closer, err := openStore(ctx, config.StorageConfig{Backend: "memory"}, discardLogger())
		require.NoError(t, err)
		defer closer()

		require.NoError(t, store.Save(ctx, []byte(`{"v":1}`)))
		data, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, string(data))
	})

	t.Run("quota applies to every backend", func(t *testing.T) {
		store, closer, err := openStore(ctx, config.StorageConfig{Backend: "Memory", MaxBytes: 4}, discardLogger())
		require.NoError(t, err)
		defer closer()

		assert.IsType(t, &storage.LimitStore{}, store)
		assert.Error(t, store.Save(ctx, []byte("too large")))
	})

	t.Run("sqlite backend", func(t *testing.T) {
		cfg := config.StorageConfig{
			Backend: "sqlite",
			Key:     "test",
			SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
		}
		store, closer, err := openStore(ctx, cfg, discardLogger())
		require.NoError(t, err)
		defer closer()

		data, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := openStore(ctx, config.StorageConfig{Backend: "s3"}, discardLogger())
		assert.ErrorContains(t, err, `unknown storage backend "s3"`)
	})
}

func TestInitializePublisherDisabled(t *testing.T) {
	cfg := &config.Config{RabbitMQ: config.RabbitMQConfig{Enabled: false}}
	publisher, closer := initializePublisher(cfg, discardLogger())
	defer closer()

	assert.IsType(t, event.NopEventPublisher{}, publisher)
}

func TestInitializeLedger(t *testing.T) {
	cfg := &config.Config{Loan: config.LoanConfig{DefaultTerms: "fortnightly"}}
	svc, err := initializeLedger(context.Background(), cfg, storage.NewMemoryStore(), event.NopEventPublisher{}, nil, discardLogger())

	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Empty(t, svc.Borrowers(context.Background()))
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	logger := logging.NewLogger(config.LoggerConfig{})
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	defer srv.Close()

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestHandleShutdown(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cronScheduler := cron.New()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	go func() {
		shutdownChan <- syscall.SIGINT
	}()

	assert.NoError(t, handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger))
}

func TestHandleShutdownServerFailure(t *testing.T) {
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("address already in use")

	err := handleShutdown(&http.Server{}, cron.New(), make(chan os.Signal), serverErrors, discardLogger())
	assert.ErrorContains(t, err, "address already in use")
}
