package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"

	goredis "github.com/redis/go-redis/v9"
)

// Client is the subset of *redis.Client the snapshot store needs.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

var _ Client = (*goredis.Client)(nil)

type SnapshotStore struct {
	client Client
	key    string
	logger *slog.Logger
}

var _ ledger.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(client Client, key string, logger *slog.Logger) *SnapshotStore {
	if client == nil {
		panic("redis client cannot be nil for SnapshotStore")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return &SnapshotStore{
		client: client,
		key:    key,
		logger: logger.With("component", "RedisSnapshotStore", "key", key),
	}
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		s.logger.InfoContext(ctx, "No snapshot stored yet")
		return nil, nil
	}
	if err != nil {
		return nil, s.translate(ctx, err)
	}
	return data, nil
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return s.translate(ctx, err)
	}
	return nil
}

func (s *SnapshotStore) translate(ctx context.Context, err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		s.logger.WarnContext(ctx, "Redis is out of memory", slog.Any("error", err))
		return apperrors.NewCapacityError(err, "redis maxmemory reached")
	}
	s.logger.ErrorContext(ctx, "Redis command failed", slog.Any("error", err))
	return fmt.Errorf("%w: redis: %w", apperrors.ErrDatabase, err)
}
