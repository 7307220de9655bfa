package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

var _ DBPool = (*pgxpool.Pool)(nil)

const (
	codeDiskFull             = "53100"
	codeProgramLimitExceeded = "54000"
	codeOutOfMemory          = "53200"
)

const createSnapshotTableSQL = `
	CREATE TABLE IF NOT EXISTS ledger_snapshots (
		key      TEXT PRIMARY KEY,
		data     JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const loadSnapshotSQL = `SELECT data FROM ledger_snapshots WHERE key = $1`

const saveSnapshotSQL = `
	INSERT INTO ledger_snapshots (key, data, saved_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, saved_at = NOW()`

// SnapshotRepository keeps each ledger snapshot as one JSONB row.
type SnapshotRepository struct {
	db     DBPool
	key    string
	logger *slog.Logger
}

var _ ledger.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db DBPool, key string, logger *slog.Logger) *SnapshotRepository {
	if db == nil {
		panic("DBPool cannot be nil for SnapshotRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewSnapshotRepository, using default stderr handler")
	}
	return &SnapshotRepository{
		db:     db,
		key:    key,
		logger: logger.With("component", "SnapshotRepository", "key", key),
	}
}

func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createSnapshotTableSQL); err != nil {
		r.logger.ErrorContext(ctx, "Failed to create snapshot table", slog.Any("error", err))
		return fmt.Errorf("%w: failed to create snapshot table: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, loadSnapshotSQL, r.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.InfoContext(ctx, "No snapshot stored yet")
		return nil, nil
	}
	if err != nil {
		return nil, translateDBError(err, r.logger)
	}
	r.logger.DebugContext(ctx, "Snapshot loaded", slog.Int("bytes", len(data)))
	return data, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, data []byte) error {
	tag, err := r.db.Exec(ctx, saveSnapshotSQL, r.key, data)
	if err != nil {
		return translateDBError(err, r.logger)
	}
	if tag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Unexpected rows affected while saving snapshot", slog.Int64("rows", tag.RowsAffected()))
	}
	return nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDiskFull, codeProgramLimitExceeded, codeOutOfMemory:
			contextLogger.Warn("Database rejected snapshot for lack of space", "code", pgErr.Code, "message", pgErr.Message)
			return apperrors.NewCapacityError(err, "database has no room for the snapshot")
		}
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}
