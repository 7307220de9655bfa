package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS ledger_snapshots (
		key      TEXT PRIMARY KEY,
		data     BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);`

const loadSnapshotSQL = `SELECT data FROM ledger_snapshots WHERE key = ?`

const saveSnapshotSQL = `
	INSERT INTO ledger_snapshots (key, data, saved_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`

// SnapshotRepository stores the ledger snapshot in a single SQLite row.
type SnapshotRepository struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

var _ ledger.SnapshotStore = (*SnapshotRepository)(nil)

// Open creates the database file if needed and initializes the schema.
func Open(dataSourceName, key string, logger *slog.Logger) (*SnapshotRepository, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	logger.Info("SQLite snapshot store ready", "path", dataSourceName)
	return &SnapshotRepository{
		db:     db,
		key:    key,
		logger: logger.With("component", "SQLiteSnapshotRepository", "key", key),
	}, nil
}

func (r *SnapshotRepository) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, loadSnapshotSQL, r.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, r.logger)
	}
	return data, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, data []byte) error {
	if _, err := r.db.ExecContext(ctx, saveSnapshotSQL, r.key, data, time.Now().UTC()); err != nil {
		return translateError(err, r.logger)
	}
	return nil
}

func (r *SnapshotRepository) Close() error {
	return r.db.Close()
}

func translateError(err error, logger *slog.Logger) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrFull, sqlite3.ErrTooBig:
			logger.Warn("SQLite rejected snapshot for lack of space", "code", int(sqliteErr.Code))
			return apperrors.NewCapacityError(err, "sqlite database is full")
		}
		logger.Error("SQLite error", "code", int(sqliteErr.Code), "error", err)
		return fmt.Errorf("%w: sqlite error code %d", apperrors.ErrDatabase, int(sqliteErr.Code))
	}
	logger.Error("Generic database error", "error", err)
	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}
