// Package sqlite is the persistence adapter backing all store ports with a
// single embedded database. Every multi-row mutation runs in one transaction
// so the ledgers never expose a half-applied state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

// Store implements the port store interfaces on a sqlite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at dbPath and runs migrations.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single connection serializes writers, which sqlite wants anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports database liveness for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ErrStorage{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.ErrStorage{Op: op, Err: err}
	}
	return nil
}

func storageErr(op string, err error) error {
	return &domain.ErrStorage{Op: op, Err: err}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// nullable maps empty strings to NULL for optional reference columns.
func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
