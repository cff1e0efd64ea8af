// Package paramstore persists named string parameters in a local SQLite
// database. It backs the version bookkeeping of the promotion workflow and
// holds optional secrets like the github API token.
package paramstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/simplesurance/forkpromoter/internal/logfields"
)

//go:embed schema.sql
var schemaSQL string

const loggerName = "paramstore"

// ErrNotFound is returned by Get when no parameter with the given name
// exists.
var ErrNotFound = errors.New("parameter not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a durable key-value parameter store backed by SQLite.
// Writes overwrite the previous value, the last writer wins.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates the parameter database at path and initializes the
// schema. The parent directory is created when it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: zap.L().Named(loggerName),
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing store schema: %w", err)
	}

	store.logger.Debug(
		"parameter store opened",
		logfields.Event("paramstore_opened"),
		zap.String("db_file", path),
	)

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value of the parameter with the given name.
// ErrNotFound is returned when the parameter does not exist.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	var value string

	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT value FROM params WHERE name = ?", name,
		).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("reading parameter %q: %w", name, err)
	}

	return value, nil
}

// Put stores the value under name, overwriting an existing value.
func (s *Store) Put(ctx context.Context, name, value string) error {
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO params (name, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			name, value, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing parameter %q: %w", name, err)
	}

	s.logger.Debug(
		"parameter written",
		logfields.Event("paramstore_parameter_written"),
		zap.String("name", name),
	)

	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff

	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}

	return lastErr
}
