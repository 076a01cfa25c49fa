package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vidtrace/internal/config"
)

// Store owns the forensics database connection.
type Store struct {
	db   *sql.DB
	path string
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or connects to the forensics database under the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database file at path, creating the schema when absent.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Assets() *AssetRepo { return &AssetRepo{q: s.db} }

func (s *Store) Events() *EventRepo { return &EventRepo{q: s.db} }

func (s *Store) Snapshots() *SnapshotRepo { return &SnapshotRepo{q: s.db} }

func (s *Store) LinkLog() *LinkLogRepo { return &LinkLogRepo{q: s.db} }

func (s *Store) SyncQueue() *SyncQueueRepo { return &SyncQueueRepo{q: s.db} }

// Tx scopes repositories to one transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Assets() *AssetRepo { return &AssetRepo{q: t.tx, inTx: true} }

func (t *Tx) Events() *EventRepo { return &EventRepo{q: t.tx, inTx: true} }

func (t *Tx) Snapshots() *SnapshotRepo { return &SnapshotRepo{q: t.tx, inTx: true} }

func (t *Tx) LinkLog() *LinkLogRepo { return &LinkLogRepo{q: t.tx, inTx: true} }

func (t *Tx) SyncQueue() *SyncQueueRepo { return &SyncQueueRepo{q: t.tx, inTx: true} }

// WithTx runs fn inside a transaction, committing when fn returns nil. The
// whole transaction is retried when SQLite reports the database busy.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(&Tx{tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
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
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

// exec runs a write statement. Outside a transaction it retries on SQLITE_BUSY;
// inside one the caller's WithTx retries the whole unit instead.
func exec(ctx context.Context, q dbtx, inTx bool, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	if inTx {
		return q.ExecContext(ctx, query, args...)
	}
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = q.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}
