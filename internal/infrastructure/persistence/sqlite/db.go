package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
)

type txKey struct{}

// DB wraps sql.DB and implements TransactionManager. Repositories join the
// transaction through ExecutorFrom.
type DB struct {
	*sql.DB
	logger *zap.Logger

	beginAttempts int
	beginBackoff  time.Duration
}

// Option configures DB
type Option func(*DB)

// WithBeginRetry retries BEGIN up to attempts times while SQLite reports the
// database busy or locked. Only BEGIN is retried: once fn has run, errors
// are returned as they are.
func WithBeginRetry(attempts int, backoff time.Duration) Option {
	return func(db *DB) {
		db.beginAttempts = attempts
		db.beginBackoff = backoff
	}
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:            sqlDB,
		logger:        logger,
		beginAttempts: 3,
		beginBackoff:  25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.beginAttempts < 1 {
		db.beginAttempts = 1
	}
	return db
}

// WithTransaction runs fn inside a transaction carried in the context.
// Nested calls join the outer transaction. fn's error comes back unwrapped
// so business errors still match with errors.Is.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := db.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	var lastErr error
	for attempt := 1; attempt <= db.beginAttempts; attempt++ {
		tx, err := db.BeginTx(ctx, nil)
		if err == nil {
			return tx, nil
		}
		lastErr = err
		if !isBusy(err) || attempt == db.beginAttempts {
			break
		}

		db.logger.Warn("Database busy, retrying begin",
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(db.beginBackoff * time.Duration(attempt)):
		}
	}

	db.logger.Error("Failed to begin transaction", zap.Error(lastErr))
	return nil, fmt.Errorf("failed to begin transaction: %w", lastErr)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFrom returns the transaction carried by ctx, or db when there is none
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

var _ port.TransactionManager = (*DB)(nil)
