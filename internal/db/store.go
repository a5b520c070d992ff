package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/randalmurphal/taskq/internal/db/driver"
)

// TxRunner provides a transactional execution interface.
// This allows operations to run within a transaction context,
// ensuring atomicity of multi-table operations.
type TxRunner interface {
	// RunInTx executes the given function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	RunInTx(ctx context.Context, fn func(tx *TxOps) error) error
}

// TxOps provides database operations within a transaction.
// The context is stored and used for all operations, enabling cancellation
// and timeout propagation through the entire transaction.
type TxOps struct {
	tx        driver.Tx
	dialect   driver.Dialect
	forUpdate string
	ctx       context.Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, query, args...)
}

// Query executes a query that returns rows within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, query, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, query, args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Dialect returns the database dialect.
func (t *TxOps) Dialect() driver.Dialect {
	return t.dialect
}

// RetryConfig controls how RunInTxRetry replays transactions that failed on
// lock contention.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryConfig returns three attempts starting at 10ms with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
	}
}

// Store provides operations on the taskq store database.
type Store struct {
	*DB
	retry RetryConfig
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetry sets the transaction retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func newStore(d *DB, opts ...Option) *Store {
	s := &Store{
		DB:    d,
		retry: DefaultRetryConfig(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStore opens the SQLite store at path and applies migrations.
func OpenStore(path string, opts ...Option) (*Store, error) {
	return OpenStoreWithDialect(path, driver.DialectSQLite, opts...)
}

// OpenStoreWithDialect opens the store with a specific dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenStoreWithDialect(dsn string, dialect driver.Dialect, opts ...Option) (*Store, error) {
	d, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}

	if err := d.Migrate("store"); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	return newStore(d, opts...), nil
}

// OpenStoreInMemory opens a migrated in-memory SQLite store.
func OpenStoreInMemory(opts ...Option) (*Store, error) {
	d, err := OpenInMemory()
	if err != nil {
		return nil, err
	}

	if err := d.Migrate("store"); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	return newStore(d, opts...), nil
}

// Now returns the current time from the store clock, in UTC.
func (s *Store) Now() time.Time {
	return s.clock().UTC()
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:        tx,
		dialect:   s.Dialect(),
		forUpdate: s.Driver().ForUpdate(),
		ctx:       ctx,
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RunInTxRetry runs fn through RunInTx, replaying the whole transaction with
// exponential backoff when it fails on lock contention. Any other error is
// returned after the first attempt.
func (s *Store) RunInTxRetry(ctx context.Context, fn func(tx *TxOps) error) error {
	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  s.retry.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})

	// Permanent failures leave the retry loop as a success and are reported
	// from here.
	var permanent error
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		permanent = nil
		err := s.RunInTx(ctx, fn)
		if err != nil && !s.Driver().IsTransient(err) {
			permanent = err
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

// Ensure Store implements TxRunner
var _ TxRunner = (*Store)(nil)
