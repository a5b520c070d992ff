// Package db persists projects, user stories, tasks and the ordered queue
// of approved tasks per project. SQLite is the default backend; PostgreSQL
// runs the same queries through the driver package.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/taskq/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

const memoryDSN = ":memory:"

// DB is an open connection plus the dialect it speaks.
type DB struct {
	drv driver.Driver
	dsn string
}

// OpenInMemory opens a private in-memory SQLite database.
func OpenInMemory() (*DB, error) {
	return OpenWithDialect(memoryDSN, driver.DialectSQLite)
}

// OpenWithDialect connects to dsn. For a SQLite file the parent directory
// is created first.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if dialect == driver.DialectSQLite && dsn != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	return &DB{drv: drv, dsn: dsn}, nil
}

func (d *DB) Close() error { return d.drv.Close() }

// Path returns the DSN the database was opened with.
func (d *DB) Path() string { return d.dsn }

func (d *DB) DB() *sql.DB { return d.drv.DB() }

func (d *DB) Driver() driver.Driver { return d.drv }

func (d *DB) Dialect() driver.Dialect { return d.drv.Dialect() }

// Migrate applies the embedded {schemaType}_NNN.sql files for this dialect.
func (d *DB) Migrate(schemaType string) error {
	return d.drv.Migrate(context.Background(), schemaFS, schemaType)
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.drv.Exec(ctx, query, args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.drv.Query(ctx, query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.drv.QueryRow(ctx, query, args...)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (driver.Tx, error) {
	return d.drv.BeginTx(ctx, opts)
}
