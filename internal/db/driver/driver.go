// Package driver hides the differences between the SQLite and PostgreSQL
// backends behind one interface. Callers always write '?' placeholders.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Dialect names a supported backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver is a database connection for one dialect.
type Driver interface {
	Open(dsn string) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)

	// Migrate applies the {schemaType}_NNN.sql files of this dialect found
	// in schema that are not yet recorded.
	Migrate(ctx context.Context, schema fs.FS, schemaType string) error

	Dialect() Dialect
	Rebind(query string) string

	// ForUpdate is the row-lock suffix for SELECT, empty when the backend
	// only locks the whole database.
	ForUpdate() string

	// IsTransient reports lock contention that is safe to retry.
	IsTransient(err error) bool

	DB() *sql.DB
}

// Tx is a transaction that rebinds placeholders like its Driver.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

// New returns an unopened driver for dialect.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	}
	return nil, fmt.Errorf("unsupported dialect: %s", dialect)
}

// ParseDialect accepts the usual spellings of each backend name.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown dialect: %s", s)
}

// conn is the database/sql plumbing both drivers share.
type conn struct {
	db     *sql.DB
	rebind func(string) string
}

func (c *conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, c.rebind(query), args...)
}

func (c *conn) DB() *sql.DB { return c.db }

func (c *conn) begin(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{Tx: tx, rebind: c.rebind}, nil
}

type sqlTx struct {
	*sql.Tx
	rebind func(string) string
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.QueryContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.QueryRowContext(ctx, t.rebind(query), args...)
}

func identity(q string) string { return q }

// rebindDollar numbers '?' placeholders as $1, $2, ... outside of single
// quoted literals.
func rebindDollar(query string) string {
	if !strings.ContainsRune(query, '?') {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n, quoted := 0, false
	for i := 0; i < len(query); i++ {
		switch c := query[i]; {
		case c == '\'':
			quoted = !quoted
			out = append(out, c)
		case c == '?' && !quoted:
			n++
			out = append(out, '$')
			out = strconv.AppendInt(out, int64(n), 10)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
