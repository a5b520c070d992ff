package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	_ "modernc.org/sqlite"
)

const sqlitePragmas = `
	PRAGMA foreign_keys = ON;
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA busy_timeout = 5000;
`

// SQLiteDriver talks to a SQLite file (or ":memory:") through modernc.org/sqlite.
type SQLiteDriver struct {
	conn
}

// NewSQLite returns an unopened SQLite driver.
func NewSQLite() *SQLiteDriver {
	return &SQLiteDriver{conn{rebind: identity}}
}

func (d *SQLiteDriver) Open(dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to ":memory:" is a separate database
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqlitePragmas); err != nil {
		_ = db.Close()
		return fmt.Errorf("set pragmas: %w", err)
	}
	d.db = db
	return nil
}

func (d *SQLiteDriver) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	return d.begin(ctx, opts)
}

func (d *SQLiteDriver) Migrate(ctx context.Context, schema fs.FS, schemaType string) error {
	return migrator{
		dir: "schema",
		ddl: `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT (datetime('now'))
		)`,
		record: "INSERT INTO _migrations (version) VALUES (?)",
	}.run(ctx, d.db, schema, schemaType)
}

func (d *SQLiteDriver) Dialect() Dialect { return DialectSQLite }
func (d *SQLiteDriver) Rebind(query string) string { return query }
func (d *SQLiteDriver) ForUpdate() string { return "" }

var sqliteContention = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"database is locked",
	"database table is locked",
}

// IsTransient matches busy and locked errors by message; modernc wraps
// them without a stable exported type.
func (d *SQLiteDriver) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range sqliteContention {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
