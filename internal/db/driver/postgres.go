package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" database/sql driver
)

// SQLSTATE codes of a transaction that lost a race.
var pgRetryable = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// PostgresDriver talks to PostgreSQL through pgx's database/sql adapter.
type PostgresDriver struct {
	conn
}

// NewPostgres returns an unopened PostgreSQL driver.
func NewPostgres() *PostgresDriver {
	return &PostgresDriver{conn{rebind: rebindDollar}}
}

func (d *PostgresDriver) Open(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	d.db = db
	return nil
}

// BeginTx defaults to read committed; queue writes take row locks through
// ForUpdate.
func (d *PostgresDriver) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	if opts == nil {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return d.begin(ctx, opts)
}

func (d *PostgresDriver) Migrate(ctx context.Context, schema fs.FS, schemaType string) error {
	return migrator{
		dir: "schema/postgres",
		ddl: `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		record: "INSERT INTO _migrations (version) VALUES ($1)",
	}.run(ctx, d.db, schema, schemaType)
}

func (d *PostgresDriver) Dialect() Dialect { return DialectPostgres }
func (d *PostgresDriver) Rebind(query string) string { return rebindDollar(query) }
func (d *PostgresDriver) ForUpdate() string { return " FOR UPDATE" }

func (d *PostgresDriver) IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgRetryable[pgErr.Code]
}
