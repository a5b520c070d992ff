package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLiteDriver {
	t.Helper()
	drv := NewSQLite()
	require.NoError(t, drv.Open(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestNew(t *testing.T) {
	t.Parallel()
	for _, d := range []Dialect{DialectSQLite, DialectPostgres} {
		drv, err := New(d)
		require.NoError(t, err)
		assert.Equal(t, d, drv.Dialect())
	}
	_, err := New("oracle")
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	t.Parallel()
	valid := map[string]Dialect{
		"sqlite":     DialectSQLite,
		"sqlite3":    DialectSQLite,
		"SQLite":     DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"pg":         DialectPostgres,
	}
	for in, want := range valid {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"mysql", ""} {
		_, err := ParseDialect(in)
		assert.Error(t, err, in)
	}
}

func TestRebindDollar(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"SELECT 1":                              "SELECT 1",
		"SELECT * FROM t WHERE a = ?":           "SELECT * FROM t WHERE a = $1",
		"UPDATE t SET a = ?, b = ? WHERE c = ?": "UPDATE t SET a = $1, b = $2 WHERE c = $3",
		"SELECT '?' FROM t WHERE a = ?":         "SELECT '?' FROM t WHERE a = $1",
	}
	for in, want := range cases {
		assert.Equal(t, want, rebindDollar(in))
	}
}

func TestSQLiteDriver_QueriesAndTx(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t)
	ctx := context.Background()

	assert.Equal(t, "", drv.ForUpdate())
	assert.Equal(t, "SELECT ?", drv.Rebind("SELECT ?"))
	assert.NotNil(t, drv.DB())

	_, err := drv.Exec(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = drv.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, drv.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&n))
		return n
	}

	tx, err := drv.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "b")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 2, count())

	tx, err = drv.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "c")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Equal(t, 2, count())

	rows, err := drv.Query(ctx, "SELECT name FROM items ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		names = append(names, s)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestCloseWithoutOpen(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewSQLite().Close())
	assert.NoError(t, NewPostgres().Close())
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	lite := NewSQLite()
	assert.True(t, lite.IsTransient(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, lite.IsTransient(fmt.Errorf("update: %w", errors.New("SQLITE_LOCKED"))))
	assert.False(t, lite.IsTransient(errors.New("UNIQUE constraint failed")))
	assert.False(t, lite.IsTransient(nil))

	pg := NewPostgres()
	assert.True(t, pg.IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, pg.IsTransient(fmt.Errorf("move: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, pg.IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, pg.IsTransient(errors.New("SQLITE_BUSY")))
}

func TestPostgresDriver_Dialect(t *testing.T) {
	t.Parallel()
	drv := NewPostgres()
	assert.Equal(t, " FOR UPDATE", drv.ForUpdate())
	assert.Equal(t, "SELECT $1, $2", drv.Rebind("SELECT ?, ?"))
}

func TestSQLiteDriver_Migrate(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t)
	ctx := context.Background()

	schema := fstest.MapFS{
		"schema/test_002.sql":          {Data: []byte(`ALTER TABLE test_table ADD COLUMN note TEXT;`)},
		"schema/test_001.sql":          {Data: []byte(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, name TEXT);`)},
		"schema/test_draft.sql":        {Data: []byte(`not sql`)},
		"schema/other_001.sql":         {Data: []byte(`CREATE TABLE other_table (id INTEGER PRIMARY KEY);`)},
		"schema/postgres/test_001.sql": {Data: []byte(`not for sqlite`)},
	}
	require.NoError(t, drv.Migrate(ctx, schema, "test"))

	tables := func(name string) int {
		var n int
		require.NoError(t, drv.QueryRow(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n))
		return n
	}
	assert.Equal(t, 1, tables("test_table"))
	assert.Zero(t, tables("other_table"), "other schema types are skipped")

	var versions int
	require.NoError(t, drv.QueryRow(ctx, "SELECT COUNT(*) FROM _migrations").Scan(&versions))
	assert.Equal(t, 2, versions)

	// re-applying test_002 would fail on the duplicate column
	require.NoError(t, drv.Migrate(ctx, schema, "test"))
}

func TestSQLiteDriver_MigrateFailureRollsBack(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t)
	ctx := context.Background()

	schema := fstest.MapFS{
		"schema/bad_001.sql": {Data: []byte(`CREATE TABLE ok_table (id INTEGER); SELECT * FROM missing_table;`)},
	}
	require.Error(t, drv.Migrate(ctx, schema, "bad"))

	var versions int
	require.NoError(t, drv.QueryRow(ctx, "SELECT COUNT(*) FROM _migrations").Scan(&versions))
	assert.Zero(t, versions)
}

func TestMigrationVersion(t *testing.T) {
	t.Parallel()
	v, ok := migrationVersion("store_001.sql", "store_")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = migrationVersion("store_012.sql", "store_")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	for _, name := range []string{"store_abc.sql", "store_001.txt", "other_001.sql"} {
		_, ok := migrationVersion(name, "store_")
		assert.False(t, ok, name)
	}
}
