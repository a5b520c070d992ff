package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// migrator applies versioned schema files from one directory.
type migrator struct {
	dir    string // e.g. "schema" or "schema/postgres"
	ddl    string // creates _migrations
	record string // inserts one version
}

type migration struct {
	version int
	file    string
}

func (m migrator) run(ctx context.Context, db *sql.DB, schema fs.FS, schemaType string) error {
	if _, err := db.ExecContext(ctx, m.ddl); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	pending, err := m.scan(schema, schemaType)
	if err != nil {
		return err
	}

	for _, mg := range pending {
		if done[mg.version] {
			continue
		}
		body, err := fs.ReadFile(schema, path.Join(m.dir, mg.file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", mg.file, err)
		}
		if err := m.apply(ctx, db, mg, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

// scan lists {schemaType}_NNN.sql files in version order. Files whose
// suffix is not a number are ignored.
func (m migrator) scan(schema fs.FS, schemaType string) ([]migration, error) {
	entries, err := fs.ReadDir(schema, m.dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %s: %w", m.dir, err)
	}
	prefix := schemaType + "_"
	var out []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := migrationVersion(e.Name(), prefix); ok {
			out = append(out, migration{version: v, file: e.Name()})
		}
	}
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

// apply runs one file and records its version in a single transaction.
func (m migrator) apply(ctx context.Context, db *sql.DB, mg migration, body string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("apply migration %s: %w", mg.file, err)
	}
	if _, err = tx.ExecContext(ctx, m.record, mg.version); err != nil {
		return fmt.Errorf("record migration %s: %w", mg.file, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mg.file, err)
	}
	return nil
}

// migrationVersion parses "store_012.sql" with prefix "store_" as 12.
func migrationVersion(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".sql"))
	if err != nil {
		return 0, false
	}
	return v, true
}
