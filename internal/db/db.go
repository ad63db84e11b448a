package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"golang.org/x/mod/semver"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SchemaVersion is written to the version table once all patches are applied.
const SchemaVersion = "v0.2.0"

type patch struct {
	version     string
	description string
	apply       func(ctx context.Context, tx *sql.Tx) error
}

// patches run once, in order, when the stored version is lower than theirs.
var patches = []patch{
	{version: "v0.2.0", description: "add nodes.tags", apply: ensureTagsColumn},
}

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// OpenRaw opens path without touching the schema. The pool is limited to one
// connection: a command runs on a single connection, and ":memory:" databases
// are per connection.
func OpenRaw(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return InTx(ctx, db, func(tx *sql.Tx) error {
		return migrate(ctx, tx)
	})
}

func migrate(ctx context.Context, tx *sql.Tx) error {
	current, err := readVersion(ctx, tx)
	if err != nil {
		return err
	}
	if semver.Compare(current, SchemaVersion) >= 0 {
		return nil
	}

	for _, p := range patches {
		if semver.Compare(p.version, current) <= 0 {
			continue
		}
		if err := p.apply(ctx, tx); err != nil {
			return fmt.Errorf("patch %s (%s): %w", p.version, p.description, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM version"); err != nil {
		return fmt.Errorf("clear version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO version (version) VALUES (?)", SchemaVersion); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

// readVersion returns the stored schema version, "v0.0.0" when none is stored.
func readVersion(ctx context.Context, tx *sql.Tx) (string, error) {
	var version string
	err := tx.QueryRowContext(ctx, "SELECT version FROM version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return "v0.0.0", nil
	}
	if err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	if !semver.IsValid(version) {
		return "", fmt.Errorf("stored schema version %q is not a semantic version", version)
	}
	return version, nil
}

// Version reports the schema version stored in db.
func Version(ctx context.Context, db *sql.DB) (string, error) {
	var version string
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		version, err = readVersion(ctx, tx)
		return err
	})
	return version, err
}

func ensureTagsColumn(ctx context.Context, tx *sql.Tx) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM pragma_table_info('nodes') WHERE name = 'tags' LIMIT 1").Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check nodes.tags column: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "ALTER TABLE nodes ADD COLUMN tags TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("add nodes.tags column: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction, committing only when fn succeeds.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
