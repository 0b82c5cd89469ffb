package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// ErrSchemaVersion is returned by OpenExisting for a database written by a
// newer build.
var ErrSchemaVersion = errors.New("store: unsupported schema version")

// migration is one versioned DDL step. Versions are the 1-based positions
// in migrations; entries are append-only.
type migration struct {
	description string
	ddl         string
}

var migrations = []migration{
	{"graph tables", schemaSQL},
	{"lookup indexes", `
CREATE INDEX IF NOT EXISTS idx_nodes_key ON nodes(source, source_id);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_edges_rel ON edges(rel_type);`},
}

const versionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// migrate applies every migration newer than the recorded version, each in
// its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, versionTableSQL); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		m := migrations[i]
		version := i + 1
		slog.Debug("store: applying migration", "version", version, "description", m.description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", version, m.description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES (?, ?)", version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// checkVersion rejects databases this build cannot read.
func checkVersion(ctx context.Context, db *sql.DB) error {
	v, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if v == 0 || v > len(migrations) {
		return fmt.Errorf("%w: %d (supported 1..%d)", ErrSchemaVersion, v, len(migrations))
	}
	return nil
}
