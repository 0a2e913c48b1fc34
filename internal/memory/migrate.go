package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schema lists the statements that bring the database to each version; the
// applied version is kept in PRAGMA user_version. Append, never edit.
var schema = [][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS events (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			memory_id      TEXT NOT NULL,
			actor_id       TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			user_input     TEXT NOT NULL,
			agent_response TEXT NOT NULL,
			created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_memory ON events(memory_id, seq)`,
	},
	2: {
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(memory_id, actor_id, session_id, seq)`,
	},
}

// latestVersion is the version a fully migrated database reports.
var latestVersion = len(schema) - 1

// SchemaVersion reports the user_version of db; 0 for a new file.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate upgrades db to latestVersion. Each version is applied in its own
// transaction together with the user_version bump.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > latestVersion {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", current, latestVersion)
	}
	for v := current + 1; v <= latestVersion; v++ {
		if err := applyVersion(ctx, db, v); err != nil {
			return err
		}
		logger.Info("memory schema migrated", "version", v)
	}
	return nil
}

func applyVersion(ctx context.Context, db *sql.DB, v int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate v%d: %w", v, err)
	}
	defer tx.Rollback()

	for i, stmt := range schema[v] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate v%d step %d: %w", v, i+1, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, v)); err != nil {
		return fmt.Errorf("migrate v%d: record version: %w", v, err)
	}
	return tx.Commit()
}
