package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS recurrence_patterns (
					id TEXT PRIMARY KEY,
					merchant_name TEXT NOT NULL,
					merchant_key TEXT NOT NULL,
					description_pattern TEXT DEFAULT '',
					category TEXT DEFAULT '',
					category_type TEXT DEFAULT '',
					amount REAL NOT NULL,
					amount_tolerance_percent REAL NOT NULL DEFAULT 5,
					frequency TEXT NOT NULL,
					interval_days INTEGER NOT NULL DEFAULT 0,
					first_occurrence DATETIME,
					last_occurrence DATETIME,
					next_expected_date DATETIME,
					occurrence_count INTEGER NOT NULL DEFAULT 0,
					confidence_score REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL,
					detection_method TEXT NOT NULL,
					user_confirmed BOOLEAN NOT NULL DEFAULT 0,
					user_customized BOOLEAN NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					notes TEXT DEFAULT '',
					version INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_patterns_status ON recurrence_patterns(status)`,
				`CREATE INDEX idx_patterns_merchant_key ON recurrence_patterns(merchant_key)`,
				`CREATE INDEX idx_patterns_next_expected ON recurrence_patterns(next_expected_date)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					name TEXT NOT NULL,
					merchant_name TEXT,
					account_id TEXT,
					amount REAL NOT NULL,
					category TEXT DEFAULT '',
					category_type TEXT DEFAULT '',
					processed BOOLEAN NOT NULL DEFAULT 0,
					pattern_id TEXT REFERENCES recurrence_patterns(id),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(merchant_name)`,
				`CREATE INDEX idx_transactions_pattern ON transactions(pattern_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add pattern event history for auditing",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pattern_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pattern_id TEXT NOT NULL,
					from_status TEXT NOT NULL DEFAULT '',
					to_status TEXT NOT NULL DEFAULT '',
					note TEXT DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (pattern_id) REFERENCES recurrence_patterns(id)
				)`,
				`CREATE INDEX idx_pattern_events_pattern_id ON pattern_events(pattern_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Composite index for due/overdue queries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_patterns_status_next
				ON recurrence_patterns(status, next_expected_date)`)
			return err
		},
	},
	{
		Version:     4,
		Description: "Track consecutive pending matches for auto-promotion",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE recurrence_patterns
				ADD COLUMN pending_streak INTEGER NOT NULL DEFAULT 0`)
			return err
		},
	},
}

// SchemaVersion reports the schema version currently applied to the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
