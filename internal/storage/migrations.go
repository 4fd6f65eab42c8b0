package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

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
				`CREATE TABLE IF NOT EXISTS products (
					key TEXT PRIMARY KEY,
					description TEXT NOT NULL DEFAULT '',
					supplier_code TEXT,
					active INTEGER NOT NULL DEFAULT 1,
					needs_enrichment INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_products_active ON products(active)`,

				`CREATE TABLE IF NOT EXISTS prices (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product_key TEXT NOT NULL,
					price_case REAL,
					price_pack REAL,
					price_retail REAL,
					cost REAL,
					effective_date DATETIME,
					is_current INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (product_key) REFERENCES products(key)
				)`,
				`CREATE INDEX idx_prices_product ON prices(product_key)`,
				`CREATE UNIQUE INDEX idx_prices_one_current
					ON prices(product_key) WHERE is_current = 1`,

				`CREATE TABLE IF NOT EXISTS barcodes (
					product_key TEXT NOT NULL,
					code TEXT NOT NULL,
					is_primary INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (product_key, code),
					FOREIGN KEY (product_key) REFERENCES products(key)
				)`,
				`CREATE INDEX idx_barcodes_code ON barcodes(code)`,
				`CREATE UNIQUE INDEX idx_barcodes_one_primary
					ON barcodes(product_key) WHERE is_primary = 1`,

				`CREATE TABLE IF NOT EXISTS sync_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT UNIQUE NOT NULL,
					sync_type TEXT NOT NULL,
					source_file TEXT,
					dry_run INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					completed_at DATETIME,
					error_message TEXT,
					processed INTEGER NOT NULL DEFAULT 0,
					added INTEGER NOT NULL DEFAULT 0,
					price_changed INTEGER NOT NULL DEFAULT 0,
					description_flagged INTEGER NOT NULL DEFAULT 0,
					reactivated INTEGER NOT NULL DEFAULT 0,
					deactivated INTEGER NOT NULL DEFAULT 0,
					unchanged INTEGER NOT NULL DEFAULT 0,
					skipped_invalid INTEGER NOT NULL DEFAULT 0,
					barcodes_added INTEGER NOT NULL DEFAULT 0,
					skip_reasons TEXT
				)`,
				`CREATE INDEX idx_sync_log_type ON sync_log(sync_type, started_at)`,
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
		Description: "Enrichment columns on products",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE products ADD COLUMN name TEXT`,
				`ALTER TABLE products ADD COLUMN brand TEXT`,
				`ALTER TABLE products ADD COLUMN size TEXT`,
				`ALTER TABLE products ADD COLUMN unit TEXT`,
				`ALTER TABLE products ADD COLUMN department TEXT`,
				`ALTER TABLE products ADD COLUMN category TEXT`,
				`ALTER TABLE products ADD COLUMN pack_quantity INTEGER`,
				`ALTER TABLE products ADD COLUMN data_quality TEXT NOT NULL DEFAULT 'NEEDS_DESCRIPTION'`,
				`ALTER TABLE products ADD COLUMN enrichment_notes TEXT`,
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
		Description: "Apply lease table",
		Up: func(tx *sql.Tx) error {
			query := `CREATE TABLE IF NOT EXISTS sync_lock (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				run_id TEXT NOT NULL,
				acquired_at DATETIME NOT NULL
			)`
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
			return nil
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion, applying each
// pending migration in its own transaction.
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
