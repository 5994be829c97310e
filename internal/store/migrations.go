package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	// Create migrations table if it doesn't exist
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get the current schema version
	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("Current schema version", "version", currentVersion)

	// Define all migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE collection_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL UNIQUE,
					hostname TEXT,
					catalog_source TEXT,
					filter TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					artifacts_processed INTEGER DEFAULT 0,
					artifacts_failed INTEGER DEFAULT 0,
					files_collected INTEGER DEFAULT 0,
					files_skipped INTEGER DEFAULT 0,
					bytes_collected INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT
				);

				CREATE TABLE artifact_results (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					collection_run_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					success BOOLEAN DEFAULT 0,
					files_collected INTEGER DEFAULT 0,
					files_skipped INTEGER DEFAULT 0,
					bytes_collected INTEGER DEFAULT 0,
					errors TEXT,
					FOREIGN KEY(collection_run_id) REFERENCES collection_runs(id)
				);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE failed_paths (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					artifact TEXT NOT NULL,
					path TEXT NOT NULL,
					error TEXT,
					failure_count INTEGER DEFAULT 1,
					first_failure DATETIME NOT NULL,
					last_failure DATETIME NOT NULL,
					UNIQUE(artifact, path)
				);
			`,
		},
	}

	// Run pending migrations
	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Info("Running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}

			s.logger.Info("Migration completed", "version", mig.version)
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Execute the migration SQL
	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Record the migration
	insertSQL := "INSERT INTO migrations (version) VALUES (?)"
	if _, err := tx.Exec(insertSQL, version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
