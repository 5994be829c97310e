package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for collection run history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// CollectionRun Operations
// ============================================================================

// CreateCollectionRun inserts a new CollectionRun and sets its ID
func (s *Store) CreateCollectionRun(run *CollectionRun) error {
	const query = `
		INSERT INTO collection_runs (
			run_id, hostname, catalog_source, filter, start_time, end_time,
			artifacts_processed, artifacts_failed, files_collected,
			files_skipped, bytes_collected, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.RunID, run.Hostname, run.CatalogSource, run.Filter,
		run.StartTime, run.EndTime, run.ArtifactsProcessed,
		run.ArtifactsFailed, run.FilesCollected, run.FilesSkipped,
		run.BytesCollected, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateCollectionRun updates an existing CollectionRun by ID
func (s *Store) UpdateCollectionRun(run *CollectionRun) error {
	const query = `
		UPDATE collection_runs SET
			run_id = ?, hostname = ?, catalog_source = ?, filter = ?,
			start_time = ?, end_time = ?, artifacts_processed = ?,
			artifacts_failed = ?, files_collected = ?, files_skipped = ?,
			bytes_collected = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.RunID, run.Hostname, run.CatalogSource, run.Filter,
		run.StartTime, run.EndTime, run.ArtifactsProcessed,
		run.ArtifactsFailed, run.FilesCollected, run.FilesSkipped,
		run.BytesCollected, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("collection run not found: %d", run.ID)
	}

	return nil
}

// GetCollectionRun retrieves a CollectionRun by ID
func (s *Store) GetCollectionRun(id int64) (*CollectionRun, error) {
	const query = `
		SELECT id, run_id, hostname, catalog_source, filter, start_time, end_time,
		       artifacts_processed, artifacts_failed, files_collected,
		       files_skipped, bytes_collected, status, error_message
		FROM collection_runs WHERE id = ?
	`

	run := &CollectionRun{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.RunID, &run.Hostname, &run.CatalogSource, &run.Filter,
		&run.StartTime, &run.EndTime, &run.ArtifactsProcessed,
		&run.ArtifactsFailed, &run.FilesCollected, &run.FilesSkipped,
		&run.BytesCollected, &run.Status, &run.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("collection run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to query collection run: %w", err)
	}

	return run, nil
}

// GetCollectionRunByRunID retrieves a CollectionRun by its run identifier
func (s *Store) GetCollectionRunByRunID(runID string) (*CollectionRun, error) {
	const query = `
		SELECT id, run_id, hostname, catalog_source, filter, start_time, end_time,
		       artifacts_processed, artifacts_failed, files_collected,
		       files_skipped, bytes_collected, status, error_message
		FROM collection_runs WHERE run_id = ?
	`

	run := &CollectionRun{}
	err := s.db.QueryRow(query, runID).Scan(
		&run.ID, &run.RunID, &run.Hostname, &run.CatalogSource, &run.Filter,
		&run.StartTime, &run.EndTime, &run.ArtifactsProcessed,
		&run.ArtifactsFailed, &run.FilesCollected, &run.FilesSkipped,
		&run.BytesCollected, &run.Status, &run.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("collection run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to query collection run: %w", err)
	}

	return run, nil
}

// ListCollectionRuns retrieves CollectionRuns newest first, optionally limited
func (s *Store) ListCollectionRuns(limit int) ([]CollectionRun, error) {
	query := `
		SELECT id, run_id, hostname, catalog_source, filter, start_time, end_time,
		       artifacts_processed, artifacts_failed, files_collected,
		       files_skipped, bytes_collected, status, error_message
		FROM collection_runs ORDER BY start_time DESC
	`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection runs: %w", err)
	}
	defer rows.Close()

	var runs []CollectionRun
	for rows.Next() {
		run := CollectionRun{}
		err := rows.Scan(
			&run.ID, &run.RunID, &run.Hostname, &run.CatalogSource, &run.Filter,
			&run.StartTime, &run.EndTime, &run.ArtifactsProcessed,
			&run.ArtifactsFailed, &run.FilesCollected, &run.FilesSkipped,
			&run.BytesCollected, &run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// ArtifactRecord Operations
// ============================================================================

// CreateArtifactRecord inserts a new ArtifactRecord and sets its ID
func (s *Store) CreateArtifactRecord(rec *ArtifactRecord) error {
	const query = `
		INSERT INTO artifact_results (
			collection_run_id, name, type, success, files_collected,
			files_skipped, bytes_collected, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		rec.CollectionRunID, rec.Name, rec.Type, rec.Success,
		rec.FilesCollected, rec.FilesSkipped, rec.BytesCollected, rec.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artifact record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// ListArtifactRecords retrieves all ArtifactRecords for a collection run
func (s *Store) ListArtifactRecords(collectionRunID int64) ([]ArtifactRecord, error) {
	const query = `
		SELECT id, collection_run_id, name, type, success, files_collected,
		       files_skipped, bytes_collected, errors
		FROM artifact_results WHERE collection_run_id = ? ORDER BY name
	`

	rows, err := s.db.Query(query, collectionRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact records: %w", err)
	}
	defer rows.Close()

	var records []ArtifactRecord
	for rows.Next() {
		rec := ArtifactRecord{}
		err := rows.Scan(
			&rec.ID, &rec.CollectionRunID, &rec.Name, &rec.Type, &rec.Success,
			&rec.FilesCollected, &rec.FilesSkipped, &rec.BytesCollected, &rec.Errors,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact records: %w", err)
	}

	return records, nil
}

// ============================================================================
// FailedPath Operations (Dead Letter Queue)
// ============================================================================

// RecordFailedPath adds a new FailedPathRecord, or bumps the failure count
// of the existing record for the same artifact and path.
func (s *Store) RecordFailedPath(rec *FailedPathRecord) error {
	const updateQuery = `
		UPDATE failed_paths
		SET error = ?, failure_count = failure_count + 1, last_failure = ?
		WHERE artifact = ? AND path = ?
	`

	result, err := s.db.Exec(updateQuery, rec.Error, rec.LastFailure, rec.Artifact, rec.Path)
	if err != nil {
		return fmt.Errorf("failed to update failed path record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		return nil // existing record updated
	}

	// No existing record for this artifact and path, insert new
	const insertQuery = `
		INSERT INTO failed_paths (
			artifact, path, error, failure_count, first_failure, last_failure
		) VALUES (?, ?, ?, 1, ?, ?)
	`

	result, err = s.db.Exec(
		insertQuery,
		rec.Artifact, rec.Path, rec.Error, rec.FirstFailure, rec.LastFailure,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed path record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// ListFailedPaths retrieves FailedPathRecords, optionally filtered by artifact
func (s *Store) ListFailedPaths(artifact string, limit int) ([]FailedPathRecord, error) {
	query := `
		SELECT id, artifact, path, error, failure_count, first_failure, last_failure
		FROM failed_paths
	`
	var args []interface{}

	if artifact != "" {
		query += " WHERE artifact = ?"
		args = append(args, artifact)
	}

	query += " ORDER BY last_failure DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed paths: %w", err)
	}
	defer rows.Close()

	var records []FailedPathRecord
	for rows.Next() {
		rec := FailedPathRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Artifact, &rec.Path, &rec.Error,
			&rec.FailureCount, &rec.FirstFailure, &rec.LastFailure,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failed path record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failed path records: %w", err)
	}

	return records, nil
}
