package store

import "time"

// CollectionRun records one collection execution
type CollectionRun struct {
	ID                 int64
	RunID              string // collector-assigned UUID
	Hostname           string
	CatalogSource      string // catalog file path, or "builtin"
	Filter             string
	StartTime          time.Time
	EndTime            time.Time
	ArtifactsProcessed int
	ArtifactsFailed    int
	FilesCollected     int
	FilesSkipped       int
	BytesCollected     int64
	Status             string // "running", "success", "partial", "failed"
	ErrorMessage       string
}

// ArtifactRecord is the per-artifact outcome within a collection run
type ArtifactRecord struct {
	ID              int64
	CollectionRunID int64
	Name            string
	Type            string // "file", "registry_key", "registry_value"
	Success         bool
	FilesCollected  int
	FilesSkipped    int
	BytesCollected  int64
	Errors          string // newline-joined error messages, empty when clean
}

// FailedPathRecord tracks paths that keep failing across runs
type FailedPathRecord struct {
	ID           int64
	Artifact     string
	Path         string
	Error        string
	FailureCount int
	FirstFailure time.Time
	LastFailure  time.Time
}
