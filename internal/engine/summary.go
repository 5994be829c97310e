package engine

import (
	"time"

	"github.com/opentriage/forage/internal/copier"
)

// RunSummary is the tree-shaped record of one collection run. It owns every
// per-artifact result; totals equal the sums over the children.
type RunSummary struct {
	RunID              string            `json:"run_id"`
	Hostname           string            `json:"hostname,omitempty"`
	CatalogSource      string            `json:"catalog_source,omitempty"`
	Filter             string            `json:"filter,omitempty"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	Duration           string            `json:"duration"`
	Status             string            `json:"status"`
	ArtifactsProcessed int               `json:"artifacts_processed"`
	ArtifactsSucceeded int               `json:"artifacts_succeeded"`
	ArtifactsFailed    int               `json:"artifacts_failed"`
	FilesCollected     int               `json:"files_collected"`
	FilesSkipped       int               `json:"files_skipped"`
	BytesCollected     int64             `json:"bytes_collected"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	Artifacts          []ArtifactSummary `json:"artifacts"`
}

// ArtifactSummary aggregates the outcome for one artifact across all of its
// expanded paths.
type ArtifactSummary struct {
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	Directory      string                 `json:"directory"`
	Success        bool                   `json:"success"`
	FilesCollected int                    `json:"files_collected"`
	FilesSkipped   int                    `json:"files_skipped,omitempty"`
	BytesCollected int64                  `json:"bytes_collected"`
	Errors         []string               `json:"errors,omitempty"`
	Files          []copier.CollectedFile `json:"files,omitempty"`
}

// merge folds one source path's copy result into the artifact totals.
func (a *ArtifactSummary) merge(res *copier.Result) {
	a.FilesCollected += res.FilesCollected
	a.FilesSkipped += res.Skipped
	a.Errors = append(a.Errors, res.Errors...)
	a.Files = append(a.Files, res.Files...)
	for _, f := range res.Files {
		a.BytesCollected += f.Size
	}
}
