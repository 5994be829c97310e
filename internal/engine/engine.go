// Package engine orchestrates collection runs: it expands artifact path
// templates, dispatches each path to the file copier or the registry
// exporter, aggregates results per artifact, and prunes output directories
// that collected nothing.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/opentriage/forage/internal/catalog"
	"github.com/opentriage/forage/internal/copier"
	"github.com/opentriage/forage/internal/regexport"
	"github.com/opentriage/forage/internal/regpath"
	"github.com/opentriage/forage/internal/safety"
	"github.com/opentriage/forage/internal/store"
	"github.com/opentriage/forage/internal/tools"
)

// PathExpander resolves placeholder tokens in artifact path templates.
type PathExpander interface {
	Expand(template string) ([]string, error)
}

// Collector runs collections against a catalog. All collaborators are
// injected; the collector itself holds no hidden process-wide state.
type Collector struct {
	fs       afero.Fs
	catalog  *catalog.Catalog
	expander PathExpander
	copier   *copier.Copier
	exporter *regexport.Exporter
	tools    *tools.Registry
	store    *store.Store
	logger   *slog.Logger
}

// Options control a single collection run.
type Options struct {
	// CollectionRoot is the run output directory, created if missing.
	CollectionRoot string
	// CatalogSource is recorded in the summary ("builtin" or a file path).
	CatalogSource string
	// Filter restricts processing to artifacts whose name contains the
	// substring (case-insensitive). Empty processes everything.
	Filter string
	// Workers fans collection out across artifacts when greater than one.
	Workers int
}

// New creates a Collector.
func New(
	fs afero.Fs,
	cat *catalog.Catalog,
	expander PathExpander,
	cp *copier.Copier,
	exporter *regexport.Exporter,
	reg *tools.Registry,
	logger *slog.Logger,
) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fs:       fs,
		catalog:  cat,
		expander: expander,
		copier:   cp,
		exporter: exporter,
		tools:    reg,
		logger:   logger,
	}
}

// SetStore enables run-history recording. Without a store the collector
// still runs; history is simply not kept.
func (c *Collector) SetStore(st *store.Store) {
	c.store = st
}

// Run executes a collection. Every artifact failure is recorded in the
// summary and never aborts the run; the summary and its report files are
// produced even when all artifacts fail. The returned error is non-nil only
// when the collection root cannot be created or the context is cancelled.
func (c *Collector) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	hostname, _ := os.Hostname()

	artifacts := c.catalog.Filter(opts.Filter)

	c.logger.Info("starting collection",
		"run_id", runID,
		"root", opts.CollectionRoot,
		"artifacts", len(artifacts),
		"filter", opts.Filter,
	)

	if err := c.fs.MkdirAll(opts.CollectionRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create collection root: %w", err)
	}

	summary := &RunSummary{
		RunID:         runID,
		Hostname:      hostname,
		CatalogSource: opts.CatalogSource,
		Filter:        opts.Filter,
		StartTime:     startTime,
	}

	// Record the run as running before any work happens. Store failures are
	// logged and the collection continues without history.
	var runRec *store.CollectionRun
	if c.store != nil {
		runRec = &store.CollectionRun{
			RunID:         runID,
			Hostname:      hostname,
			CatalogSource: opts.CatalogSource,
			Filter:        opts.Filter,
			StartTime:     startTime,
			Status:        "running",
		}
		if err := c.store.CreateCollectionRun(runRec); err != nil {
			c.logger.Warn("failed to record collection run", "error", err)
			runRec = nil
		}
	}

	descs := c.tools.Discover()

	results := make([]*ArtifactSummary, len(artifacts))
	if opts.Workers > 1 && len(artifacts) > 1 {
		workers := opts.Workers
		if workers > len(artifacts) {
			workers = len(artifacts)
		}
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i := range artifacts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				results[i] = c.collectArtifact(ctx, artifacts[i], opts.CollectionRoot, descs)
			}(i)
		}
		wg.Wait()
	} else {
	loop:
		for i := range artifacts {
			results[i] = c.collectArtifact(ctx, artifacts[i], opts.CollectionRoot, descs)

			select {
			case <-ctx.Done():
				c.logger.Info("collection cancelled", "completed", i+1, "total", len(artifacts))
				break loop
			default:
			}
		}
	}
	if ctx.Err() != nil {
		summary.ErrorMessage = "collection cancelled"
	}

	for _, as := range results {
		if as == nil {
			continue // not reached before cancellation
		}
		summary.Artifacts = append(summary.Artifacts, *as)
		summary.ArtifactsProcessed++
		if as.Success {
			summary.ArtifactsSucceeded++
		} else {
			summary.ArtifactsFailed++
		}
		summary.FilesCollected += as.FilesCollected
		summary.FilesSkipped += as.FilesSkipped
		summary.BytesCollected += as.BytesCollected

		if runRec != nil {
			rec := &store.ArtifactRecord{
				CollectionRunID: runRec.ID,
				Name:            as.Name,
				Type:            as.Type,
				Success:         as.Success,
				FilesCollected:  as.FilesCollected,
				FilesSkipped:    as.FilesSkipped,
				BytesCollected:  as.BytesCollected,
				Errors:          strings.Join(as.Errors, "\n"),
			}
			if err := c.store.CreateArtifactRecord(rec); err != nil {
				c.logger.Warn("failed to record artifact result", "artifact", as.Name, "error", err)
			}
		}
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime).Round(time.Millisecond).String()

	switch {
	case summary.ArtifactsFailed == 0:
		summary.Status = "success"
	case summary.ArtifactsSucceeded == 0:
		summary.Status = "failed"
	default:
		summary.Status = "partial"
	}

	if err := c.writeReports(opts.CollectionRoot, summary); err != nil {
		c.logger.Warn("failed to write run reports", "error", err)
	}

	if runRec != nil {
		runRec.EndTime = summary.EndTime
		runRec.ArtifactsProcessed = summary.ArtifactsProcessed
		runRec.ArtifactsFailed = summary.ArtifactsFailed
		runRec.FilesCollected = summary.FilesCollected
		runRec.FilesSkipped = summary.FilesSkipped
		runRec.BytesCollected = summary.BytesCollected
		runRec.Status = summary.Status
		runRec.ErrorMessage = summary.ErrorMessage
		if err := c.store.UpdateCollectionRun(runRec); err != nil {
			c.logger.Warn("failed to update collection run record", "error", err)
		}
	}

	c.logger.Info("collection completed",
		"run_id", runID,
		"status", summary.Status,
		"artifacts", summary.ArtifactsProcessed,
		"failed", summary.ArtifactsFailed,
		"files", summary.FilesCollected,
		"skipped", summary.FilesSkipped,
		"bytes", summary.BytesCollected,
		"duration", summary.EndTime.Sub(startTime),
	)

	return summary, ctx.Err()
}

// collectArtifact processes one artifact. A panic while processing is
// confined to the artifact so siblings still run.
func (c *Collector) collectArtifact(ctx context.Context, art catalog.Artifact, root string, descs []tools.Descriptor) (sum *ArtifactSummary) {
	sum = &ArtifactSummary{
		Name:      art.Name,
		Type:      string(art.Type),
		Directory: safety.SanitizeName(art.Name),
	}
	outDir := filepath.Join(root, sum.Directory)
	log := c.logger.With("artifact", art.Name)

	defer func() {
		if r := recover(); r != nil {
			log.Error("artifact processing panicked", "panic", r)
			sum.Errors = append(sum.Errors, fmt.Sprintf("internal error: %v", r))
			sum.Success = false
		}
	}()

	log.Debug("processing artifact", "type", art.Type, "templates", len(art.Paths))

	for _, template := range art.Paths {
		expanded, err := c.expander.Expand(template)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("expand %s: %v", template, err))
			continue
		}

		for _, p := range expanded {
			before := len(sum.Errors)

			if art.IsRegistry() || regpath.IsRegistryPath(p) {
				res := c.exporter.ExportKey(ctx, p, outDir, art.ExportName)
				c.mergeExport(p, outDir, res, sum)
			} else {
				res := c.copier.Copy(ctx, p, outDir, descs)
				sum.merge(res)
			}

			if c.store != nil && len(sum.Errors) > before {
				c.recordFailure(art.Name, p, sum.Errors[before:])
			}
		}
	}

	// An artifact that collected nothing leaves no directory behind
	if sum.FilesCollected == 0 {
		if err := c.fs.RemoveAll(outDir); err != nil {
			log.Warn("failed to prune empty artifact directory", "dir", outDir, "error", err)
		}
	}

	sum.Success = len(sum.Errors) == 0
	log.Debug("artifact done",
		"success", sum.Success,
		"files", sum.FilesCollected,
		"skipped", sum.FilesSkipped,
		"errors", len(sum.Errors),
	)
	return sum
}

// mergeExport folds a registry export result into the artifact totals,
// adding an inventory entry for every export file written.
func (c *Collector) mergeExport(source, outDir string, res *regexport.Result, sum *ArtifactSummary) {
	sum.Errors = append(sum.Errors, res.Errors...)

	for _, f := range res.Files {
		rel, err := filepath.Rel(outDir, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		cf := copier.CollectedFile{
			Source: source,
			Dest:   filepath.ToSlash(rel),
			Tool:   "reg",
		}
		if info, err := c.fs.Stat(f); err == nil {
			cf.Size = info.Size()
		}
		if digest, err := c.checksumFile(f); err == nil {
			cf.SHA256 = digest
		}
		sum.FilesCollected++
		sum.BytesCollected += cf.Size
		sum.Files = append(sum.Files, cf)
	}
}

// recordFailure writes a dead-letter row for a path that produced errors.
// Failures here are logged only; history must never fail a collection.
func (c *Collector) recordFailure(artifact, path string, errs []string) {
	now := time.Now()
	rec := &store.FailedPathRecord{
		Artifact:     artifact,
		Path:         path,
		Error:        strings.Join(errs, "; "),
		FirstFailure: now,
		LastFailure:  now,
	}
	if err := c.store.RecordFailedPath(rec); err != nil {
		c.logger.Warn("failed to record failed path", "artifact", artifact, "path", path, "error", err)
	}
}

// checksumFile computes the SHA256 hex digest of a file.
func (c *Collector) checksumFile(p string) (string, error) {
	f, err := c.fs.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
