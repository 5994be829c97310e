package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// TextReportName is the human-readable summary written into the
	// collection root.
	TextReportName = "collection-summary.txt"
	// JSONReportName is the machine-readable summary written alongside it.
	JSONReportName = "collection-summary.json"
)

// writeReports renders the run summary into the collection root in both
// text and JSON form.
func (c *Collector) writeReports(root string, sum *RunSummary) error {
	text := renderTextReport(sum)
	if err := afero.WriteFile(c.fs, filepath.Join(root, TextReportName), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	data = append(data, '\n')
	if err := afero.WriteFile(c.fs, filepath.Join(root, JSONReportName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write json report: %w", err)
	}

	return nil
}

// renderTextReport builds the plain-text summary. Every artifact appears
// with its status and the verbatim errors collected for it.
func renderTextReport(sum *RunSummary) string {
	var b strings.Builder

	b.WriteString("forage collection summary\n")
	b.WriteString("=========================\n\n")

	filter := sum.Filter
	if filter == "" {
		filter = "(none)"
	}

	fmt.Fprintf(&b, "Run ID:     %s\n", sum.RunID)
	fmt.Fprintf(&b, "Hostname:   %s\n", sum.Hostname)
	fmt.Fprintf(&b, "Catalog:    %s\n", sum.CatalogSource)
	fmt.Fprintf(&b, "Filter:     %s\n", filter)
	fmt.Fprintf(&b, "Started:    %s\n", sum.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished:   %s\n", sum.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:   %s\n", sum.Duration)
	fmt.Fprintf(&b, "Status:     %s\n", sum.Status)
	if sum.ErrorMessage != "" {
		fmt.Fprintf(&b, "Note:       %s\n", sum.ErrorMessage)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Artifacts:  %d processed, %d succeeded, %d failed\n",
		sum.ArtifactsProcessed, sum.ArtifactsSucceeded, sum.ArtifactsFailed)
	fmt.Fprintf(&b, "Files:      %d collected, %d skipped\n",
		sum.FilesCollected, sum.FilesSkipped)
	fmt.Fprintf(&b, "Data:       %s\n\n", FormatBytes(sum.BytesCollected))

	nameWidth := 0
	for _, a := range sum.Artifacts {
		if len(a.Name) > nameWidth {
			nameWidth = len(a.Name)
		}
	}

	for _, a := range sum.Artifacts {
		status := "ok"
		if !a.Success {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%-*s  [%s]  %d files, %s\n",
			nameWidth, a.Name, status, a.FilesCollected, FormatBytes(a.BytesCollected))
		if a.FilesSkipped > 0 {
			fmt.Fprintf(&b, "%-*s  %d transient files skipped\n", nameWidth+2, "", a.FilesSkipped)
		}
		for _, e := range a.Errors {
			fmt.Fprintf(&b, "%-*s  - %s\n", nameWidth+2, "", e)
		}
	}

	return b.String()
}
