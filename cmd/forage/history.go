package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opentriage/forage/internal/engine"
)

var (
	historyLimit  int
	historyFailed bool
	historyRunID  string
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past collection runs",
		Long: `Show past collection runs from the history database. Use --run-id for
the per-artifact breakdown of one run, or --failed for the paths that
keep failing across runs.`,
		Example: `  forage history
  forage history --limit 5
  forage history --run-id 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  forage history --failed`,
		RunE: historyRun,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of rows to show (0 for all)")
	cmd.Flags().BoolVar(&historyFailed, "failed", false, "show repeatedly failing paths instead of runs")
	cmd.Flags().StringVar(&historyRunID, "run-id", "", "show the artifact breakdown for one run")

	return cmd
}

func historyRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalStore == nil {
		return fmt.Errorf("history store not available (db: %s)", globalCfg.HistoryDBPath())
	}

	if historyRunID != "" {
		return printRunDetail(historyRunID)
	}
	if historyFailed {
		return printFailedPaths()
	}
	return printRuns()
}

func printRuns() error {
	runs, err := globalStore.ListCollectionRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list collection runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No collection runs recorded")
		return nil
	}

	fmt.Println("Collection Runs")
	fmt.Println("===============")
	fmt.Println()
	fmt.Printf("%-36s %-17s %-8s %6s %6s %10s\n", "Run ID", "Started", "Status", "Files", "Failed", "Size")
	fmt.Println(strings.Repeat("-", 90))

	for _, run := range runs {
		fmt.Printf("%-36s %-17s %-8s %6d %6d %10s\n",
			run.RunID,
			run.StartTime.Format("2006-01-02 15:04"),
			run.Status,
			run.FilesCollected,
			run.ArtifactsFailed,
			engine.FormatBytes(run.BytesCollected),
		)
	}

	fmt.Println()

	return nil
}

func printRunDetail(runID string) error {
	run, err := globalStore.GetCollectionRunByRunID(runID)
	if err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}

	fmt.Printf("Run:       %s\n", run.RunID)
	fmt.Printf("Host:      %s\n", run.Hostname)
	fmt.Printf("Catalog:   %s\n", run.CatalogSource)
	if run.Filter != "" {
		fmt.Printf("Filter:    %s\n", run.Filter)
	}
	fmt.Printf("Started:   %s\n", run.StartTime.Format("2006-01-02 15:04:05"))
	if !run.EndTime.IsZero() {
		fmt.Printf("Finished:  %s\n", run.EndTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Status:    %s\n", run.Status)
	if run.ErrorMessage != "" {
		fmt.Printf("Note:      %s\n", run.ErrorMessage)
	}
	fmt.Printf("Artifacts: %d processed, %d failed\n", run.ArtifactsProcessed, run.ArtifactsFailed)
	fmt.Printf("Files:     %d collected, %d skipped\n", run.FilesCollected, run.FilesSkipped)
	fmt.Printf("Data:      %s\n", engine.FormatBytes(run.BytesCollected))

	records, err := globalStore.ListArtifactRecords(run.ID)
	if err != nil {
		return fmt.Errorf("failed to list artifact records: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	fmt.Println("\nArtifacts:")
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "FAIL"
		}
		fmt.Printf("  %-22s %-4s %6d files %10s\n",
			rec.Name, status, rec.FilesCollected, engine.FormatBytes(rec.BytesCollected))
		if rec.Errors != "" {
			for _, line := range strings.Split(rec.Errors, "\n") {
				fmt.Printf("    - %s\n", line)
			}
		}
	}

	return nil
}

func printFailedPaths() error {
	paths, err := globalStore.ListFailedPaths("", historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list failed paths: %w", err)
	}

	if len(paths) == 0 {
		fmt.Println("No failed paths recorded")
		return nil
	}

	fmt.Println("Failed Paths")
	fmt.Println("============")
	fmt.Println()

	for _, p := range paths {
		fmt.Printf("%s  (%s, %d failures, last %s)\n",
			p.Path, p.Artifact, p.FailureCount, p.LastFailure.Format("2006-01-02 15:04"))
		fmt.Printf("  %s\n", p.Error)
	}

	fmt.Println()

	return nil
}
