package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentriage/forage/internal/engine"
)

var (
	collectFilter  string
	collectDest    string
	collectWorkers int
	collectDryRun  bool
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect artifacts from the local host",
		Long: `Collect artifacts from the local host into an evidence directory under
the configured output directory. Each artifact gets its own subdirectory;
locked files are copied through the available raw-capable tools and
registry keys are exported as .reg files.

The run writes collection-summary.txt and collection-summary.json into the
evidence directory and records the run in the history database. Individual
artifact failures never abort the run; they are reported in the summary.

Use --dry-run to show the expanded paths and their planned handling
without touching the host.`,
		Example: `  forage collect
  forage collect --filter prefetch
  forage collect --dest /mnt/usb/case-042 --workers 4
  forage collect --dry-run`,
		RunE: collectRun,
	}

	cmd.Flags().StringVar(&collectFilter, "filter", "", "only collect artifacts whose name contains this substring")
	cmd.Flags().StringVar(&collectDest, "dest", "", "exact evidence directory (default: output dir + hostname + timestamp)")
	cmd.Flags().IntVar(&collectWorkers, "workers", 0, "artifact collection concurrency (default from config)")
	cmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "show the collection plan without collecting")

	return cmd
}

func collectRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalCollector == nil {
		return fmt.Errorf("collector not initialized")
	}

	workers := collectWorkers
	if workers <= 0 {
		workers = globalCfg.Collection.Workers
	}

	root := collectDest
	if root == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown-host"
		}
		dirName := fmt.Sprintf("forage-%s-%s", host, time.Now().Format("20060102-150405"))
		root = filepath.Join(globalCfg.Collection.OutputDir, dirName)
	}

	opts := engine.Options{
		CollectionRoot: root,
		CatalogSource:  catalogSource(),
		Filter:         collectFilter,
		Workers:        workers,
	}

	if collectDryRun {
		return printPlan(globalCollector.Plan(opts))
	}

	log.Info("collect operation", "root", root, "filter", collectFilter, "workers", workers)

	summary, err := globalCollector.Run(cmd.Context(), opts)
	if summary == nil {
		return err
	}

	printSummary(root, summary)

	if err != nil {
		return fmt.Errorf("collection interrupted: %w", err)
	}
	if summary.ArtifactsFailed > 0 {
		return fmt.Errorf("collection completed with %d failed artifacts", summary.ArtifactsFailed)
	}

	return nil
}

func printPlan(plan *engine.RunPlan) error {
	fmt.Println("DRY RUN: Collection will process the following artifacts:")
	fmt.Println()

	totalPaths := 0
	badArtifacts := 0

	for _, art := range plan.Artifacts {
		fmt.Printf("%s (%s):\n", art.Name, art.Type)
		for _, p := range art.Paths {
			fmt.Printf("  %s\n", p.Template)
			fmt.Printf("    -> %s  [%s]\n", p.Path, p.Handling)
			totalPaths++
		}
		for _, e := range art.Errors {
			fmt.Printf("  ERROR: %s\n", e)
		}
		if len(art.Errors) > 0 {
			badArtifacts++
		}
		fmt.Println()
	}

	fmt.Println("=== PLAN SUMMARY ===")
	fmt.Printf("Artifacts: %d\n", len(plan.Artifacts))
	fmt.Printf("Paths:     %d\n", totalPaths)

	if badArtifacts > 0 {
		return fmt.Errorf("plan has errors in %d artifacts", badArtifacts)
	}

	return nil
}

func printSummary(root string, summary *engine.RunSummary) {
	fmt.Println("\n=== COLLECTION SUMMARY ===")
	fmt.Printf("Run ID:    %s\n", summary.RunID)
	fmt.Printf("Status:    %s\n", summary.Status)
	fmt.Printf("Duration:  %s\n", summary.Duration)
	fmt.Printf("Artifacts: %d processed, %d succeeded, %d failed\n",
		summary.ArtifactsProcessed, summary.ArtifactsSucceeded, summary.ArtifactsFailed)
	fmt.Printf("Files:     %d collected, %d skipped\n", summary.FilesCollected, summary.FilesSkipped)
	fmt.Printf("Data:      %s\n", engine.FormatBytes(summary.BytesCollected))
	fmt.Printf("Evidence:  %s\n", root)

	failed := 0
	for _, a := range summary.Artifacts {
		if !a.Success {
			failed++
		}
	}
	if failed == 0 {
		return
	}

	fmt.Println("\nFailed artifacts:")
	for _, a := range summary.Artifacts {
		if a.Success {
			continue
		}
		fmt.Printf("  %s:\n", a.Name)
		for _, e := range a.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
