package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opentriage/forage/internal/expand"
)

var catalogListFilter string

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the artifact catalog",
		Long: `Inspect the active artifact catalog. The builtin catalog is used unless
a file is configured or passed with --catalog.`,
		Example: `  forage catalog list
  forage catalog list --filter registry
  forage catalog validate
  forage catalog validate --catalog ./custom.yaml`,
	}

	cmd.AddCommand(
		newCatalogListCmd(),
		newCatalogValidateCmd(),
	)

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog artifacts",
		Long: `List the artifacts in the active catalog with their type and the number
of path templates each one carries.`,
		Example: `  forage catalog list
  forage catalog list --filter event`,
		RunE: catalogListRun,
	}

	cmd.Flags().StringVar(&catalogListFilter, "filter", "", "only list artifacts whose name contains this substring")

	return cmd
}

func catalogListRun(cmd *cobra.Command, args []string) error {
	if globalCatalog == nil {
		return fmt.Errorf("catalog not loaded")
	}

	artifacts := globalCatalog.Filter(catalogListFilter)
	if len(artifacts) == 0 {
		fmt.Println("No artifacts match the filter")
		return nil
	}

	fmt.Printf("Catalog: %s\n", catalogSource())
	fmt.Println()
	fmt.Printf("%-22s %-15s %6s  %s\n", "Name", "Type", "Paths", "Description")
	fmt.Println(strings.Repeat("-", 78))

	for _, art := range artifacts {
		fmt.Printf("%-22s %-15s %6d  %s\n", art.Name, art.Type, len(art.Paths), art.Description)
	}

	fmt.Println()
	fmt.Printf("%d artifacts\n", len(artifacts))

	return nil
}

func newCatalogValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate catalog path templates",
		Long: `Validate that every path template in the catalog expands against the
current environment. Structural problems (missing names, unknown types,
empty path lists) are already rejected when the catalog is loaded; this
checks the templates for unknown or unterminated placeholders.`,
		Example: `  forage catalog validate
  forage catalog validate --catalog ./custom.yaml`,
		RunE: catalogValidateRun,
	}

	return cmd
}

func catalogValidateRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCatalog == nil {
		return fmt.Errorf("catalog not loaded")
	}

	log.Info("validating catalog", "source", catalogSource(), "artifacts", len(globalCatalog.Artifacts))

	expander := expand.New(expand.HostEnvironment())

	invalid := 0
	for _, art := range globalCatalog.Artifacts {
		var errs []string
		for _, template := range art.Paths {
			if _, err := expander.Expand(template); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", template, err))
			}
		}

		if len(errs) == 0 {
			fmt.Printf("%s: OK\n", art.Name)
			continue
		}

		invalid++
		fmt.Printf("%s: INVALID\n", art.Name)
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Println("\n=== VALIDATION SUMMARY ===")
	fmt.Printf("Artifacts: %d\n", len(globalCatalog.Artifacts))
	fmt.Printf("Invalid:   %d\n", invalid)

	if invalid > 0 {
		return fmt.Errorf("catalog validation failed: %d invalid artifacts", invalid)
	}

	return nil
}
