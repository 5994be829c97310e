package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the copy tool chain",
		Long: `Inspect the locked-file copy tools available on this host. When a plain
copy fails on a locked file, the tools are tried in ascending priority
order until one succeeds.`,
		Example: `  forage tools list`,
	}

	cmd.AddCommand(newToolsListCmd())

	return cmd
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered copy tools",
		Long: `List the copy tools discovered on this host in fallback order: the
in-process copy first, then any RawCopy helper from the tools directory,
then the OS utilities found on the search path.`,
		Example: `  forage tools list
  forage tools list --log-level debug`,
		RunE: toolsListRun,
	}

	return cmd
}

func toolsListRun(cmd *cobra.Command, args []string) error {
	if globalTools == nil {
		return fmt.Errorf("tool registry not initialized")
	}

	descs := globalTools.Discover()

	fmt.Println("Copy Tools")
	fmt.Println("==========")
	fmt.Println()
	fmt.Printf("%-16s %-12s %8s %5s  %s\n", "Name", "Kind", "Priority", "Raw", "Path")
	fmt.Println(strings.Repeat("-", 64))

	for _, d := range descs {
		raw := "no"
		if d.RawCapable {
			raw = "yes"
		}
		path := d.Path
		if path == "" {
			path = "(in-process)"
		}
		fmt.Printf("%-16s %-12s %8d %5s  %s\n", d.Name, d.Kind, d.Priority, raw, path)
	}

	fmt.Println()

	return nil
}
