package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opentriage/forage/internal/catalog"
	"github.com/opentriage/forage/internal/config"
	"github.com/opentriage/forage/internal/copier"
	"github.com/opentriage/forage/internal/engine"
	"github.com/opentriage/forage/internal/expand"
	"github.com/opentriage/forage/internal/regexport"
	"github.com/opentriage/forage/internal/runner"
	"github.com/opentriage/forage/internal/store"
	"github.com/opentriage/forage/internal/tools"
)

const version = "0.1.0"

var (
	// Global flags
	cfgPath     string
	catalogPath string
	outputDir   string
	logLevel    string
	logFormat   string
	quiet       bool
	globalCfg   *config.Config
	logger      *slog.Logger

	// Global components
	globalStore     *store.Store
	globalCatalog   *catalog.Catalog
	globalTools     *tools.Registry
	globalCollector *engine.Collector
)

// initializeComponents builds the catalog, tool registry, and collector
// from the loaded config
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	// Load artifact catalog
	if globalCfg.Collection.Catalog != "" {
		cat, err := catalog.Load(afero.NewOsFs(), globalCfg.Collection.Catalog)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		globalCatalog = cat
	} else {
		cat, err := catalog.Default()
		if err != nil {
			return fmt.Errorf("failed to load builtin catalog: %w", err)
		}
		globalCatalog = cat
	}

	toolTimeout, err := globalCfg.Tools.ParseTimeout()
	if err != nil {
		return fmt.Errorf("invalid tools.timeout: %w", err)
	}

	fs := afero.NewOsFs()
	run := runner.New(toolTimeout, logger)
	expander := expand.New(expand.HostEnvironment())
	cp := copier.New(fs, run, logger)
	exporter := regexport.New(fs, run, globalCfg.Registry.ExportBinary, logger)
	globalTools = tools.NewRegistry(globalCfg.Tools.Dir, logger)

	globalCollector = engine.New(fs, globalCatalog, expander, cp, exporter, globalTools, logger)

	logger.Info("components initialized successfully")
	return nil
}

// openStore opens the run-history database. History is best effort: a
// store that cannot be opened is logged and the command continues
// without it.
func openStore() {
	dbPath := globalCfg.HistoryDBPath()
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("failed to create history directory", "dir", dir, "error", err)
			return
		}
	}

	st, err := store.New(dbPath, logger)
	if err != nil {
		logger.Warn("failed to open history store, continuing without history", "path", dbPath, "error", err)
		return
	}
	globalStore = st
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"history": true,
	}
	return skipInitCmds[cmdName]
}

// shouldOpenStore checks if a command reads or writes run history
func shouldOpenStore(cmdName string) bool {
	storeCmds := map[string]bool{
		"collect": true,
		"history": true,
	}
	return storeCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
}

// catalogSource names where the active catalog came from
func catalogSource() string {
	if globalCfg != nil && globalCfg.Collection.Catalog != "" {
		return globalCfg.Collection.Catalog
	}
	return "builtin"
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forage",
		Short: "Forensic artifact collection for Windows triage",
		Long: `forage collects forensic artifacts from a live Windows host into an
evidence directory. Artifacts are defined in a YAML catalog of path
templates; locked files such as registry hives and event logs are copied
through a chain of raw-capable tools, and registry keys are exported with
the reg utility.

A builtin catalog covering common triage artifacts is compiled in and is
used when no catalog file is configured.`,
		Example: `  forage collect
  forage collect --filter prefetch --workers 4
  forage collect --dry-run
  forage catalog list
  forage catalog validate --catalog ./custom.yaml
  forage tools list
  forage history --limit 10`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env file can supply environment values before anything
			// reads them, e.g. SystemRoot pointed at a mounted image.
			_ = godotenv.Load()

			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			// Load config
			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Warn("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Environment overrides (including values from .env), then
			// command-line flags on top
			config.ApplyEnv(globalCfg)

			// Override with command-line flags if provided
			if outputDir != "" {
				globalCfg.Collection.OutputDir = outputDir
			}
			if catalogPath != "" {
				globalCfg.Collection.Catalog = catalogPath
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "output_dir", globalCfg.Collection.OutputDir)
			}

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			if shouldOpenStore(cmd.Name()) {
				openStore()
				if globalCollector != nil && globalStore != nil {
					globalCollector.SetStore(globalStore)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "path to artifact catalog file (builtin catalog if not specified)")
	cmd.PersistentFlags().StringVar(&outputDir, "output", "", "override collection output directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	// Add subcommands
	cmd.AddCommand(
		newCollectCmd(),
		newCatalogCmd(),
		newToolsCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
