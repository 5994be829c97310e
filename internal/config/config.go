package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultToolTimeout bounds one external tool invocation when the config
// does not set a timeout.
const DefaultToolTimeout = 2 * time.Minute

// Config is the top-level configuration
type Config struct {
	Collection CollectionConfig `yaml:"collection"`
	Tools      ToolsConfig      `yaml:"tools"`
	Registry   RegistryConfig   `yaml:"registry"`
}

// CollectionConfig holds collection run settings
type CollectionConfig struct {
	// OutputDir is where run directories are created.
	OutputDir string `yaml:"output_dir"`
	// Catalog is a path to an artifact catalog file. Empty uses the
	// compiled-in catalog.
	Catalog string `yaml:"catalog"`
	// DBPath is the run-history database. Empty derives a path under
	// OutputDir.
	DBPath string `yaml:"db_path"`
	// Workers fans collection out across artifacts when greater than one.
	Workers int `yaml:"workers"`
}

// ToolsConfig holds external copy tool settings
type ToolsConfig struct {
	// Dir is scanned for raw-copy helper executables.
	Dir string `yaml:"dir"`
	// Timeout is the per-invocation cap for external tools, in Go duration
	// syntax. "0" disables the bound.
	Timeout string `yaml:"timeout"`
}

// RegistryConfig holds registry export settings
type RegistryConfig struct {
	ExportBinary string `yaml:"export_binary"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Collection: CollectionConfig{
			OutputDir: "collections",
			Workers:   1,
		},
		Tools: ToolsConfig{
			Timeout: "2m",
		},
		Registry: RegistryConfig{
			ExportBinary: "reg",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"forage.yaml",
		"/etc/forage/forage.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "forage", "forage.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// ApplyEnv overlays FORAGE_* environment variables onto cfg. Values from
// the environment win over the config file; command-line flags are applied
// after this and win over both.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("FORAGE_OUTPUT_DIR"); ok && v != "" {
		cfg.Collection.OutputDir = v
	}
	if v, ok := os.LookupEnv("FORAGE_CATALOG"); ok && v != "" {
		cfg.Collection.Catalog = v
	}
	if v, ok := os.LookupEnv("FORAGE_DB_PATH"); ok && v != "" {
		cfg.Collection.DBPath = v
	}
	if v, ok := os.LookupEnv("FORAGE_TOOLS_DIR"); ok && v != "" {
		cfg.Tools.Dir = v
	}
}

// ParseTimeout returns the per-invocation external tool timeout. An unset
// value falls back to the default; zero disables the bound.
func (t ToolsConfig) ParseTimeout() (time.Duration, error) {
	if t.Timeout == "" {
		return DefaultToolTimeout, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing tools timeout %q: %w", t.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative tools timeout %q", t.Timeout)
	}
	return d, nil
}

// HistoryDBPath returns the configured run-history database path, deriving
// one under the output directory when unset.
func (c *Config) HistoryDBPath() string {
	if c.Collection.DBPath != "" {
		return c.Collection.DBPath
	}
	return filepath.Join(c.Collection.OutputDir, "forage.db")
}
