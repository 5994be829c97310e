// Package catalog loads and validates artifact catalogs. A catalog names
// the collection targets: each artifact carries a type tag and one or more
// path templates handed to the expansion and collection layers. A default
// catalog is compiled in for hosts where no catalog file is shipped.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/opentriage/forage/internal/safety"
)

// maxCatalogSize bounds how much catalog YAML is read from disk.
const maxCatalogSize = 8 << 20

//go:embed default.yaml
var defaultCatalog []byte

// ArtifactType tags what an artifact's paths point at.
type ArtifactType string

const (
	// TypeFile artifacts name filesystem paths, wildcards included.
	TypeFile ArtifactType = "file"
	// TypeRegistryKey artifacts name registry keys to export.
	TypeRegistryKey ArtifactType = "registry_key"
	// TypeRegistryValue artifacts name single registry values; they are
	// exported at key granularity since the export tool has no finer unit.
	TypeRegistryValue ArtifactType = "registry_value"
)

// UnmarshalYAML rejects unknown type tags at load time instead of letting
// them drift through the run as unclassifiable artifacts.
func (t *ArtifactType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch ArtifactType(s) {
	case TypeFile, TypeRegistryKey, TypeRegistryValue:
		*t = ArtifactType(s)
		return nil
	}
	return fmt.Errorf("unknown artifact type %q", s)
}

// Artifact is one named collection target.
type Artifact struct {
	Name        string       `yaml:"name"`
	Type        ArtifactType `yaml:"type"`
	Description string       `yaml:"description,omitempty"`
	Paths       []string     `yaml:"paths"`

	// ExportName overrides the file name for registry exports. Empty means
	// the key's leaf segment is used.
	ExportName string `yaml:"export_name,omitempty"`
}

// IsRegistry reports whether the artifact targets registry keys or values.
func (a Artifact) IsRegistry() bool {
	return a.Type == TypeRegistryKey || a.Type == TypeRegistryValue
}

// Catalog is a validated set of artifacts.
type Catalog struct {
	Artifacts []Artifact `yaml:"artifacts"`
}

// Load reads and validates a catalog file.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	data, err := safety.ReadAllWithLimit(f, maxCatalogSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the compiled-in artifact catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Validate checks structural requirements: every artifact is named
// uniquely, typed, and carries at least one non-blank path.
func (c *Catalog) Validate() error {
	if len(c.Artifacts) == 0 {
		return fmt.Errorf("catalog has no artifacts")
	}
	seen := make(map[string]bool, len(c.Artifacts))
	for i, a := range c.Artifacts {
		if a.Name == "" {
			return fmt.Errorf("artifact %d has no name", i)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("duplicate artifact name %q", a.Name)
		}
		seen[key] = true
		if a.Type == "" {
			return fmt.Errorf("artifact %q has no type", a.Name)
		}
		if len(a.Paths) == 0 {
			return fmt.Errorf("artifact %q has no paths", a.Name)
		}
		for _, p := range a.Paths {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("artifact %q has an empty path", a.Name)
			}
		}
	}
	return nil
}

// Filter returns the artifacts whose name contains substr, case
// insensitively. An empty filter keeps everything.
func (c *Catalog) Filter(substr string) []Artifact {
	if substr == "" {
		return c.Artifacts
	}
	needle := strings.ToLower(substr)
	var out []Artifact
	for _, a := range c.Artifacts {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the artifact names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Artifacts))
	for i, a := range c.Artifacts {
		names[i] = a.Name
	}
	return names
}
