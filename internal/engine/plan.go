package engine

import (
	"fmt"

	"github.com/opentriage/forage/internal/copier"
	"github.com/opentriage/forage/internal/regpath"
)

// RunPlan lists what a collection run would do without touching the
// filesystem or registry.
type RunPlan struct {
	CatalogSource string         `json:"catalog_source,omitempty"`
	Filter        string         `json:"filter,omitempty"`
	Artifacts     []ArtifactPlan `json:"artifacts"`
}

// ArtifactPlan is the planned work for one artifact.
type ArtifactPlan struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Paths  []PlannedPath `json:"paths,omitempty"`
	Errors []string      `json:"errors,omitempty"`
}

// PlannedPath is one expanded source with its handling decision.
type PlannedPath struct {
	Template string `json:"template"`
	Path     string `json:"path"`
	Handling string `json:"handling"`
}

// Plan expands and classifies every artifact path without collecting
// anything. Definition errors surface here exactly as a real run would
// record them.
func (c *Collector) Plan(opts Options) *RunPlan {
	plan := &RunPlan{
		CatalogSource: opts.CatalogSource,
		Filter:        opts.Filter,
	}

	for _, art := range c.catalog.Filter(opts.Filter) {
		ap := ArtifactPlan{Name: art.Name, Type: string(art.Type)}

		for _, template := range art.Paths {
			expanded, err := c.expander.Expand(template)
			if err != nil {
				ap.Errors = append(ap.Errors, fmt.Sprintf("expand %s: %v", template, err))
				continue
			}
			for _, p := range expanded {
				ap.Paths = append(ap.Paths, PlannedPath{
					Template: template,
					Path:     p,
					Handling: planHandling(art.IsRegistry(), p),
				})
			}
		}

		plan.Artifacts = append(plan.Artifacts, ap)
	}

	return plan
}

func planHandling(isRegistry bool, p string) string {
	if isRegistry || regpath.IsRegistryPath(p) {
		if regpath.HasSubkeyWildcard(p) {
			return "registry subkey export"
		}
		return "registry export"
	}
	return copier.Classify(p).String() + " copy"
}
