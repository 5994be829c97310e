package main

import (
	"strings"
	"testing"

	"github.com/opentriage/forage/internal/catalog"
	"github.com/opentriage/forage/internal/config"
)

func swapCatalogGlobals(t *testing.T, cfg *config.Config, cat *catalog.Catalog) {
	t.Helper()
	origCfg := globalCfg
	origCatalog := globalCatalog
	globalCfg = cfg
	globalCatalog = cat
	t.Cleanup(func() {
		globalCfg = origCfg
		globalCatalog = origCatalog
	})
}

func TestCatalogListRun(t *testing.T) {
	cat, err := catalog.Parse([]byte(collectTestCatalog))
	if err != nil {
		t.Fatalf("parsing test catalog: %v", err)
	}
	swapCatalogGlobals(t, config.DefaultConfig(), cat)

	out := captureStdout(t, func() {
		if err := catalogListRun(nil, nil); err != nil {
			t.Fatalf("catalogListRun returned error: %v", err)
		}
	})

	for _, want := range []string{"Catalog: builtin", "Hosts", "RunKeys", "registry_key", "2 artifacts"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestCatalogListRun_Filter(t *testing.T) {
	cat, err := catalog.Parse([]byte(collectTestCatalog))
	if err != nil {
		t.Fatalf("parsing test catalog: %v", err)
	}
	swapCatalogGlobals(t, config.DefaultConfig(), cat)

	origFilter := catalogListFilter
	catalogListFilter = "run"
	t.Cleanup(func() { catalogListFilter = origFilter })

	out := captureStdout(t, func() {
		if err := catalogListRun(nil, nil); err != nil {
			t.Fatalf("catalogListRun returned error: %v", err)
		}
	})

	if !strings.Contains(out, "RunKeys") {
		t.Fatalf("expected RunKeys in output, got: %s", out)
	}
	if strings.Contains(out, "Hosts") {
		t.Fatalf("filter should have dropped Hosts, got: %s", out)
	}
	if !strings.Contains(out, "1 artifacts") {
		t.Fatalf("expected filtered count in output, got: %s", out)
	}
}

func TestCatalogValidateRun(t *testing.T) {
	cat, err := catalog.Parse([]byte(collectTestCatalog))
	if err != nil {
		t.Fatalf("parsing test catalog: %v", err)
	}
	swapCatalogGlobals(t, config.DefaultConfig(), cat)

	out := captureStdout(t, func() {
		if err := catalogValidateRun(nil, nil); err != nil {
			t.Fatalf("catalogValidateRun returned error: %v", err)
		}
	})

	for _, want := range []string{"Hosts: OK", "RunKeys: OK", "Invalid:   0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestCatalogValidateRun_BadTemplate(t *testing.T) {
	const badCatalog = `artifacts:
  - name: Broken
    type: file
    paths:
      - '%%no_such_token%%\somewhere'
  - name: Fine
    type: file
    paths:
      - 'C:\Windows\win.ini'
`
	cat, err := catalog.Parse([]byte(badCatalog))
	if err != nil {
		t.Fatalf("parsing test catalog: %v", err)
	}
	swapCatalogGlobals(t, config.DefaultConfig(), cat)

	var runErr error
	out := captureStdout(t, func() {
		runErr = catalogValidateRun(nil, nil)
	})

	if runErr == nil || !strings.Contains(runErr.Error(), "1 invalid artifacts") {
		t.Fatalf("expected validation error, got: %v", runErr)
	}
	for _, want := range []string{"Broken: INVALID", "unknown placeholder", "Fine: OK"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}
