// Package regexport exports registry keys to .reg files through the
// operating system's registry export utility. A trailing-wildcard key is
// expanded into one export per immediate subkey.
package regexport

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/opentriage/forage/internal/regpath"
	"github.com/opentriage/forage/internal/runner"
	"github.com/opentriage/forage/internal/safety"
)

// regFileHeader opens every well-formed registry export file. The version
// suffix is left off so older export formats still verify.
const regFileHeader = "Windows Registry Editor"

// Result aggregates the outcome of one export request. A wildcard request
// contributes one file per subkey; Success means no errors were recorded.
type Result struct {
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Exporter shells out to the registry export utility and verifies what it
// leaves behind.
type Exporter struct {
	fs     afero.Fs
	runner runner.Runner
	binary string
	logger *slog.Logger
}

// New creates an Exporter. An empty binary selects the stock "reg"
// utility from the search path.
func New(fs afero.Fs, run runner.Runner, binary string, logger *slog.Logger) *Exporter {
	if binary == "" {
		binary = "reg"
	}
	return &Exporter{fs: fs, runner: run, binary: binary, logger: logger}
}

// ExportKey exports registryPath into destDir. A path ending in \* is a
// key-enumeration request: each immediate subkey is exported to its own
// file inside a directory named for the parent key. Otherwise a single
// export file is written, named after the key's leaf segment unless
// nameOverride says otherwise.
func (e *Exporter) ExportKey(ctx context.Context, registryPath, destDir, nameOverride string) *Result {
	res := &Result{}

	canonical, ok := regpath.ToExportForm(registryPath)
	if !ok {
		res.addError("not a recognized registry path: %s", registryPath)
		return res
	}

	if regpath.HasSubkeyWildcard(registryPath) {
		e.exportSubkeys(ctx, canonical, destDir, res)
	} else {
		e.exportOne(ctx, canonical, destDir, nameOverride, res)
	}

	res.Success = len(res.Errors) == 0
	return res
}

// exportSubkeys enumerates the immediate subkeys of canonical and exports
// each one on its own. Subkeys that fail are recorded individually; the
// rest still export.
func (e *Exporter) exportSubkeys(ctx context.Context, canonical, destDir string, res *Result) {
	subkeys, err := e.querySubkeys(ctx, canonical)
	if err != nil {
		res.addError("%v", err)
		return
	}
	if len(subkeys) == 0 {
		e.logger.Debug("registry key has no subkeys", "key", canonical)
		return
	}

	parentDir := filepath.Join(destDir, safety.SanitizeName(regpath.Leaf(canonical)))
	for _, sub := range subkeys {
		if err := ctx.Err(); err != nil {
			res.addError("export %s: %v", canonical, err)
			return
		}
		e.exportOne(ctx, sub, parentDir, "", res)
	}
}

func (e *Exporter) exportOne(ctx context.Context, canonical, destDir, nameOverride string, res *Result) {
	name := nameOverride
	if name == "" {
		name = regpath.Leaf(canonical)
	}
	name = safety.SanitizeName(name)
	if !strings.HasSuffix(strings.ToLower(name), ".reg") {
		name += ".reg"
	}

	if err := e.fs.MkdirAll(destDir, 0o755); err != nil {
		res.addError("create %s: %v", destDir, err)
		return
	}
	dest := filepath.Join(destDir, name)

	e.logger.Debug("exporting registry key", "key", canonical, "dest", dest)
	out, err := e.runner.Run(ctx, e.binary, "export", canonical, dest, "/y")
	if err != nil {
		res.addError("export %s: %v", canonical, err)
		return
	}
	if out.ExitCode != 0 {
		res.addError("export %s: exit code %d: %s",
			canonical, out.ExitCode, strings.TrimSpace(string(out.Combined)))
		return
	}
	if err := e.verifyExport(dest); err != nil {
		res.addError("export %s: %v", canonical, err)
		return
	}

	res.Files = append(res.Files, dest)
}

func (e *Exporter) querySubkeys(ctx context.Context, canonical string) ([]string, error) {
	out, err := e.runner.Run(ctx, e.binary, "query", canonical)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", canonical, err)
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("query %s: exit code %d: %s",
			canonical, out.ExitCode, strings.TrimSpace(string(out.Combined)))
	}
	return parseSubkeys(canonical, string(out.Combined)), nil
}

// parseSubkeys pulls immediate-subkey lines out of query output. The tool
// prints each subkey as a full path on its own line; value lines are
// indented and the parent key echoes back without a trailing segment.
func parseSubkeys(parent, output string) []string {
	prefix := parent + `\`
	var subkeys []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || line != strings.TrimLeft(line, " \t") {
			continue
		}
		if len(line) <= len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
			continue
		}
		subkeys = append(subkeys, line)
	}
	return subkeys
}

// verifyExport confirms the export utility actually produced a registry
// export file. A zero exit code alone is not trusted: the file must exist
// and start with the export header, in whatever byte encoding the utility
// chose to write it.
func (e *Exporter) verifyExport(dest string) error {
	f, err := e.fs.Open(dest)
	if err != nil {
		return fmt.Errorf("exported file missing: %w", err)
	}
	defer f.Close()

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	r := bufio.NewReader(transform.NewReader(f, dec))
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read exported file %s: %w", dest, err)
	}
	if !strings.HasPrefix(strings.TrimSpace(line), regFileHeader) {
		return fmt.Errorf("exported file %s does not look like a registry export", dest)
	}
	return nil
}
