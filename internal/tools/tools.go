// Package tools discovers the locked-file copy mechanisms available on a
// host and ranks them for the copy fallback chain.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Kind tells the copier how a tool is invoked.
type Kind int

const (
	// KindFunction is an in-process copy routine.
	KindFunction Kind = iota
	// KindExecutable is an external program run through the runner.
	KindExecutable
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindExecutable:
		return "executable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CopyFunc performs an in-process copy of one file.
type CopyFunc func(ctx context.Context, src, dest string) error

// Descriptor describes one fallback copy mechanism. Exactly one of Copy
// (KindFunction) or Args (KindExecutable) is set; the Kind tag is decided
// at discovery and never re-inspected from the payload.
type Descriptor struct {
	Name       string
	Kind       Kind
	Path       string // executable path, empty for in-process tools
	Priority   int    // lower is tried first
	RawCapable bool   // can read locked or system-protected files

	Copy      CopyFunc
	Args      func(src, dest string) []string
	Succeeded func(exitCode int) bool
}

// ExitOK reports whether an exit code counts as success for this tool.
// Tools without a specific rule succeed only on zero.
func (d Descriptor) ExitOK(code int) bool {
	if d.Succeeded == nil {
		return code == 0
	}
	return d.Succeeded(code)
}

// rawCopyHelperNames are the raw-copy helper binaries looked for in the
// configured tools directory, in preference order.
var rawCopyHelperNames = []string{"RawCopy64.exe", "RawCopy.exe", "rawcopy.exe"}

// Registry discovers available copy tools once per process. The cached
// result is returned unconditionally afterwards, even if tools appear or
// disappear mid-run; a collection run sees one stable tool set.
type Registry struct {
	fs       afero.Fs
	toolsDir string
	lookPath func(string) (string, error)
	logger   *slog.Logger

	once  sync.Once
	cache []Descriptor
}

// NewRegistry creates a Registry scanning the real filesystem and PATH.
// toolsDir may be empty when no helper directory is configured.
func NewRegistry(toolsDir string, logger *slog.Logger) *Registry {
	return &Registry{
		fs:       afero.NewOsFs(),
		toolsDir: toolsDir,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// NewRegistryWithDeps creates a Registry with an injected filesystem and
// search-path lookup.
func NewRegistryWithDeps(fs afero.Fs, toolsDir string, lookPath func(string) (string, error), logger *slog.Logger) *Registry {
	return &Registry{fs: fs, toolsDir: toolsDir, lookPath: lookPath, logger: logger}
}

// Discover returns the available copy tools sorted by ascending priority,
// then name. The first call scans; later calls return the cached result.
func (r *Registry) Discover() []Descriptor {
	r.once.Do(func() {
		r.cache = r.discover()
	})
	return r.cache
}

func (r *Registry) discover() []Descriptor {
	descs := []Descriptor{builtinDescriptor()}

	if r.toolsDir != "" {
		for _, name := range rawCopyHelperNames {
			p := filepath.Join(r.toolsDir, name)
			ok, err := afero.Exists(r.fs, p)
			if err != nil || !ok {
				continue
			}
			descs = append(descs, rawCopyHelperDescriptor(name, p))
			break
		}
	}

	for _, candidate := range pathUtilities() {
		p, err := r.lookPath(candidate.binary)
		if err != nil {
			r.logger.Debug("copy tool not on search path", "tool", candidate.binary)
			continue
		}
		descs = append(descs, candidate.describe(p))
	}

	sort.SliceStable(descs, func(i, j int) bool {
		if descs[i].Priority != descs[j].Priority {
			return descs[i].Priority < descs[j].Priority
		}
		return descs[i].Name < descs[j].Name
	})

	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	r.logger.Info("copy tools discovered", "count", len(descs), "tools", names)
	return descs
}

// splitPath splits on the last path separator of either flavor. Catalog
// paths arrive in Windows notation regardless of the build host, so the
// filepath package cannot be used here.
func splitPath(p string) (dir, name string) {
	i := strings.LastIndexAny(p, `\/`)
	if i < 0 {
		return ".", p
	}
	return p[:i], p[i+1:]
}

// winPath renders p with backslash separators. The external utilities these
// arguments feed only exist on Windows.
func winPath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}

// rawCopyHelperDescriptor wraps a RawCopy-style helper from the tools
// directory. These take an NTFS source path and an output directory plus
// file name as separate arguments.
func rawCopyHelperDescriptor(name, path string) Descriptor {
	return Descriptor{
		Name:       name,
		Kind:       KindExecutable,
		Path:       path,
		Priority:   5,
		RawCapable: true,
		Args: func(src, dest string) []string {
			destDir, destName := splitPath(dest)
			return []string{
				"/FileNamePath:" + winPath(src),
				"/OutputPath:" + winPath(destDir),
				"/OutputName:" + destName,
			}
		},
	}
}

type pathUtility struct {
	binary   string
	describe func(path string) Descriptor
}

// pathUtilities lists the standard OS copy utilities probed on the search
// path, with their invocation shapes and success rules.
func pathUtilities() []pathUtility {
	return []pathUtility{
		{
			binary: "robocopy",
			describe: func(path string) Descriptor {
				return Descriptor{
					Name:       "robocopy",
					Kind:       KindExecutable,
					Path:       path,
					Priority:   10,
					RawCapable: true, // backup mode
					Args: func(src, dest string) []string {
						srcDir, srcName := splitPath(src)
						destDir, _ := splitPath(dest)
						return []string{
							winPath(srcDir), winPath(destDir), srcName,
							"/B", "/NJH", "/NJS", "/NDL", "/NC", "/NS", "/NP",
							"/R:0", "/W:0",
						}
					},
					// Robocopy exit codes below 8 mean files were copied or
					// already present; 8 and above are failures.
					Succeeded: func(code int) bool { return code >= 0 && code < 8 },
				}
			},
		},
		{
			binary: "esentutl",
			describe: func(path string) Descriptor {
				return Descriptor{
					Name:       "esentutl",
					Kind:       KindExecutable,
					Path:       path,
					Priority:   15,
					RawCapable: true,
					Args: func(src, dest string) []string {
						return []string{
							"/y", winPath(src),
							"/d", winPath(dest),
							"/o",
						}
					},
				}
			},
		},
		{
			binary: "xcopy",
			describe: func(path string) Descriptor {
				return Descriptor{
					Name:     "xcopy",
					Kind:     KindExecutable,
					Path:     path,
					Priority: 20,
					Args: func(src, dest string) []string {
						destDir, _ := splitPath(dest)
						return []string{
							winPath(src), winPath(destDir) + `\`,
							"/H", "/Y", "/C", "/Q",
						}
					},
				}
			},
		},
	}
}
