// Package copier collects files for artifact sources: it classifies source
// paths, expands wildcard and recursive patterns, and copies each file with
// a locked-file fallback chain behind the plain filesystem copy.
package copier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/opentriage/forage/internal/runner"
	"github.com/opentriage/forage/internal/safety"
	"github.com/opentriage/forage/internal/tools"
)

// CollectedFile is the provenance record for one collected file.
type CollectedFile struct {
	Source string `json:"source"`
	Dest   string `json:"dest"` // relative to the artifact output dir
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	Tool   string `json:"tool"` // "direct" or the fallback tool name
}

// Result aggregates the outcome of copying one source path. Success means
// no errors were recorded; transient-file skips do not count against it.
type Result struct {
	Success        bool            `json:"success"`
	FilesCollected int             `json:"files_collected"`
	Skipped        int             `json:"skipped,omitempty"`
	Errors         []string        `json:"errors,omitempty"`
	Files          []CollectedFile `json:"files,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Merge folds other into r.
func (r *Result) Merge(other *Result) {
	r.FilesCollected += other.FilesCollected
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
	r.Files = append(r.Files, other.Files...)
	r.Success = len(r.Errors) == 0
}

// Copier copies artifact sources into per-artifact output directories.
type Copier struct {
	fs     afero.Fs
	runner runner.Runner
	logger *slog.Logger
}

// New creates a Copier on the given filesystem. The runner is used for
// external fallback tools.
func New(fs afero.Fs, run runner.Runner, logger *slog.Logger) *Copier {
	return &Copier{fs: fs, runner: run, logger: logger}
}

// Copy collects sourcePath into destDir using descs as the fallback tool
// chain. Every failure is recorded in the result; none aborts the caller.
func (c *Copier) Copy(ctx context.Context, sourcePath, destDir string, descs []tools.Descriptor) *Result {
	res := &Result{}
	src := normalize(sourcePath)
	dest := normalize(destDir)

	kind := Classify(src)
	c.logger.Debug("copying source", "path", src, "kind", kind.String())

	switch kind {
	case SourceRecursive:
		c.copyRecursive(ctx, src, dest, descs, res)
	case SourceWildcard:
		c.copyWildcard(ctx, src, dest, descs, res)
	case SourceLiteral:
		c.copyLiteral(ctx, src, dest, descs, res)
	}

	res.Success = len(res.Errors) == 0
	return res
}

func (c *Copier) copyLiteral(ctx context.Context, src, destDir string, descs []tools.Descriptor, res *Result) {
	info, err := c.fs.Stat(src)
	if err != nil {
		res.addError("%s: %v", src, err)
		return
	}

	if !info.IsDir() {
		c.copyOne(ctx, src, path.Base(src), destDir, descs, res)
		return
	}

	// A literal directory contributes its immediate file children only.
	entries, err := afero.ReadDir(c.fs, src)
	if err != nil {
		res.addError("read dir %s: %v", src, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		c.copyOne(ctx, path.Join(src, entry.Name()), entry.Name(), destDir, descs, res)
	}
}

func (c *Copier) copyWildcard(ctx context.Context, src, destDir string, descs []tools.Descriptor, res *Result) {
	fixed, pattern := splitGlob(src)
	if !doublestar.ValidatePattern(pattern) {
		res.addError("invalid pattern in %s", src)
		return
	}

	matches, err := c.glob(fixed, pattern)
	if err != nil {
		res.addError("expand %s: %v", src, err)
		return
	}

	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			res.addError("%s: %v", src, err)
			return
		}
		full := path.Join(fixed, rel)
		info, err := c.fs.Stat(full)
		if err != nil {
			res.addError("%s: %v", full, err)
			continue
		}
		if info.IsDir() {
			continue
		}
		// The destination keeps the path relative to the fixed prefix, so
		// mid-path wildcard matches from different parents cannot collide.
		c.copyOne(ctx, full, rel, destDir, descs, res)
	}
}

func (c *Copier) copyRecursive(ctx context.Context, src, destDir string, descs []tools.Descriptor, res *Result) {
	base, namePattern := splitRecursive(src)
	if base == "" {
		res.addError("recursive source %s has no base path", src)
		return
	}
	if namePattern != "" && !doublestar.ValidatePattern(namePattern) {
		res.addError("invalid name pattern in %s", src)
		return
	}

	bases, err := c.resolveBases(base)
	if err != nil {
		res.addError("%v", err)
		return
	}

	for _, b := range bases {
		c.walkBase(ctx, b, namePattern, destDir, descs, res)
	}
}

// resolveBases turns the base portion of a recursive source into concrete
// directories. Single-level wildcards inside the base are expanded; a base
// that resolves to no existing directory is an error.
func (c *Copier) resolveBases(base string) ([]string, error) {
	if !strings.ContainsAny(base, "*?") {
		ok, err := afero.DirExists(c.fs, base)
		if err != nil || !ok {
			return nil, fmt.Errorf("base path does not exist: %s", base)
		}
		return []string{base}, nil
	}

	fixed, pattern := splitGlob(base)
	rels, err := c.glob(fixed, pattern)
	if err != nil {
		return nil, fmt.Errorf("expand base path %s: %v", base, err)
	}
	var bases []string
	for _, rel := range rels {
		full := path.Join(fixed, rel)
		if ok, _ := afero.DirExists(c.fs, full); ok {
			bases = append(bases, full)
		}
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("base path does not exist: %s", base)
	}
	return bases, nil
}

func (c *Copier) walkBase(ctx context.Context, base, namePattern, destDir string, descs []tools.Descriptor, res *Result) {
	walkErr := afero.Walk(c.fs, base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			res.addError("walk %s: %v", normalize(p), err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		full := normalize(p)
		rel := strings.TrimPrefix(full, base+"/")
		if !matchName(namePattern, rel, info.Name()) {
			return nil
		}
		c.copyOne(ctx, full, rel, destDir, descs, res)
		return nil
	})
	if walkErr != nil {
		res.addError("walk %s: %v", base, walkErr)
	}
}

// matchName applies the recursive name pattern. A pattern containing a
// separator matches against the path relative to the base; otherwise it
// matches the bare file name. An empty or bare-star pattern matches all.
func matchName(pattern, rel, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	target := name
	if strings.Contains(pattern, "/") {
		target = rel
	}
	ok, err := doublestar.Match(pattern, target)
	return err == nil && ok
}

func (c *Copier) glob(fixedDir, pattern string) ([]string, error) {
	base := afero.NewBasePathFs(c.fs, fixedDir)
	return doublestar.Glob(afero.NewIOFS(base), pattern)
}

/// copyOne copies a single file to destDir/rel: direct copy first, then the
// transient-skip check, then the fallback chain. The relative destination
// is validated so no source pattern can place a file outside destDir.
func (c *Copier) copyOne(ctx context.Context, src, rel, destDir string, descs []tools.Descriptor, res *Result) {
	rel, err := safety.CleanRelativePath(rel)
	if err != nil {
		res.addError("destination for %s: %v", src, err)
		return
	}

	dest := path.Join(destDir, rel)
	if err := c.fs.MkdirAll(path.Dir(dest), 0o755); err != nil {
		res.addError("create %s: %v", path.Dir(dest), err)
		return
	}

	directErr := c.directCopy(src, dest)
	if directErr == nil {
		c.finishFile(src, rel, dest, "direct", res)
		return
	}
	c.fs.Remove(dest)

	if isTransient(src) {
		res.Skipped++
		c.logger.Debug("skipping transient file", "path", src, "error", directErr)
		return
	}

	c.logger.Debug("direct copy failed, trying fallback tools", "path", src, "error", directErr)
	c.fallback(ctx, src, rel, dest, descs, directErr, res)
}

func (c *Copier) directCopy(src, dest string) error {
	in, err := c.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := c.fs.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// finishFile records a successfully copied file with its size and digest.
func (c *Copier) finishFile(src, rel, dest, tool string, res *Result) {
	info, err := c.fs.Stat(dest)
	if err != nil {
		res.addError("stat copied file %s: %v", dest, err)
		return
	}
	sum, err := c.checksumFile(dest)
	if err != nil {
		res.addError("checksum %s: %v", dest, err)
		return
	}
	res.Files = append(res.Files, CollectedFile{
		Source: src,
		Dest:   rel,
		Size:   info.Size(),
		SHA256: sum,
		Tool:   tool,
	})
	res.FilesCollected++
}

func (c *Copier) checksumFile(p string) (string, error) {
	f, err := c.fs.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
