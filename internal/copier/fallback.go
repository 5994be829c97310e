package copier

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/opentriage/forage/internal/tools"
)

// systemDirFragments mark locations whose files are commonly locked or
// ACL-protected by the OS.
var systemDirFragments = []string{
	"/windows/",
	"/program files",
	"/programdata/",
	"/system volume information/",
}

// systemFileNames are extensionless hive and filesystem metadata files.
var systemFileNames = map[string]bool{
	"sam":          true,
	"system":       true,
	"software":     true,
	"security":     true,
	"default":      true,
	"ntuser.dat":   true,
	"usrclass.dat": true,
	"$mft":         true,
	"$logfile":     true,
}

var systemFileExts = map[string]bool{
	".evtx": true,
	".etl":  true,
	".dat":  true,
	".hve":  true,
	".edb":  true,
	".pf":   true,
}

// isSystemFile reports whether src looks like an OS-protected file, in
// which case raw-capable tools are preferred in the fallback chain.
func isSystemFile(src string) bool {
	lower := strings.ToLower(src)
	for _, frag := range systemDirFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	name := path.Base(lower)
	if systemFileNames[name] {
		return true
	}
	return systemFileExts[path.Ext(name)]
}

// transientPatterns match files that are expected to vanish or churn while
// a collection runs: rotated logs and scratch files.
var transientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.log\.\d+$`),
	regexp.MustCompile(`(?i)\.tmp$`),
	regexp.MustCompile(`(?i)\.temp$`),
}

// isTransient reports whether a file that failed its direct copy should be
// skipped instead of escalated to the fallback tools.
func isTransient(src string) bool {
	name := path.Base(src)
	if strings.HasPrefix(name, "~") {
		return true
	}
	for _, re := range transientPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// fatalSizeFragments identify tool failures that no other tool can get
// past, such as path-length or file-size limits.
var fatalSizeFragments = []string{
	"too long",
	"too large",
	"maximum path",
	"maximum length",
	"exceeds the limit",
}

func isFatalSizeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, frag := range fatalSizeFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// orderForFallback returns the tools in the order to try for src: for
// system files the raw-capable tools move to the front, otherwise the
// registry's priority order stands.
func orderForFallback(descs []tools.Descriptor, src string) []tools.Descriptor {
	if !isSystemFile(src) {
		return descs
	}
	ordered := make([]tools.Descriptor, 0, len(descs))
	for _, d := range descs {
		if d.RawCapable {
			ordered = append(ordered, d)
		}
	}
	for _, d := range descs {
		if !d.RawCapable {
			ordered = append(ordered, d)
		}
	}
	return ordered
}

// fallback walks the tool chain for one file after its direct copy failed.
// Tool failures accumulate and surface as a single error if every tool
// fails; a size or length incompatibility stops the chain early since the
// remaining tools would fail the same way.
func (c *Copier) fallback(ctx context.Context, src, rel, dest string, descs []tools.Descriptor, directErr error, res *Result) {
	if len(descs) == 0 {
		res.addError("copy %s: %v (no fallback tools available)", src, directErr)
		return
	}

	var attempts []string
	for _, tool := range orderForFallback(descs, src) {
		if err := ctx.Err(); err != nil {
			res.addError("copy %s: %v", src, err)
			return
		}

		err := c.invokeTool(ctx, tool, src, dest)
		if err == nil {
			c.logger.Debug("fallback copy succeeded", "path", src, "tool", tool.Name)
			c.finishFile(src, rel, dest, tool.Name, res)
			return
		}
		c.fs.Remove(dest)
		attempts = append(attempts, fmt.Sprintf("%s: %v", tool.Name, err))

		if isFatalSizeError(err) {
			res.addError("copy %s: direct: %v; %s (size incompatibility, chain stopped)",
				src, directErr, strings.Join(attempts, "; "))
			return
		}
	}

	res.addError("copy %s: direct: %v; %s", src, directErr, strings.Join(attempts, "; "))
}

// invokeTool runs one tool against one file. Success additionally requires
// the destination file to exist afterwards; exit conventions alone are not
// trusted.
func (c *Copier) invokeTool(ctx context.Context, tool tools.Descriptor, src, dest string) error {
	switch tool.Kind {
	case tools.KindFunction:
		if tool.Copy == nil {
			return fmt.Errorf("tool has no copy function")
		}
		if err := tool.Copy(ctx, src, dest); err != nil {
			return err
		}
	case tools.KindExecutable:
		if tool.Args == nil {
			return fmt.Errorf("tool has no argument builder")
		}
		out, err := c.runner.Run(ctx, tool.Path, tool.Args(src, dest)...)
		if err != nil {
			return err
		}
		if !tool.ExitOK(out.ExitCode) {
			return fmt.Errorf("exit code %d: %s", out.ExitCode, strings.TrimSpace(string(out.Combined)))
		}
	default:
		return fmt.Errorf("unknown tool kind %s", tool.Kind)
	}

	ok, err := afero.Exists(c.fs, dest)
	if err != nil || !ok {
		return fmt.Errorf("tool exited successfully but %s was not created", dest)
	}
	return nil
}
