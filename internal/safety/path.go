package safety

import (
	"fmt"
	"path"
	"strings"
)

// CleanRelativePath validates and normalizes a destination path that is
// meant to stay relative. The input may use either separator flavor; the
// result is in slash form. Absolute paths, drive-qualified paths, and
// anything resolving upward out of its root are rejected.
func CleanRelativePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}

	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if clean == "." {
		return "", fmt.Errorf("path resolves to current directory")
	}
	if path.IsAbs(clean) || hasDrivePrefix(clean) {
		return "", fmt.Errorf("absolute paths are not allowed: %q", p)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("parent traversal is not allowed: %q", p)
	}
	return clean, nil
}

func hasDrivePrefix(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
