//go:build !windows

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// backupReadCopy has no backup-semantics equivalent off Windows. It opens
// the source read-only and streams it, which still serves collections from
// mounted images and keeps the fallback chain testable everywhere.
func backupReadCopy(ctx context.Context, src, dest string) error {
	in, err := os.Open(filepath.FromSlash(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.FromSlash(dest))
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if err := copyChunks(ctx, out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
