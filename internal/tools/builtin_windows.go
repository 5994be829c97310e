//go:build windows

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// backupReadCopy opens src with backup semantics and full sharing, so files
// other processes hold open with exclusive locks (registry hives, event
// logs) can still be read, then streams the bytes to dest.
func backupReadCopy(ctx context.Context, src, dest string) error {
	srcPtr, err := windows.UTF16PtrFromString(filepath.FromSlash(src))
	if err != nil {
		return fmt.Errorf("encode path %s: %w", src, err)
	}

	h, err := windows.CreateFile(
		srcPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_SEQUENTIAL_SCAN,
		0,
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	in := os.NewFile(uintptr(h), src)
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
