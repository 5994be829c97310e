package tools

import (
	"context"
	"io"
)

// builtinDescriptor is the always-available in-process copy, preferred
// over any external tool.
func builtinDescriptor() Descriptor {
	return Descriptor{
		Name:       "backupread",
		Kind:       KindFunction,
		Priority:   0,
		RawCapable: true,
		Copy:       backupReadCopy,
	}
}

// copyChunks copies in fixed-size chunks, checking for cancellation
// between chunks so a stalled read cannot outlive the run deadline.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
