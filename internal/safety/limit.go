package safety

import (
	"errors"
	"fmt"
	"io"
)

// ErrOutputTooLarge indicates a read exceeded the configured limit.
var ErrOutputTooLarge = errors.New("output too large")

// ReadAllWithLimit reads from r and fails if content exceeds limit bytes.
// Used to bound reads of catalog files and other untrusted input.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid read limit: %d", limit)
	}
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrOutputTooLarge
	}
	return data, nil
}
