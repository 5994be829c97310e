package engine

import "fmt"

// FormatBytes renders a byte count with a binary unit suffix for the text
// report. Counts below 1 KB print as plain bytes.
func FormatBytes(n int64) string {
	units := []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
	}

	for _, u := range units {
		if n >= u.mult {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.mult), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}
