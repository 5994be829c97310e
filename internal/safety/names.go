package safety

import "strings"

// illegalNameChars are the characters Windows forbids in file names, which
// also covers the path separators on other platforms.
const illegalNameChars = `<>:"/\|?*`

// SanitizeName converts an arbitrary artifact or registry key name into a
// string usable as a single file or directory name. Illegal characters
// become underscores; trailing dots and spaces are trimmed because Windows
// silently drops them when creating the entry.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(illegalNameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimRight(b.String(), ". ")
	if out == "" {
		return "_"
	}
	return out
}
