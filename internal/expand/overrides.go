package expand

import "regexp"

// Override is a correction rule applied to expanded paths. Some upstream
// artifact catalogs carry paths that do not match what current Windows
// builds write to disk; each known quirk gets one table entry here instead
// of a special case inside the expansion logic.
type Override struct {
	// Pattern matches the incorrect path segment.
	Pattern *regexp.Regexp
	// Replace is the substitution, using $1-style group references.
	Replace string
}

// Apply rewrites p if the rule matches, otherwise returns it unchanged.
func (o Override) Apply(p string) string {
	return o.Pattern.ReplaceAllString(p, o.Replace)
}

// DefaultOverrides returns the known catalog corrections.
//
// ConnectedDevicesPlatform stores per-account data under directory names
// like L.<account> or a SID, while common catalogs hardcode one literal
// form; widening the segment to a wildcard collects every variant.
func DefaultOverrides() []Override {
	return []Override{
		{
			Pattern: regexp.MustCompile(`(?i)(ConnectedDevicesPlatform[\\/])L\.[^\\/]+`),
			Replace: `${1}*`,
		},
	}
}
