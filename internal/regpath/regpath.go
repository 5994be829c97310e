// Package regpath converts Windows registry paths between the notations
// found in artifact catalogs: short hive abbreviations (HKLM\...), long
// hive names (HKEY_LOCAL_MACHINE\...), and provider-qualified forms
// (HKLM:\... or Registry::HKEY_LOCAL_MACHINE\...).
package regpath

import "strings"

// Long-form hive names as required by the export tool.
const (
	HiveLocalMachine  = "HKEY_LOCAL_MACHINE"
	HiveClassesRoot   = "HKEY_CLASSES_ROOT"
	HiveCurrentUser   = "HKEY_CURRENT_USER"
	HiveUsers         = "HKEY_USERS"
	HiveCurrentConfig = "HKEY_CURRENT_CONFIG"
)

// providerPrefix is the qualifier PowerShell-style catalogs put in front of
// long-form registry paths.
const providerPrefix = "registry::"

var shortToLong = map[string]string{
	"HKLM": HiveLocalMachine,
	"HKCR": HiveClassesRoot,
	"HKCU": HiveCurrentUser,
	"HKU":  HiveUsers,
	"HKCC": HiveCurrentConfig,
}

var longToShort = map[string]string{
	HiveLocalMachine:  "HKLM",
	HiveClassesRoot:   "HKCR",
	HiveCurrentUser:   "HKCU",
	HiveUsers:         "HKU",
	HiveCurrentConfig: "HKCC",
}

// splitHive parses a registry path into its long-form hive name and the
// remainder of the key path. The remainder has no leading or trailing
// backslash and no trailing subkey wildcard. ok is false when the hive
// prefix is not recognized.
func splitHive(p string) (hive, rest string, ok bool) {
	s := strings.TrimSpace(p)
	if len(s) >= len(providerPrefix) && strings.EqualFold(s[:len(providerPrefix)], providerPrefix) {
		s = s[len(providerPrefix):]
	}
	if s == "" {
		return "", "", false
	}

	root := s
	if i := strings.IndexAny(s, `\:`); i >= 0 {
		root = s[:i]
		rest = s[i+1:]
	}

	upper := strings.ToUpper(root)
	if long, found := shortToLong[upper]; found {
		hive = long
	} else if _, found := longToShort[upper]; found {
		hive = upper
	} else {
		return "", "", false
	}

	rest = strings.Trim(rest, `\`)
	if rest == "*" {
		rest = ""
	}
	rest = strings.TrimSuffix(rest, `\*`)
	rest = strings.TrimRight(rest, `\`)
	return hive, rest, true
}

// IsRegistryPath reports whether p begins with a recognized hive prefix in
// any supported notation. Filesystem paths (drive letters, UNC shares,
// relative paths) are not registry paths.
func IsRegistryPath(p string) bool {
	_, _, ok := splitHive(p)
	return ok
}

// ToExportForm converts p into the canonical long-form path accepted by the
// export tool, e.g. HKLM:\SOFTWARE\Vendor becomes
// HKEY_LOCAL_MACHINE\SOFTWARE\Vendor. A trailing subkey wildcard (\*) is
// stripped. ok is false for unrecognized hive prefixes; callers must check
// rather than rely on an error value.
func ToExportForm(p string) (string, bool) {
	hive, rest, ok := splitHive(p)
	if !ok {
		return "", false
	}
	if rest == "" {
		return hive, true
	}
	return hive + `\` + rest, true
}

// ToProviderForm converts p into the short colon-qualified form used for
// provider-style enumeration, e.g. HKEY_LOCAL_MACHINE\SOFTWARE becomes
// HKLM:\SOFTWARE. ok is false for unrecognized hive prefixes.
func ToProviderForm(p string) (string, bool) {
	hive, rest, ok := splitHive(p)
	if !ok {
		return "", false
	}
	short := longToShort[hive]
	if rest == "" {
		return short + ":", true
	}
	return short + `:\` + rest, true
}

// HasSubkeyWildcard reports whether p requests subkey enumeration, i.e. ends
// with a \* marker after its key path.
func HasSubkeyWildcard(p string) bool {
	s := strings.TrimRight(strings.TrimSpace(p), `\`)
	return strings.HasSuffix(s, `\*`)
}

// Leaf returns the final key segment of a registry path, or the hive name
// itself for a bare hive. Used to derive export file and directory names.
func Leaf(p string) string {
	hive, rest, ok := splitHive(p)
	if !ok {
		return ""
	}
	if rest == "" {
		return hive
	}
	if i := strings.LastIndex(rest, `\`); i >= 0 {
		return rest[i+1:]
	}
	return rest
}
