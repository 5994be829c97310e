package copier

import "strings"

// SourceKind is how a source path will be processed. The classification is
// computed once per path and then matched exhaustively, so the three
// handling branches cannot fall through to one another on odd inputs.
type SourceKind int

const (
	// SourceRecursive paths carry a ** marker and walk a base directory.
	SourceRecursive SourceKind = iota
	// SourceWildcard paths carry * or ? and enumerate non-recursively.
	SourceWildcard
	// SourceLiteral paths name one file or directory.
	SourceLiteral
)

func (k SourceKind) String() string {
	switch k {
	case SourceRecursive:
		return "recursive"
	case SourceWildcard:
		return "wildcard"
	default:
		return "literal"
	}
}

// Classify decides the handling for a source path. The recursive marker
// wins over single-level wildcards, which win over literal handling.
func Classify(p string) SourceKind {
	if strings.Contains(p, "**") {
		return SourceRecursive
	}
	if strings.ContainsAny(p, "*?") {
		return SourceWildcard
	}
	return SourceLiteral
}

// normalize renders a path with forward slashes. Catalog paths arrive in
// Windows notation; all matching and joining below works on slash form,
// which both filesystems accept.
func normalize(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// splitRecursive separates a recursive source into its base directory and
// the name pattern applied to files found under it. Either side may be
// empty.
func splitRecursive(p string) (base, namePattern string) {
	i := strings.Index(p, "**")
	base = strings.TrimRight(p[:i], "/")
	namePattern = strings.TrimLeft(p[i+2:], "/")
	return base, namePattern
}

// splitGlob separates the fixed directory prefix from the segment carrying
// the first metacharacter onward. The fixed prefix is a concrete directory
// that becomes the glob root.
func splitGlob(p string) (fixed, pattern string) {
	i := strings.IndexAny(p, "*?")
	if i < 0 {
		return p, ""
	}
	slash := strings.LastIndex(p[:i], "/")
	if slash < 0 {
		return ".", p
	}
	if slash == 0 {
		return "/", p[1:]
	}
	return p[:slash], p[slash+1:]
}
