package ipld

import "strings"

// Path identifies where in a (possibly nested) Value a problem occurred.
// Used by the IPLD<->WIT interpreter to report the location of a
// TypeMismatch/ArityMismatch/etc. failure.
type Path []string

func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	return "$." + strings.Join(p, ".")
}

// Push returns a new Path with segment appended, leaving p untouched.
func (p Path) Push(segment string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, segment)
}
