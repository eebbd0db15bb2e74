package tagcache

import "strings"

// Reserved prefixes of implicit tags: route segment, static path and tag
// namespace tags derived by the framework.
var implicitTagPrefixes = [...]string{"_N_", "_S_", "_T_"}

// IsImplicitTag reports whether tag is derived from route structure rather
// than assigned by application code. Implicit tags are never recorded in the
// tag ledger; they are checked against the revalidation clock on read.
func IsImplicitTag(tag string) bool {
	for _, p := range implicitTagPrefixes {
		if strings.HasPrefix(tag, p) {
			return true
		}
	}
	return false
}

// combineTags returns explicit ∪ implicit, first occurrence order, no duplicates.
func combineTags(explicit, implicit []string) []string {
	if len(explicit)+len(implicit) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(explicit)+len(implicit))
	out := make([]string, 0, len(explicit)+len(implicit))
	for _, set := range [2][]string{explicit, implicit} {
		for _, t := range set {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
