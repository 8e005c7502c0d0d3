package itemspec

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"tfvc/internal/vc"
)

// Matches reports whether serverItem is selected by a spec whose path has
// already been mapped to the server namespace. A wildcard in the last
// segment matches names inside the parent folder; recursion then extends
// the match to everything below a matching folder.
func Matches(specPath string, recursion vc.RecursionType, serverItem string) bool {
	if HasWildcard(specPath) {
		parent := ServerParent(specPath)
		pattern := strings.ToLower(ServerName(specPath))

		name, base := childOf(parent, serverItem)
		if name == "" {
			return false
		}
		ok, _ := doublestar.Match(pattern, strings.ToLower(name))
		if !ok {
			return false
		}
		if ServerEqual(base, serverItem) {
			return true
		}
		return matchesBelow(base, recursion, serverItem)
	}

	if ServerEqual(specPath, serverItem) {
		return true
	}
	return matchesBelow(specPath, recursion, serverItem)
}

func matchesBelow(folder string, recursion vc.RecursionType, item string) bool {
	switch recursion {
	case vc.RecursionOneLevel:
		return IsServerChild(folder, item, true)
	case vc.RecursionFull:
		return IsServerChild(folder, item, false)
	default:
		return false
	}
}

// childOf returns the name of the path segment directly below parent on the
// way to item, and the full path of that segment.
func childOf(parent, item string) (name, full string) {
	if !IsServerChild(parent, item, false) {
		return "", ""
	}
	prefixLen := len(parent)
	if !strings.HasSuffix(parent, "/") {
		prefixLen++
	}
	rest := item[prefixLen:]
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest, item[:prefixLen+len(rest)]
}
