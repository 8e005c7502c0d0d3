// Package itemspec turns raw path and version arguments into item specifications.
package itemspec

import (
	"fmt"
	"path/filepath"
	"strings"

	"tfvc/internal/vc"
)

// IsServerPath reports whether p is rooted at the server root marker.
func IsServerPath(p string) bool {
	return p == "$" || strings.HasPrefix(p, "$/") || strings.HasPrefix(p, `$\`)
}

// CanonicalizeServerPath normalizes separators, collapses empty and dot
// segments and drops any trailing slash. The case of each segment is kept.
func CanonicalizeServerPath(p string) (string, error) {
	if !IsServerPath(p) {
		return "", fmt.Errorf("%q is not a server path", p)
	}
	p = strings.ReplaceAll(p, `\`, "/")

	var segs []string
	for _, seg := range strings.Split(p[1:], "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segs) == 0 {
				return "", fmt.Errorf("server path %q escapes the root", p)
			}
			segs = segs[:len(segs)-1]
		default:
			if strings.ContainsAny(seg, `:<>|"`) {
				return "", fmt.Errorf("server path %q contains an invalid character", p)
			}
			segs = append(segs, seg)
		}
	}
	return vc.ServerRoot + strings.Join(segs, "/"), nil
}

// ServerParent returns the parent folder of a canonical server path.
func ServerParent(p string) string {
	if p == vc.ServerRoot {
		return ""
	}
	i := strings.LastIndex(p, "/")
	if i <= 1 {
		return vc.ServerRoot
	}
	return p[:i]
}

// ServerName returns the last segment of a canonical server path.
func ServerName(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

// ServerJoin appends a relative slash path to a server folder.
func ServerJoin(parent, rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return parent
	}
	if strings.HasSuffix(parent, "/") {
		return parent + rel
	}
	return parent + "/" + rel
}

// ServerEqual compares server paths the way the server does, ignoring case.
func ServerEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsServerChild reports whether item lies below parent. With direct set,
// only immediate children count.
func IsServerChild(parent, item string, direct bool) bool {
	prefix := parent
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if len(item) <= len(prefix) || !strings.EqualFold(item[:len(prefix)], prefix) {
		return false
	}
	return !direct || !strings.Contains(item[len(prefix):], "/")
}

// CanonicalizeLocalPath returns the absolute, cleaned form of p, resolving
// relative paths against workDir.
func CanonicalizeLocalPath(p, workDir string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty local path")
	}
	if !filepath.IsAbs(p) {
		if workDir == "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", fmt.Errorf("resolving %q: %w", p, err)
			}
			return abs, nil
		}
		p = filepath.Join(workDir, p)
	}
	return filepath.Clean(p), nil
}

// HasWildcard reports whether the last path segment carries glob characters.
func HasWildcard(p string) bool {
	return strings.ContainsAny(lastSegment(p), "*?")
}

func lastSegment(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return p[strings.LastIndex(p, "/")+1:]
}
