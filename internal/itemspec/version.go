package itemspec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tfvc/internal/vc"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseVersionSpec parses T, C<n>, <n>, L<label>[@scope], D<date> and
// W[<name>[;<owner>]].
func ParseVersionSpec(s string) (vc.VersionSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return vc.VersionSpec{}, fmt.Errorf("empty version spec")
	}

	if n, err := strconv.Atoi(s); err == nil {
		return changeset(n, s)
	}

	body := s[1:]
	switch s[0] {
	case 'T', 't':
		if body != "" {
			return vc.VersionSpec{}, fmt.Errorf("invalid latest version spec %q", s)
		}
		return vc.Latest(), nil
	case 'C', 'c':
		n, err := strconv.Atoi(body)
		if err != nil {
			return vc.VersionSpec{}, fmt.Errorf("invalid changeset version spec %q", s)
		}
		return changeset(n, s)
	case 'L', 'l':
		label, scope, _ := strings.Cut(body, "@")
		if label == "" {
			return vc.VersionSpec{}, fmt.Errorf("label version spec %q has no label name", s)
		}
		if scope != "" && IsServerPath(scope) {
			canon, err := CanonicalizeServerPath(scope)
			if err != nil {
				return vc.VersionSpec{}, err
			}
			scope = canon
		}
		return vc.VersionSpec{Kind: vc.VersionLabel, Label: label, Scope: scope}, nil
	case 'D', 'd':
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, body, time.Local); err == nil {
				return vc.VersionSpec{Kind: vc.VersionDate, Date: t}, nil
			}
		}
		return vc.VersionSpec{}, fmt.Errorf("invalid date version spec %q", s)
	case 'W', 'w':
		name, owner, _ := strings.Cut(body, ";")
		return vc.VersionSpec{Kind: vc.VersionWorkspace, Workspace: name, Owner: owner}, nil
	default:
		return vc.VersionSpec{}, fmt.Errorf("unrecognized version spec %q", s)
	}
}

func changeset(n int, raw string) (vc.VersionSpec, error) {
	if n <= 0 {
		return vc.VersionSpec{}, fmt.Errorf("changeset number in %q must be positive", raw)
	}
	return vc.Changeset(n), nil
}
