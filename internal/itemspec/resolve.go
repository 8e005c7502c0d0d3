package itemspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tfvc/internal/vc"
)

// AnyCount disables the argument count check in Options.
const AnyCount = -1

// Reason identifies why an argument could not be resolved.
type Reason int

const (
	WildcardNotAllowed Reason = iota + 1
	WrongArgumentCount
	InvalidVersionSpec
	InvalidPath
	DeletionNotAllowed
)

func (r Reason) String() string {
	switch r {
	case WildcardNotAllowed:
		return "wildcard not allowed"
	case WrongArgumentCount:
		return "wrong argument count"
	case InvalidVersionSpec:
		return "invalid version spec"
	case InvalidPath:
		return "invalid path"
	case DeletionNotAllowed:
		return "deletion id not allowed"
	default:
		return "unknown"
	}
}

// SpecError reports an argument that does not form a valid item spec.
type SpecError struct {
	Reason   Reason
	Arg      string
	Expected int
	Got      int
	Err      error
}

func (e *SpecError) Error() string {
	switch e.Reason {
	case WrongArgumentCount:
		return fmt.Sprintf("expected %d item argument(s), got %d", e.Expected, e.Got)
	case WildcardNotAllowed:
		return fmt.Sprintf("wildcards are not allowed in %q", e.Arg)
	case DeletionNotAllowed:
		return fmt.Sprintf("a deletion id is not allowed in %q", e.Arg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Reason, e.Arg, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Reason, e.Arg)
}

func (e *SpecError) Unwrap() error { return e.Err }

// Options controls Resolve.
type Options struct {
	DefaultVersion   vc.VersionSpec
	AllowWildcards   bool
	ExpectedCount    int
	Recursion        vc.RecursionType
	AllowDeletionIDs bool
	// WorkDir anchors relative local paths; the process working directory
	// is used when empty.
	WorkDir string
}

var deletionSuffix = regexp.MustCompile(`;[Xx](\d+)$`)

// Resolve parses raw arguments of the form path[;version][;X<deletionID>].
// Empty arguments are skipped.
func Resolve(raw []string, opts Options) ([]vc.ItemSpec, error) {
	specs := make([]vc.ItemSpec, 0, len(raw))
	for _, arg := range raw {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		spec, err := resolveOne(arg, opts)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	if opts.ExpectedCount != AnyCount && len(specs) != opts.ExpectedCount {
		return nil, &SpecError{Reason: WrongArgumentCount, Expected: opts.ExpectedCount, Got: len(specs)}
	}
	return specs, nil
}

func resolveOne(arg string, opts Options) (vc.ItemSpec, error) {
	rest := arg
	deletionID := 0
	if m := deletionSuffix.FindStringSubmatchIndex(rest); m != nil {
		n, err := strconv.Atoi(rest[m[2]:m[3]])
		if err != nil || n <= 0 {
			return vc.ItemSpec{}, &SpecError{Reason: InvalidPath, Arg: arg, Err: fmt.Errorf("bad deletion id")}
		}
		if !opts.AllowDeletionIDs {
			return vc.ItemSpec{}, &SpecError{Reason: DeletionNotAllowed, Arg: arg}
		}
		deletionID = n
		rest = rest[:m[0]]
	}

	path, versionText, hasVersion := strings.Cut(rest, ";")
	version := opts.DefaultVersion
	if hasVersion {
		v, err := ParseVersionSpec(versionText)
		if err != nil {
			return vc.ItemSpec{}, &SpecError{Reason: InvalidVersionSpec, Arg: arg, Err: err}
		}
		version = v
	}

	var err error
	if IsServerPath(path) {
		path, err = CanonicalizeServerPath(path)
	} else {
		path, err = CanonicalizeLocalPath(path, opts.WorkDir)
	}
	if err != nil {
		return vc.ItemSpec{}, &SpecError{Reason: InvalidPath, Arg: arg, Err: err}
	}

	if !opts.AllowWildcards && HasWildcard(path) {
		return vc.ItemSpec{}, &SpecError{Reason: WildcardNotAllowed, Arg: arg}
	}

	return vc.ItemSpec{
		Path:       path,
		Recursion:  opts.Recursion,
		DeletionID: deletionID,
		Version:    version,
	}, nil
}
