package option

import (
	"fmt"
	"strings"
)

// Unbounded marks an AcceptedSet without an upper free argument limit.
const Unbounded = -1

// AcceptedSet is one shape of invocation a command accepts.
type AcceptedSet struct {
	Required []Kind
	Optional []Kind
	MinArgs  int
	MaxArgs  int // Unbounded for no limit
	Usage    string
}

// Validate checks that the required and optional kinds are disjoint and the
// argument bounds are sane.
func (a AcceptedSet) Validate() error {
	req := make(map[Kind]bool, len(a.Required))
	for _, k := range a.Required {
		req[k] = true
	}
	for _, k := range a.Optional {
		if req[k] {
			return fmt.Errorf("option %q is both required and optional in %q", k, a.Usage)
		}
	}
	if a.MinArgs < 0 {
		return fmt.Errorf("negative minimum argument count in %q", a.Usage)
	}
	if a.MaxArgs != Unbounded && a.MaxArgs < a.MinArgs {
		return fmt.Errorf("maximum argument count below minimum in %q", a.Usage)
	}
	return nil
}

// Allows reports whether kind is required or optional in the set.
func (a AcceptedSet) Allows(kind Kind) bool {
	return contains(a.Required, kind) || contains(a.Optional, kind)
}

// AcceptsArgs reports whether n free arguments fall within the bounds.
func (a AcceptedSet) AcceptsArgs(n int) bool {
	return n >= a.MinArgs && (a.MaxArgs == Unbounded || n <= a.MaxArgs)
}

func (a AcceptedSet) hasRequired(s Set) bool {
	for _, k := range a.Required {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

func (a AcceptedSet) allowsAll(s Set, global []Kind) bool {
	for _, k := range s.Kinds() {
		if !a.Allows(k) && !contains(global, k) {
			return false
		}
	}
	return true
}

// Reason identifies why no accepted set matched.
type Reason int

const (
	UnrecognizedOption Reason = iota + 1
	MissingRequiredOption
	IncompatibleOptions
	InvalidFreeArgumentCount
)

func (r Reason) String() string {
	switch r {
	case UnrecognizedOption:
		return "unrecognized option"
	case MissingRequiredOption:
		return "missing required option"
	case IncompatibleOptions:
		return "incompatible options"
	case InvalidFreeArgumentCount:
		return "invalid free argument count"
	default:
		return "unknown"
	}
}

// ResolutionError reports why an invocation fits none of a command's sets.
type ResolutionError struct {
	Reason  Reason
	Options []Kind // offending or missing options
	Args    int
	Usage   []string
}

func (e *ResolutionError) Error() string {
	names := make([]string, len(e.Options))
	for i, k := range e.Options {
		names[i] = "-" + string(k)
	}
	switch e.Reason {
	case UnrecognizedOption:
		return fmt.Sprintf("the command does not support option %s", strings.Join(names, ", "))
	case MissingRequiredOption:
		return fmt.Sprintf("missing required option %s", strings.Join(names, ", "))
	case IncompatibleOptions:
		return fmt.Sprintf("option %s cannot be combined with the other options given", strings.Join(names, ", "))
	case InvalidFreeArgumentCount:
		return fmt.Sprintf("%d free argument(s) is not valid with the options given", e.Args)
	}
	return e.Reason.String()
}

// Resolve returns the first declared set the invocation fits. Options in
// global are accepted by every set.
func Resolve(supplied Set, freeArgs int, declared []AcceptedSet, global []Kind) (AcceptedSet, error) {
	usage := make([]string, len(declared))
	for i, a := range declared {
		usage[i] = a.Usage
	}

	var unknown []Kind
	for _, k := range supplied.Kinds() {
		if contains(global, k) {
			continue
		}
		known := false
		for _, a := range declared {
			if a.Allows(k) {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return AcceptedSet{}, &ResolutionError{Reason: UnrecognizedOption, Options: unknown, Args: freeArgs, Usage: usage}
	}

	anyRequired, anyCompatible := false, false
	for _, a := range declared {
		if !a.hasRequired(supplied) {
			continue
		}
		anyRequired = true
		if !a.allowsAll(supplied, global) {
			continue
		}
		anyCompatible = true
		if a.AcceptsArgs(freeArgs) {
			return a, nil
		}
	}

	switch {
	case !anyRequired:
		return AcceptedSet{}, &ResolutionError{Reason: MissingRequiredOption, Options: missingFrom(declared, supplied), Args: freeArgs, Usage: usage}
	case !anyCompatible:
		return AcceptedSet{}, &ResolutionError{Reason: IncompatibleOptions, Options: extraFor(declared, supplied, global), Args: freeArgs, Usage: usage}
	default:
		return AcceptedSet{}, &ResolutionError{Reason: InvalidFreeArgumentCount, Args: freeArgs, Usage: usage}
	}
}

// missingFrom names the required options of the first declared set that are absent.
func missingFrom(declared []AcceptedSet, supplied Set) []Kind {
	if len(declared) == 0 {
		return nil
	}
	var missing []Kind
	for _, k := range declared[0].Required {
		if !supplied.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// extraFor names the supplied options rejected by the first set whose
// required options are all present.
func extraFor(declared []AcceptedSet, supplied Set, global []Kind) []Kind {
	for _, a := range declared {
		if !a.hasRequired(supplied) {
			continue
		}
		var extra []Kind
		for _, k := range supplied.Kinds() {
			if !a.Allows(k) && !contains(global, k) {
				extra = append(extra, k)
			}
		}
		return extra
	}
	return nil
}

func contains(kinds []Kind, k Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
