// Package option models parsed command options and resolves them against the
// option sets a command accepts.
package option

import (
	"fmt"
	"sort"

	"tfvc/internal/vc"
)

// Kind identifies an option independent of the alias it was typed with.
type Kind string

const (
	Recursive Kind = "recursive"
	Lock      Kind = "lock"
	Detect    Kind = "detect"
	NoPrompt  Kind = "noprompt"
	NoGet     Kind = "noget"
	NewName   Kind = "newname"
	Unchanged Kind = "unchanged"
	Format    Kind = "format"
	Candidate Kind = "candidate"
	Comment   Kind = "comment"
	NoIgnore  Kind = "noignore"
	Verbose   Kind = "verbose"
)

// ValueType describes what a kind carries once parsed.
type ValueType int

const (
	SwitchValue ValueType = iota
	StringValue
	LockValue
	FormatValue
)

// Spec describes one option kind for flag registration and help.
type Spec struct {
	Kind    Kind
	Aliases []string
	Type    ValueType
	Usage   string
}

// Catalog lists every option kind the command line understands.
var Catalog = []Spec{
	{Kind: Recursive, Aliases: []string{"r"}, Type: SwitchValue, Usage: "Apply the operation to items below the given folders"},
	{Kind: Lock, Type: LockValue, Usage: "Lock level: none, checkin or checkout"},
	{Kind: Detect, Type: SwitchValue, Usage: "Detect candidate changes in the workspace instead of naming items"},
	{Kind: NoPrompt, Aliases: []string{"i"}, Type: SwitchValue, Usage: "Never ask for confirmation"},
	{Kind: NoGet, Type: SwitchValue, Usage: "Do not update files on disk"},
	{Kind: NewName, Type: StringValue, Usage: "New name for an undeleted item"},
	{Kind: Unchanged, Type: SwitchValue, Usage: "Select pending changes whose content matches the baseline"},
	{Kind: Format, Type: FormatValue, Usage: "Output format: brief, detailed or json"},
	{Kind: Candidate, Type: SwitchValue, Usage: "Include candidate changes detected on disk"},
	{Kind: Comment, Aliases: []string{"c"}, Type: StringValue, Usage: "Changeset comment"},
	{Kind: NoIgnore, Type: SwitchValue, Usage: "Do not apply .tfignore exclusions"},
	{Kind: Verbose, Type: SwitchValue, Usage: "Write debug logging to stderr"},
}

// LookupSpec returns the catalog entry for a kind or alias.
func LookupSpec(name string) (Spec, bool) {
	for _, s := range Catalog {
		if string(s.Kind) == name {
			return s, true
		}
		for _, a := range s.Aliases {
			if a == name {
				return s, true
			}
		}
	}
	return Spec{}, false
}

// OutputFormat is the parsed value of the format option.
type OutputFormat string

const (
	FormatBrief    OutputFormat = "brief"
	FormatDetailed OutputFormat = "detailed"
	FormatJSON     OutputFormat = "json"
)

// ParseFormat parses the value of the format option.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatBrief, FormatDetailed, FormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("invalid format %q (expected brief, detailed or json)", s)
	}
}

// Option is one parsed switch as supplied on the command line.
type Option struct {
	Kind  Kind
	Alias string // as typed, for messages
	Value any    // bool, string, vc.LockLevel or OutputFormat
}

func (o Option) String() string {
	name := o.Alias
	if name == "" {
		name = string(o.Kind)
	}
	return "-" + name
}

// Set maps option kinds to their parsed values. It is built once per
// invocation and never modified afterwards.
type Set struct {
	opts map[Kind]Option
}

// NewSet builds a Set. A later option of the same kind replaces an earlier one.
func NewSet(opts ...Option) Set {
	m := make(map[Kind]Option, len(opts))
	for _, o := range opts {
		m[o.Kind] = o
	}
	return Set{opts: m}
}

// Has reports whether kind was supplied.
func (s Set) Has(kind Kind) bool {
	_, ok := s.opts[kind]
	return ok
}

// Get returns the option of the given kind.
func (s Set) Get(kind Kind) (Option, bool) {
	o, ok := s.opts[kind]
	return o, ok
}

// Len returns the number of supplied options.
func (s Set) Len() int {
	return len(s.opts)
}

// Kinds returns the supplied kinds in sorted order.
func (s Set) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.opts))
	for k := range s.opts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Text returns the string value of kind, or "" when absent.
func (s Set) Text(kind Kind) string {
	if o, ok := s.opts[kind]; ok {
		if v, ok := o.Value.(string); ok {
			return v
		}
	}
	return ""
}

// LockLevel returns the lock option value.
func (s Set) LockLevel() (vc.LockLevel, bool) {
	if o, ok := s.opts[Lock]; ok {
		if v, ok := o.Value.(vc.LockLevel); ok {
			return v, true
		}
	}
	return vc.LockNone, false
}

// OutputFormat returns the format option value, defaulting to brief.
func (s Set) OutputFormat() OutputFormat {
	if o, ok := s.opts[Format]; ok {
		if v, ok := o.Value.(OutputFormat); ok {
			return v
		}
	}
	return FormatBrief
}
