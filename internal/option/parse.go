package option

import (
	"fmt"

	"tfvc/internal/vc"
)

// Parse converts the raw text of a flag into a typed Option.
func Parse(name, raw string) (Option, error) {
	spec, ok := LookupSpec(name)
	if !ok {
		return Option{}, fmt.Errorf("unknown option -%s", name)
	}

	opt := Option{Kind: spec.Kind, Alias: name}
	switch spec.Type {
	case SwitchValue:
		opt.Value = true
	case StringValue:
		opt.Value = raw
	case LockValue:
		level, err := vc.ParseLockLevel(raw)
		if err != nil {
			return Option{}, fmt.Errorf("-%s: %w", name, err)
		}
		opt.Value = level
	case FormatValue:
		f, err := ParseFormat(raw)
		if err != nil {
			return Option{}, fmt.Errorf("-%s: %w", name, err)
		}
		opt.Value = f
	}
	return opt, nil
}
