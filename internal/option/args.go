package option

import "strings"

// NormalizeArgs rewrites single-dash long options such as -recursive or
// -lock:checkin into the --name and --name=value forms the flag parser
// expects. Tokens after "--" and names missing from the catalog are kept
// as they are.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' || arg[1] == '-' {
			out = append(out, arg)
			continue
		}
		name, value, hasValue := strings.Cut(arg[1:], ":")
		spec, ok := LookupSpec(strings.ToLower(name))
		if !ok || (len(name) < 2 && !hasValue) {
			out = append(out, arg)
			continue
		}
		if hasValue {
			out = append(out, "--"+string(spec.Kind)+"="+value)
		} else {
			out = append(out, "--"+string(spec.Kind))
		}
	}
	return out
}
