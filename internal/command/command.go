// Package command holds the closed registry of workspace commands and the
// executor that resolves, runs and scores one invocation.
package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
	"tfvc/internal/reconcile"
	"tfvc/internal/vc"
	"tfvc/internal/workspace"
)

// Invocation is everything a runner may use. It is built by the executor
// once options and items are resolved.
type Invocation struct {
	Command   *Command
	Set       option.AcceptedSet
	Options   option.Set
	Items     []vc.ItemSpec
	Workspace workspace.Workspace
	Asker     reconcile.Asker
	Reporter  Reporter
	Out       io.Writer
	WorkDir   string
	Logger    *slog.Logger
	// NoPrompt is the configured default; the -noprompt option also sets it.
	NoPrompt bool
}

// Runner performs the command against the workspace.
type Runner func(ctx context.Context, inv *Invocation) (Result, error)

// Command is one registry entry.
type Command struct {
	Name    string
	Aliases []string
	Short   string
	Sets    []option.AcceptedSet
	// Items derives item resolution options from the supplied options.
	Items func(opts option.Set) itemspec.Options
	// Check runs after resolution and before the workspace is opened.
	Check func(opts option.Set, items []vc.ItemSpec) error
	// OnZero is the exit code when the batch affected nothing.
	OnZero      ExitCode
	ZeroMessage string
	Run         Runner
}

// Registry maps command names and aliases to commands.
type Registry struct {
	byName map[string]*Command
	cmds   []*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds cmd under its name and aliases.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no runner", cmd.Name)
	}
	for _, s := range cmd.Sets {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("command %q: %w", cmd.Name, err)
		}
	}
	names := append([]string{cmd.Name}, cmd.Aliases...)
	for _, n := range names {
		key := strings.ToLower(n)
		if _, ok := r.byName[key]; ok {
			return fmt.Errorf("command name %q registered twice", n)
		}
	}
	for _, n := range names {
		r.byName[strings.ToLower(n)] = cmd
	}
	r.cmds = append(r.cmds, cmd)
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(cmds ...*Command) *Registry {
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup finds a command by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	out := append([]*Command(nil), r.cmds...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Usage lists the accepted shapes of the command.
func (c *Command) Usage() []string {
	lines := make([]string, 0, len(c.Sets))
	for _, s := range c.Sets {
		lines = append(lines, s.Usage)
	}
	return lines
}

func (c *Command) itemOptions(opts option.Set) itemspec.Options {
	if c.Items != nil {
		return c.Items(opts)
	}
	return itemspec.Options{ExpectedCount: itemspec.AnyCount}
}
