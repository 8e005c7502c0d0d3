package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
	"tfvc/internal/reconcile"
	"tfvc/internal/workspace"
)

// Opener supplies the workspace for one invocation. notify receives
// warnings the workspace raises while it runs.
type Opener func(ctx context.Context, notify func(string)) (workspace.Workspace, error)

// Executor runs commands from a registry.
type Executor struct {
	Registry *Registry
	Open     Opener
	Asker    reconcile.Asker
	Reporter Reporter
	Out      io.Writer
	WorkDir  string
	Logger   *slog.Logger
	// Global options are accepted by every command.
	Global   []option.Kind
	NoPrompt bool
}

// Execute resolves and runs one command and returns its exit code. The
// error, when non-nil, has already been reported.
func (e *Executor) Execute(ctx context.Context, name string, opts option.Set, args []string) (ExitCode, error) {
	log := e.logger().With("command", name)

	cmd, ok := e.Registry.Lookup(name)
	if !ok {
		return e.fail(log, nil, &UnknownCommandError{Name: name})
	}

	set, err := option.Resolve(opts, len(args), cmd.Sets, e.Global)
	if err != nil {
		return e.fail(log, cmd, fmt.Errorf("%s: %w", cmd.Name, err))
	}
	log.Debug("resolved option set", "usage", set.Usage, "args", len(args))

	iopts := cmd.itemOptions(opts)
	iopts.WorkDir = e.WorkDir
	items, err := itemspec.Resolve(args, iopts)
	if err != nil {
		return e.fail(log, cmd, fmt.Errorf("%s: %w", cmd.Name, err))
	}
	if cmd.Check != nil {
		if err := cmd.Check(opts, items); err != nil {
			return e.fail(log, cmd, err)
		}
	}

	var warnings int
	ws, err := e.Open(ctx, func(msg string) {
		warnings++
		e.reporter().Info(msg)
	})
	if err != nil {
		return e.fail(log, cmd, err)
	}
	defer ws.Close()

	inv := &Invocation{
		Command:   cmd,
		Set:       set,
		Options:   opts,
		Items:     items,
		Workspace: ws,
		Asker:     e.Asker,
		Reporter:  e.reporter(),
		Out:       e.Out,
		WorkDir:   e.WorkDir,
		Logger:    log,
		NoPrompt:  e.NoPrompt || opts.Has(option.NoPrompt),
	}
	res, err := cmd.Run(ctx, inv)
	if err != nil {
		return e.fail(log, cmd, err)
	}

	code, msg := ExitFor(cmd, res)
	if msg != "" {
		e.reporter().Info(msg)
	}
	if warnings > 0 && code == ExitSuccess {
		code = code.Compose(ExitPartialSuccess)
	}
	log.Debug("command finished", "affected", res.Affected, "exit", int(code))
	return code, nil
}

func (e *Executor) fail(log *slog.Logger, cmd *Command, err error) (ExitCode, error) {
	class := Classify(err)
	log.Warn("command failed", "class", class.String(), "error", err)
	e.reporter().Error(err.Error())

	if cmd != nil && (class == ClassArgument || class == ClassOption) {
		e.reporter().Info("Usage:")
		for _, u := range cmd.Usage() {
			e.reporter().Info("  tfvc " + u)
		}
	}
	return ExitForError(err), err
}

func (e *Executor) reporter() Reporter {
	if e.Reporter == nil {
		return WriterReporter{}
	}
	return e.Reporter
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
