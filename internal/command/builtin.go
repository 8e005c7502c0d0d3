package command

import (
	"context"
	"fmt"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
	"tfvc/internal/reconcile"
	"tfvc/internal/status"
	"tfvc/internal/vc"
	"tfvc/internal/workspace"
)

// DefaultRegistry returns the registry of built-in workspace commands.
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		addCommand(),
		deleteCommand(),
		checkoutCommand(),
		lockCommand(),
		renameCommand(),
		undeleteCommand(),
		undoCommand(),
		statusCommand(),
		checkinCommand(),
	)
}

func recursion(opts option.Set) vc.RecursionType {
	if opts.Has(option.Recursive) {
		return vc.RecursionFull
	}
	return vc.RecursionNone
}

func wildcardItems(opts option.Set) itemspec.Options {
	return itemspec.Options{
		AllowWildcards: true,
		ExpectedCount:  itemspec.AnyCount,
		Recursion:      recursion(opts),
	}
}

func lockOf(opts option.Set) vc.LockLevel {
	level, _ := opts.LockLevel()
	return level
}

func getOf(opts option.Set) workspace.GetOptions {
	if opts.Has(option.NoGet) {
		return workspace.GetNoDiskUpdate
	}
	return workspace.GetNone
}

func ran(n int, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Ran, Affected: n}, nil
}

// reconciled runs policy and, when it produced targets, hands them to apply.
func reconciled(ctx context.Context, inv *Invocation, policy reconcile.Policy, apply func([]vc.ItemSpec) (int, error)) (Result, error) {
	res, err := reconcile.Reconcile(ctx, inv.Workspace, reconcile.Request{
		Policy:   policy,
		Scope:    inv.Items,
		Root:     inv.Workspace.Root(),
		NoPrompt: inv.NoPrompt,
		NoIgnore: inv.Options.Has(option.NoIgnore),
		Asker:    inv.Asker,
	})
	if err != nil {
		return Result{}, err
	}
	inv.Logger.Debug("reconciled", "policy", policy.String(), "targets", len(res.Targets))

	switch res.Outcome {
	case reconcile.Empty:
		return Result{Outcome: Empty, Policy: policy}, nil
	case reconcile.Declined:
		return Result{Outcome: Declined, Policy: policy}, nil
	}
	n, err := apply(res.Targets)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Ran, Affected: n, Policy: policy}, nil
}

func addCommand() *Command {
	return &Command{
		Name:  "add",
		Short: "Pend adds for new files and folders",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.Lock, option.NoIgnore}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "add itemspec... [-recursive] [-lock:none|checkin|checkout] [-noignore]"},
			{Optional: []option.Kind{option.Detect, option.Lock, option.NoIgnore, option.Recursive}, MinArgs: 0, MaxArgs: option.Unbounded,
				Usage: "add [itemspec...] -detect [-lock:none|checkin|checkout] [-noignore] [-recursive]"},
		},
		Items:       wildcardItems,
		OnZero:      ExitPartialSuccess,
		ZeroMessage: "No files were added.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			req := workspace.Request{Lock: lockOf(inv.Options)}
			if inv.Options.Has(option.NoIgnore) {
				req.Pend = workspace.PendNoIgnore
			}
			pend := func(items []vc.ItemSpec) (int, error) {
				req.Items = items
				return inv.Workspace.PendAdd(ctx, req)
			}
			if len(inv.Items) == 0 || inv.Options.Has(option.Detect) {
				return reconciled(ctx, inv, reconcile.DetectAdd, pend)
			}
			return ran(pend(inv.Items))
		},
	}
}

func deleteCommand() *Command {
	return &Command{
		Name:    "delete",
		Aliases: []string{"del"},
		Short:   "Pend deletes and remove the files locally",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.Lock}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "delete itemspec... [-recursive] [-lock:none|checkin|checkout]"},
			{Required: []option.Kind{option.Detect}, Optional: []option.Kind{option.Lock, option.Recursive}, MinArgs: 0, MaxArgs: option.Unbounded,
				Usage: "delete [itemspec...] -detect [-lock:none|checkin|checkout] [-recursive]"},
		},
		Items:       wildcardItems,
		OnZero:      ExitFailure,
		ZeroMessage: "No matching items found.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			pend := func(items []vc.ItemSpec) (int, error) {
				return inv.Workspace.PendDelete(ctx, workspace.Request{Items: items, Lock: lockOf(inv.Options)})
			}
			if inv.Options.Has(option.Detect) {
				return reconciled(ctx, inv, reconcile.DetectDelete, pend)
			}
			return ran(pend(inv.Items))
		},
	}
}

func checkoutCommand() *Command {
	return &Command{
		Name:    "checkout",
		Aliases: []string{"edit"},
		Short:   "Pend edits on files",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.Lock}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "checkout itemspec... [-recursive] [-lock:none|checkin|checkout]"},
		},
		Items:       wildcardItems,
		OnZero:      ExitFailure,
		ZeroMessage: "No files were checked out.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			return ran(inv.Workspace.PendEdit(ctx, workspace.Request{Items: inv.Items, Lock: lockOf(inv.Options)}))
		},
	}
}

func lockCommand() *Command {
	return &Command{
		Name:  "lock",
		Short: "Set or remove locks on items",
		Sets: []option.AcceptedSet{
			{Required: []option.Kind{option.Lock}, Optional: []option.Kind{option.Recursive, option.NoPrompt}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "lock itemspec... -lock:none|checkin|checkout [-recursive] [-noprompt]"},
		},
		Items:       wildcardItems,
		OnZero:      ExitFailure,
		ZeroMessage: "No items were locked.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			return ran(inv.Workspace.SetLock(ctx, workspace.Request{Items: inv.Items, Lock: lockOf(inv.Options)}))
		},
	}
}

func renameCommand() *Command {
	return &Command{
		Name:    "rename",
		Aliases: []string{"move", "ren"},
		Short:   "Pend a rename or move of an item",
		Sets: []option.AcceptedSet{
			{MinArgs: 2, MaxArgs: 2, Usage: "rename olditem newitem"},
		},
		Items: func(option.Set) itemspec.Options {
			return itemspec.Options{ExpectedCount: 2, Recursion: vc.RecursionNone}
		},
		OnZero:      ExitFailure,
		ZeroMessage: "Nothing was renamed.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			return ran(inv.Workspace.PendRename(ctx, workspace.Request{
				Items:   inv.Items[:1],
				NewName: inv.Items[1].Path,
			}))
		},
	}
}

func undeleteCommand() *Command {
	return &Command{
		Name:  "undelete",
		Short: "Restore deleted items",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.Lock, option.NoGet, option.NewName}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "undelete itemspec[;Xdeletionid]... [-newname:path] [-noget] [-recursive] [-lock:none|checkin|checkout]"},
		},
		Items: func(opts option.Set) itemspec.Options {
			return itemspec.Options{
				ExpectedCount:    itemspec.AnyCount,
				Recursion:        recursion(opts),
				AllowDeletionIDs: true,
			}
		},
		Check: func(opts option.Set, items []vc.ItemSpec) error {
			if opts.Has(option.NewName) && len(items) != 1 {
				return &ArgumentError{Command: "undelete", Msg: "-newname requires exactly one item"}
			}
			return nil
		},
		OnZero:      ExitFailure,
		ZeroMessage: "No deleted items matched.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			req := workspace.Request{Items: inv.Items, Lock: lockOf(inv.Options), Get: getOf(inv.Options)}
			if name := inv.Options.Text(option.NewName); name != "" {
				target, err := canonicalTarget(name, inv.WorkDir)
				if err != nil {
					return Result{}, err
				}
				req.NewName = target
			}
			return ran(inv.Workspace.PendUndelete(ctx, req))
		},
	}
}

func canonicalTarget(name, workDir string) (string, error) {
	if itemspec.IsServerPath(name) {
		p, err := itemspec.CanonicalizeServerPath(name)
		if err != nil {
			return "", &itemspec.SpecError{Reason: itemspec.InvalidPath, Arg: name, Err: err}
		}
		return p, nil
	}
	p, err := itemspec.CanonicalizeLocalPath(name, workDir)
	if err != nil {
		return "", &itemspec.SpecError{Reason: itemspec.InvalidPath, Arg: name, Err: err}
	}
	return p, nil
}

func undoCommand() *Command {
	return &Command{
		Name:  "undo",
		Short: "Undo pending changes",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.NoPrompt, option.NoGet}, MinArgs: 1, MaxArgs: option.Unbounded,
				Usage: "undo itemspec... [-recursive] [-noprompt] [-noget]"},
			{Required: []option.Kind{option.Unchanged}, Optional: []option.Kind{option.Recursive, option.NoPrompt, option.NoGet}, MinArgs: 0, MaxArgs: option.Unbounded,
				Usage: "undo [itemspec...] -unchanged [-recursive] [-noprompt] [-noget]"},
		},
		Items: func(opts option.Set) itemspec.Options {
			o := wildcardItems(opts)
			if opts.Has(option.Unchanged) && !opts.Has(option.Recursive) {
				o.Recursion = vc.RecursionOneLevel
			}
			return o
		},
		OnZero:      ExitFailure,
		ZeroMessage: "No pending changes were undone.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			undo := func(items []vc.ItemSpec) (int, error) {
				return inv.Workspace.Undo(ctx, workspace.Request{Items: items, Get: getOf(inv.Options)})
			}
			if inv.Options.Has(option.Unchanged) {
				return reconciled(ctx, inv, reconcile.UndoUnchanged, undo)
			}
			return ran(undo(inv.Items))
		},
	}
}

func statusCommand() *Command {
	return &Command{
		Name:    "status",
		Aliases: []string{"stat", "st"},
		Short:   "Show pending changes",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Recursive, option.Format, option.Candidate}, MinArgs: 0, MaxArgs: option.Unbounded,
				Usage: "status [itemspec...] [-recursive] [-format:brief|detailed|json] [-candidate]"},
		},
		Items:  wildcardItems,
		OnZero: ExitSuccess,
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			withCandidates := inv.Options.Has(option.Candidate)
			pending, candidates, err := inv.Workspace.PendingChangesWithCandidates(ctx, inv.Items, reconcile.Candidates{Include: withCandidates})
			if err != nil {
				return Result{}, err
			}
			result := &status.Result{Pending: pending, Candidates: candidates, ShowCandidates: withCandidates}
			if err := status.WriteOutput(inv.Out, result, inv.Options.OutputFormat()); err != nil {
				return Result{}, fmt.Errorf("writing status: %w", err)
			}
			return Result{Outcome: Ran, Affected: len(pending) + len(candidates)}, nil
		},
	}
}

func checkinCommand() *Command {
	return &Command{
		Name:    "checkin",
		Aliases: []string{"ci"},
		Short:   "Commit pending changes to the workspace baseline",
		Sets: []option.AcceptedSet{
			{Optional: []option.Kind{option.Comment, option.Recursive}, MinArgs: 0, MaxArgs: option.Unbounded,
				Usage: "checkin [itemspec...] [-comment:text] [-recursive]"},
		},
		Items:       wildcardItems,
		OnZero:      ExitFailure,
		ZeroMessage: "There are no pending changes to check in.",
		Run: func(ctx context.Context, inv *Invocation) (Result, error) {
			cs, err := inv.Workspace.Checkin(ctx, workspace.Request{Items: inv.Items, Comment: inv.Options.Text(option.Comment)})
			if err != nil {
				return Result{}, err
			}
			if cs.Count > 0 {
				inv.Reporter.Info(fmt.Sprintf("Changeset #%d checked in.", cs.Number))
			}
			return Result{Outcome: Ran, Affected: cs.Count}, nil
		},
	}
}
