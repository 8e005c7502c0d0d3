// Package reconcile turns "whatever changed" requests into explicit target
// lists by querying a workspace for pending and candidate changes.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tfvc/internal/vc"
)

// Policy selects which changes a reconciliation keeps.
type Policy int

const (
	DetectAdd Policy = iota + 1
	DetectDelete
	UndoUnchanged
)

func (p Policy) String() string {
	switch p {
	case DetectAdd:
		return "detect-add"
	case DetectDelete:
		return "detect-delete"
	case UndoUnchanged:
		return "undo-unchanged"
	default:
		return "unknown"
	}
}

// Outcome says what a reconciliation produced.
type Outcome int

const (
	// Targets means the target list is non-empty and ready for the batch call.
	Targets Outcome = iota
	// Empty means nothing matched the policy.
	Empty
	// Declined means the user answered no to the confirmation.
	Declined
)

// Candidates selects what a pending change query looks for on disk.
type Candidates struct {
	Include bool
	// NoIgnore also reports items that .tfignore excludes.
	NoIgnore bool
}

// Querier is the read side of the workspace used during reconciliation.
type Querier interface {
	PendingChanges(ctx context.Context, scope []vc.ItemSpec) ([]vc.PendingChange, error)
	PendingChangesWithCandidates(ctx context.Context, scope []vc.ItemSpec, cand Candidates) ([]vc.PendingChange, []vc.CandidateChange, error)
	IsUnchanged(ctx context.Context, change vc.PendingChange) (bool, error)
}

// Asker is the interactive confirmation boundary.
type Asker interface {
	Ask(question string) (bool, error)
}

// Request describes one reconciliation pass.
type Request struct {
	Policy Policy
	// Scope limits the pass; empty means the whole workspace.
	Scope []vc.ItemSpec
	// Root is the workspace root used as the default detect scope.
	Root     string
	NoPrompt bool
	// NoIgnore makes detection see items .tfignore excludes.
	NoIgnore bool
	Asker    Asker
}

// Result is the outcome of a pass. Targets is empty unless Outcome is Targets.
type Result struct {
	Policy  Policy
	Outcome Outcome
	Targets []vc.ItemSpec
}

// Reconcile runs the policy in req against q.
func Reconcile(ctx context.Context, q Querier, req Request) (Result, error) {
	switch req.Policy {
	case DetectAdd:
		return detect(ctx, q, req, vc.ChangeAdd)
	case DetectDelete:
		return detect(ctx, q, req, vc.ChangeDelete)
	case UndoUnchanged:
		return undoUnchanged(ctx, q, req)
	default:
		return Result{}, fmt.Errorf("unknown reconcile policy %d", req.Policy)
	}
}

func detect(ctx context.Context, q Querier, req Request, want vc.ChangeType) (Result, error) {
	scope := req.Scope
	if len(scope) == 0 {
		scope = []vc.ItemSpec{{Path: req.Root, Recursion: vc.RecursionFull, Version: vc.Latest()}}
	}

	_, candidates, err := q.PendingChangesWithCandidates(ctx, scope, Candidates{Include: true, NoIgnore: req.NoIgnore})
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]bool)
	var targets []vc.ItemSpec
	for _, c := range candidates {
		if !c.ChangeType.Contains(want) {
			continue
		}
		path := c.Path()
		key := strings.ToLower(path)
		if path == "" || seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, vc.ItemSpec{Path: path, Recursion: vc.RecursionNone, Version: vc.Latest()})
	}

	return finish(req.Policy, targets), nil
}

func undoUnchanged(ctx context.Context, q Querier, req Request) (Result, error) {
	var scope []vc.ItemSpec
	if len(req.Scope) > 0 {
		scope = req.Scope
	}
	changes, err := q.PendingChanges(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]bool)
	var targets []vc.ItemSpec
	for _, c := range changes {
		unchanged, err := q.IsUnchanged(ctx, c)
		if err != nil {
			return Result{}, err
		}
		key := strings.ToLower(c.ServerItem)
		if !unchanged || seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, vc.ItemSpec{Path: c.ServerItem, Recursion: vc.RecursionNone, Version: vc.Latest()})
	}

	res := finish(req.Policy, targets)
	if res.Outcome != Targets || req.NoPrompt {
		return res, nil
	}
	if req.Asker == nil {
		return Result{}, fmt.Errorf("confirmation required but no prompt is available (use -noprompt)")
	}

	ok, err := req.Asker.Ask(fmt.Sprintf("Undo %d unchanged pending change(s)?", len(targets)))
	if err != nil {
		return Result{}, fmt.Errorf("reading confirmation: %w", err)
	}
	if !ok {
		return Result{Policy: req.Policy, Outcome: Declined}, nil
	}
	return res, nil
}

func finish(p Policy, targets []vc.ItemSpec) Result {
	if len(targets) == 0 {
		return Result{Policy: p, Outcome: Empty}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Path < targets[j].Path })
	return Result{Policy: p, Outcome: Targets, Targets: targets}
}
