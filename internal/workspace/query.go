package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tfvc/internal/itemspec"
	"tfvc/internal/reconcile"
	"tfvc/internal/util"
	"tfvc/internal/vc"
)

// PendingChanges returns the pending changes in scope; a nil scope means the
// whole workspace.
func (w *Local) PendingChanges(ctx context.Context, scope []vc.ItemSpec) ([]vc.PendingChange, error) {
	v, err := loadView(ctx, w.db.Queries)
	if err != nil {
		return nil, err
	}
	return w.pendingIn(v, scope), nil
}

func (w *Local) pendingIn(v *view, scope []vc.ItemSpec) []vc.PendingChange {
	specs := w.serverSpecs(scope)
	var out []vc.PendingChange
	for _, e := range v.sorted(nil) {
		if e.change == nil {
			continue
		}
		if len(scope) > 0 && !matchesAny(specs, e.server) {
			continue
		}
		out = append(out, *e.change)
	}
	return out
}

func matchesAny(specs []vc.ItemSpec, server string) bool {
	for _, s := range specs {
		if itemspec.Matches(s.Path, s.Recursion, server) {
			return true
		}
	}
	return false
}

// PendingChangesWithCandidates returns pending changes in scope and, when
// cand.Include is set, changes visible on disk that are not pended yet:
// untracked files (add), missing items (delete) and modified files (edit).
func (w *Local) PendingChangesWithCandidates(ctx context.Context, scope []vc.ItemSpec, cand reconcile.Candidates) ([]vc.PendingChange, []vc.CandidateChange, error) {
	v, err := loadView(ctx, w.db.Queries)
	if err != nil {
		return nil, nil, err
	}
	pending := w.pendingIn(v, scope)
	if !cand.Include {
		return pending, nil, nil
	}
	pend := PendNone
	if cand.NoIgnore {
		pend = PendNoIgnore
	}

	specs := w.serverSpecs(scope)
	if len(scope) == 0 {
		specs = []vc.ItemSpec{{Path: w.serverPath, Recursion: vc.RecursionFull, Version: vc.Latest()}}
	}

	found := make(map[string]vc.CandidateChange)
	for _, s := range specs {
		if err := w.untracked(v, s, pend, found); err != nil {
			return nil, nil, err
		}
		for _, e := range v.match(s.Path, s.Recursion) {
			c, ok, err := w.modified(e)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				found[key(c.ServerItem)] = c
			}
		}
	}

	candidates := make([]vc.CandidateChange, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return key(candidates[i].ServerItem) < key(candidates[j].ServerItem)
	})
	return pending, candidates, nil
}

// untracked collects files and folders on disk in scope that the workspace
// does not know about.
func (w *Local) untracked(v *view, s vc.ItemSpec, pend PendOptions, found map[string]vc.CandidateChange) error {
	local, err := w.toLocal(s.Path)
	if err != nil {
		return nil
	}
	roots, err := w.expandLocal(local, pend)
	if err != nil {
		return err
	}

	visit := func(path string, isDir bool) {
		server, err := w.toServer(path)
		if err != nil || v.lookup(server) != nil || w.ignored(path, isDir, pend) {
			return
		}
		found[key(server)] = vc.CandidateChange{PendingChange: vc.PendingChange{
			ChangeType: vc.ChangeAdd,
			ServerItem: server,
			LocalItem:  path,
			IsFolder:   isDir,
		}}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return err
		}
		visit(root, info.IsDir())
		if !info.IsDir() || s.Recursion == vc.RecursionNone {
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			if w.ignored(path, d.IsDir(), pend) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			visit(path, d.IsDir())
			if d.IsDir() && s.Recursion == vc.RecursionOneLevel {
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// modified reports a candidate delete or edit for a committed item.
func (w *Local) modified(e *entry) (vc.CandidateChange, bool, error) {
	if e.base == nil || e.has(vc.ChangeAdd|vc.ChangeDelete|vc.ChangeUndelete) {
		return vc.CandidateChange{}, false, nil
	}
	local, err := w.toLocal(e.server)
	if err != nil {
		return vc.CandidateChange{}, false, nil
	}
	c := vc.CandidateChange{PendingChange: vc.PendingChange{
		ItemID:     e.itemID,
		ServerItem: e.server,
		LocalItem:  local,
		IsFolder:   e.isFolder,
	}}

	info, err := os.Stat(local)
	if os.IsNotExist(err) {
		c.ChangeType = vc.ChangeDelete
		return c, true, nil
	}
	if err != nil {
		return vc.CandidateChange{}, false, err
	}
	if e.isFolder || info.IsDir() || e.has(vc.ChangeEdit) {
		return vc.CandidateChange{}, false, nil
	}
	if info.Size() != e.base.Size {
		c.ChangeType = vc.ChangeEdit
		return c, true, nil
	}
	hash, err := util.HashFile(local)
	if err != nil {
		return vc.CandidateChange{}, false, err
	}
	if hash != e.base.Hash {
		c.ChangeType = vc.ChangeEdit
		return c, true, nil
	}
	return vc.CandidateChange{}, false, nil
}

// IsUnchanged reports whether a pending edit leaves the file identical to
// its baseline content. Changes other than edit, optionally with a lock,
// never count as unchanged.
func (w *Local) IsUnchanged(ctx context.Context, change vc.PendingChange) (bool, error) {
	if change.IsFolder || !change.ChangeType.Contains(vc.ChangeEdit) ||
		!change.ChangeType.Remove(vc.ChangeEdit|vc.ChangeLock).IsEmpty() {
		return false, nil
	}
	base, err := w.db.Baseline(ctx, change.ServerItem)
	if err != nil || base == nil {
		return false, err
	}

	local := change.LocalItem
	if local == "" {
		if local, err = w.toLocal(change.ServerItem); err != nil {
			return false, err
		}
	}
	hash, err := util.HashFile(local)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(hash, base.Hash), nil
}
