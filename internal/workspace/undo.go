package workspace

import (
	"context"
	"fmt"
	"os"
	"sort"

	"tfvc/internal/itemspec"
	"tfvc/internal/vc"
)

type move struct {
	from, to string
}

type refresh struct {
	server   string // baseline path holding the content
	local    string
	isFolder bool
}

// Undo reverts pending changes. Files are put back to their baseline state
// unless GetNoDiskUpdate is set; undone adds stay on disk as untracked files.
func (w *Local) Undo(ctx context.Context, req Request) (int, error) {
	count := 0
	var removes []string
	var moves []move
	var refreshes []refresh
	var movedFrom []string

	err := w.update(ctx, func(b *batch) error {
		for _, it := range b.serverSpecs(req.Items) {
			var selected []*entry
			for _, e := range b.v.match(it.Path, it.Recursion) {
				if e.change == nil {
					continue
				}
				selected = append(selected, e)
				// children cannot outlive an undone add, undelete or rename
				if e.isFolder && e.has(vc.ChangeAdd|vc.ChangeUndelete|vc.ChangeRename) {
					for _, c := range b.v.below(e.server) {
						if c.change != nil {
							selected = append(selected, c)
						}
					}
				}
			}
			if len(selected) == 0 {
				w.warnf("%s: no pending changes", it.Path)
				continue
			}

			undone := make(map[*entry]bool)
			for _, e := range selected {
				if undone[e] || e.change == nil {
					continue
				}
				undone[e] = true

				current, err := w.toLocal(e.server)
				if err != nil {
					return err
				}
				ct := e.changeType()
				if ct.Contains(vc.ChangeUndelete) {
					removes = append(removes, current)
				}
				if ct.Contains(vc.ChangeRename) && e.base != nil && !movedWith(movedFrom, e.server) {
					baseLocal, err := w.toLocal(e.base.ServerPath)
					if err != nil {
						return err
					}
					moves = append(moves, move{from: current, to: baseLocal})
					movedFrom = append(movedFrom, e.server)
				}
				if e.base != nil && ct.ContainsAny(vc.ChangeEdit|vc.ChangeDelete) {
					baseLocal, err := w.toLocal(e.base.ServerPath)
					if err != nil {
						return err
					}
					refreshes = append(refreshes, refresh{server: e.base.ServerPath, local: baseLocal, isFolder: e.isFolder})
				}

				w.log.Debug("undo", "item", e.server, "change", ct.String())
				if err := b.drop(e); err != nil {
					return err
				}
				count++
			}
		}
		return nil
	})
	if err != nil || req.Get&GetNoDiskUpdate != 0 {
		return count, err
	}

	if err := removeLocal(nil, removes); err != nil {
		return count, err
	}
	for _, m := range moves {
		if err := os.Rename(m.from, m.to); err != nil && !os.IsNotExist(err) {
			return count, fmt.Errorf("moving %s back: %w", m.from, err)
		}
	}
	// folders first so files have somewhere to go
	sort.SliceStable(refreshes, func(i, j int) bool { return refreshes[i].isFolder && !refreshes[j].isFolder })
	for _, r := range refreshes {
		if r.isFolder {
			if err := os.MkdirAll(r.local, 0755); err != nil {
				return count, err
			}
			continue
		}
		content, err := w.db.BaselineContent(ctx, r.server)
		if err != nil {
			return count, err
		}
		if err := writeFile(r.local, content); err != nil {
			return count, err
		}
	}
	return count, nil
}

// movedWith reports whether server lies below a folder whose move back is
// already scheduled.
func movedWith(folders []string, server string) bool {
	for _, f := range folders {
		if itemspec.IsServerChild(f, server, false) {
			return true
		}
	}
	return false
}
