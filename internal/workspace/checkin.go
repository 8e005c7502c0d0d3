package workspace

import (
	"context"
	"fmt"
	"os"
	"sort"

	"tfvc/internal/itemspec"
	"tfvc/internal/store"
	"tfvc/internal/vc"
)

// committable are the change bits a checkin applies to the baseline. Locks
// are released by the checkin but never committed on their own.
const committable = vc.ChangeAdd | vc.ChangeEdit | vc.ChangeDelete | vc.ChangeRename | vc.ChangeUndelete

// Checkin commits the pending changes in scope to the baseline as a new
// changeset. An empty item list commits every pending change. Deleted items
// are archived under the changeset number, which becomes their deletion id.
func (w *Local) Checkin(ctx context.Context, req Request) (Changeset, error) {
	var cs Changeset
	err := w.update(ctx, func(b *batch) error {
		selected := b.checkinSet(req.Items)
		if len(selected) == 0 {
			return nil
		}

		number, err := b.q.NextChangeset(ctx)
		if err != nil {
			return err
		}

		// parents before children for everything but deletes
		sort.Slice(selected, func(i, j int) bool { return key(selected[i].server) < key(selected[j].server) })
		for _, e := range selected {
			if err := b.commit(e, number); err != nil {
				return err
			}
		}
		// children before parents for deletes
		for i := len(selected) - 1; i >= 0; i-- {
			e := selected[i]
			if !e.has(vc.ChangeDelete) {
				continue
			}
			if err := b.q.ArchiveBaseline(ctx, e.server, number); err != nil {
				return err
			}
		}
		for _, e := range selected {
			if err := b.q.DeletePendingChange(ctx, e.change.ServerItem); err != nil {
				return err
			}
		}

		cs = Changeset{Number: number, Comment: req.Comment, Count: len(selected)}
		w.log.Info("checked in", "changeset", number, "changes", len(selected))
		return b.q.RecordChangeset(ctx, store.Changeset{Number: number, Comment: req.Comment, Count: len(selected)})
	})
	return cs, err
}

// checkinSet selects the committable changes in scope together with the
// changes they depend on: new parent folders and deletes below a deleted folder.
func (b *batch) checkinSet(items []vc.ItemSpec) []*entry {
	set := make(map[*entry]bool)
	var out []*entry
	include := func(e *entry) {
		if e.change == nil || set[e] || !e.has(committable) {
			return
		}
		set[e] = true
		out = append(out, e)
	}

	if len(items) == 0 {
		for _, e := range b.v.sorted(nil) {
			include(e)
		}
	} else {
		for _, it := range b.serverSpecs(items) {
			matched := b.v.match(it.Path, it.Recursion)
			if len(matched) == 0 {
				b.w.warnf("%s: no pending changes", it.Path)
			}
			for _, e := range matched {
				include(e)
			}
		}
	}

	for i := 0; i < len(out); i++ {
		e := out[i]
		for p := itemspec.ServerParent(e.server); p != ""; p = itemspec.ServerParent(p) {
			if pe := b.v.lookup(p); pe != nil && pe.has(vc.ChangeAdd|vc.ChangeUndelete) {
				include(pe)
			}
		}
		if e.isFolder && e.has(vc.ChangeDelete) {
			for _, c := range b.v.below(e.server) {
				if c.has(vc.ChangeDelete) {
					include(c)
				}
			}
		}
	}
	return out
}

// commit applies one change to the baseline, except deletes which are
// archived after every other change is in place.
func (b *batch) commit(e *entry, number int) error {
	ctx := b.ctx
	change := *e.change

	switch {
	case change.ChangeType.Contains(vc.ChangeUndelete):
		if err := b.q.RestoreDeleted(ctx, change.DeletionID, change.SourceServerItem, number); err != nil {
			return err
		}
		if change.SourceServerItem != change.ServerItem {
			if err := b.q.MoveBaseline(ctx, change.SourceServerItem, change.ServerItem, number); err != nil {
				return err
			}
		}
		if !e.isFolder {
			return b.commitContent(e, number)
		}
	case change.ChangeType.Contains(vc.ChangeAdd):
		if e.isFolder {
			return b.q.PutBaseline(ctx, store.BaselineItem{ServerPath: e.server, ItemID: e.itemID, IsFolder: true, Changeset: number}, nil)
		}
		return b.commitContent(e, number)
	}

	if change.ChangeType.Contains(vc.ChangeRename) {
		if err := b.q.MoveBaseline(ctx, change.SourceServerItem, change.ServerItem, number); err != nil {
			return err
		}
	}
	if change.ChangeType.Contains(vc.ChangeEdit) && !change.ChangeType.Contains(vc.ChangeDelete) {
		return b.commitContent(e, number)
	}
	return nil
}

func (b *batch) commitContent(e *entry, number int) error {
	local, err := b.w.toLocal(e.server)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(local)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("cannot check in %s: the local file is missing", e.server)
		}
		return err
	}
	item := store.BaselineItem{ServerPath: e.server, ItemID: e.itemID, Changeset: number}
	return b.q.PutBaseline(b.ctx, item, content)
}
