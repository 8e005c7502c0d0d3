package workspace

import (
	"context"
	"sort"
	"strings"

	"tfvc/internal/itemspec"
	"tfvc/internal/store"
	"tfvc/internal/vc"
)

// entry is one item as the workspace currently sees it: a baseline item,
// a pending change, or a baseline item carrying a pending change.
type entry struct {
	server   string
	itemID   int64
	isFolder bool
	base     *store.BaselineItem
	change   *vc.PendingChange
}

func (e *entry) changeType() vc.ChangeType {
	if e.change == nil {
		return vc.ChangeNone
	}
	return e.change.ChangeType
}

func (e *entry) has(ct vc.ChangeType) bool {
	return e.changeType().ContainsAny(ct)
}

// basePath is where the item lives in the baseline, or "" for new items.
func (e *entry) basePath() string {
	if e.base == nil {
		return ""
	}
	return e.base.ServerPath
}

// view overlays pending changes on the baseline, keyed by current server path.
type view struct {
	entries map[string]*entry
}

func key(server string) string {
	return strings.ToLower(server)
}

func loadView(ctx context.Context, q *store.Queries) (*view, error) {
	baseline, err := q.BaselineItems(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := q.PendingChanges(ctx)
	if err != nil {
		return nil, err
	}

	byBase := make(map[string]*store.BaselineItem, len(baseline))
	for i := range baseline {
		byBase[key(baseline[i].ServerPath)] = &baseline[i]
	}

	// baseline paths whose item has been renamed elsewhere
	moved := make(map[string]bool)
	for _, pc := range pending {
		if pc.ChangeType.Contains(vc.ChangeRename) && pc.SourceServerItem != "" {
			moved[key(pc.SourceServerItem)] = true
		}
	}

	v := &view{entries: make(map[string]*entry, len(baseline)+len(pending))}
	for i := range baseline {
		b := &baseline[i]
		if moved[key(b.ServerPath)] {
			continue
		}
		v.entries[key(b.ServerPath)] = &entry{server: b.ServerPath, itemID: b.ItemID, isFolder: b.IsFolder, base: b}
	}
	for i := range pending {
		pc := &pending[i]
		if e, ok := v.entries[key(pc.ServerItem)]; ok && !pc.ChangeType.Contains(vc.ChangeRename) {
			e.change = pc
			continue
		}
		e := &entry{server: pc.ServerItem, itemID: pc.ItemID, isFolder: pc.IsFolder, change: pc}
		if pc.ChangeType.Contains(vc.ChangeRename) {
			e.base = byBase[key(pc.SourceServerItem)]
		}
		v.entries[key(pc.ServerItem)] = e
	}
	return v, nil
}

func (v *view) lookup(server string) *entry {
	return v.entries[key(server)]
}

// sorted returns entries in path order so parents precede children.
func (v *view) sorted(filter func(*entry) bool) []*entry {
	var out []*entry
	for _, e := range v.entries {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i].server) < key(out[j].server) })
	return out
}

// match returns the entries selected by a server-namespace spec path.
func (v *view) match(specPath string, recursion vc.RecursionType) []*entry {
	return v.sorted(func(e *entry) bool {
		return itemspec.Matches(specPath, recursion, e.server)
	})
}

// below returns every entry under folder.
func (v *view) below(folder string) []*entry {
	return v.sorted(func(e *entry) bool {
		return itemspec.IsServerChild(folder, e.server, false)
	})
}

// batch carries one transaction's worth of state for a batch operation.
type batch struct {
	ctx context.Context
	w   *Local
	q   *store.Queries
	v   *view
}

func (w *Local) update(ctx context.Context, fn func(b *batch) error) error {
	return w.db.Update(ctx, func(q *store.Queries) error {
		v, err := loadView(ctx, q)
		if err != nil {
			return err
		}
		return fn(&batch{ctx: ctx, w: w, q: q, v: v})
	})
}

// serverSpecs maps request items into the server namespace, warning about
// and dropping items outside the workspace.
func (b *batch) serverSpecs(items []vc.ItemSpec) []vc.ItemSpec {
	return b.w.serverSpecs(items)
}

func (w *Local) serverSpecs(items []vc.ItemSpec) []vc.ItemSpec {
	out := make([]vc.ItemSpec, 0, len(items))
	for _, it := range items {
		if !it.IsServerPath() {
			server, err := w.toServer(it.Path)
			if err != nil {
				w.warnf("%v", err)
				continue
			}
			it.Path = server
		}
		out = append(out, it)
	}
	return out
}

// pend writes change for e, replacing whatever pending row e had. An empty
// change drops the row, and an entry with neither baseline nor change leaves
// the view.
func (b *batch) pend(e *entry, change vc.PendingChange) error {
	if e.change != nil && !itemspec.ServerEqual(e.change.ServerItem, change.ServerItem) {
		if err := b.q.DeletePendingChange(b.ctx, e.change.ServerItem); err != nil {
			return err
		}
	}
	delete(b.v.entries, key(e.server))
	e.server = change.ServerItem

	if change.ChangeType.IsEmpty() {
		return b.drop(e)
	}

	if change.LocalItem == "" {
		local, err := b.w.toLocal(change.ServerItem)
		if err != nil {
			return err
		}
		change.LocalItem = local
	}
	if err := b.q.PutPendingChange(b.ctx, change); err != nil {
		return err
	}
	e.change = &change
	b.v.entries[key(e.server)] = e
	return nil
}

// drop removes e's pending change.
func (b *batch) drop(e *entry) error {
	if e.change != nil {
		if err := b.q.DeletePendingChange(b.ctx, e.change.ServerItem); err != nil {
			return err
		}
	}
	e.change = nil
	if e.base == nil {
		delete(b.v.entries, key(e.server))
		return nil
	}
	// an item with a baseline goes back to its baseline path
	delete(b.v.entries, key(e.server))
	e.server = e.base.ServerPath
	b.v.entries[key(e.server)] = e
	return nil
}

// changeFor returns e's current pending change, or a fresh one describing e.
func (b *batch) changeFor(e *entry) vc.PendingChange {
	if e.change != nil {
		return *e.change
	}
	return vc.PendingChange{
		ItemID:     e.itemID,
		ServerItem: e.server,
		IsFolder:   e.isFolder,
	}
}
