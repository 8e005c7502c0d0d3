package workspace

import (
	"context"
	"os"
	"path/filepath"

	"tfvc/internal/itemspec"
	"tfvc/internal/store"
	"tfvc/internal/vc"
)

type restore struct {
	item  store.DeletedItem
	local string
}

// PendUndelete brings back deleted items. An item without a deletion id
// restores the most recent deletion of its path; NewName restores a single
// item under a different path.
func (w *Local) PendUndelete(ctx context.Context, req Request) (int, error) {
	count := 0
	var restores []restore
	err := w.update(ctx, func(b *batch) error {
		specs := b.serverSpecs(req.Items)
		for _, it := range specs {
			deletionID := it.DeletionID
			if deletionID == 0 {
				id, err := b.q.LatestDeletion(ctx, it.Path)
				if err != nil {
					return err
				}
				deletionID = id
			}
			if deletionID == 0 {
				w.warnf("%s: no deleted item found", it.Path)
				continue
			}

			tree, err := b.q.DeletedTree(ctx, it.Path, deletionID)
			if err != nil {
				return err
			}
			if len(tree) == 0 {
				w.warnf("%s;X%d: no deleted item found", it.Path, deletionID)
				continue
			}

			oldRoot := tree[0].ServerPath
			dest := oldRoot
			if req.NewName != "" && len(specs) == 1 {
				if dest, err = w.targetServerPath(req.NewName); err != nil {
					return err
				}
			}
			if e := b.v.lookup(dest); e != nil {
				w.warnf("%s: an item already exists at that path", dest)
				continue
			}
			if p := b.v.lookup(itemspec.ServerParent(dest)); p == nil || !p.isFolder || p.has(vc.ChangeDelete) {
				w.warnf("%s: parent folder does not exist", dest)
				continue
			}

			for _, d := range tree {
				newPath := dest + d.ServerPath[len(oldRoot):]
				local, err := w.toLocal(newPath)
				if err != nil {
					return err
				}
				change := vc.PendingChange{
					ItemID:           d.ItemID,
					ChangeType:       vc.ChangeUndelete,
					ServerItem:       newPath,
					LocalItem:        local,
					SourceServerItem: d.ServerPath,
					DeletionID:       deletionID,
					IsFolder:         d.IsFolder,
				}
				if req.Lock != vc.LockNone {
					change.ChangeType = change.ChangeType.Combine(vc.ChangeLock)
					change.LockLevel = req.Lock
				}
				w.log.Debug("pend undelete", "item", d.ServerPath, "deletion", deletionID, "to", newPath)
				if err := b.pend(&entry{server: newPath, itemID: d.ItemID, isFolder: d.IsFolder}, change); err != nil {
					return err
				}
				restores = append(restores, restore{item: d, local: local})
				count++
			}
		}
		return nil
	})
	if err != nil || req.Get&GetNoDiskUpdate != 0 {
		return count, err
	}

	for _, r := range restores {
		if r.item.IsFolder {
			if err := os.MkdirAll(r.local, 0755); err != nil {
				return count, err
			}
			continue
		}
		content, err := w.db.DeletedContent(ctx, r.item.DeletionID, r.item.ServerPath)
		if err != nil {
			return count, err
		}
		if err := writeFile(r.local, content); err != nil {
			return count, err
		}
	}
	return count, nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}
