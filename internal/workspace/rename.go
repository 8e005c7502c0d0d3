package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tfvc/internal/itemspec"
	"tfvc/internal/vc"
)

// PendRename moves Items[0] to NewName. A NewName naming an existing folder
// moves the item into that folder. Items below a renamed folder are pended
// individually so each keeps its own source path.
func (w *Local) PendRename(ctx context.Context, req Request) (int, error) {
	if len(req.Items) != 1 || req.NewName == "" {
		return 0, fmt.Errorf("rename needs one source item and a new name")
	}
	specs := w.serverSpecs(req.Items)
	if len(specs) == 0 {
		return 0, nil
	}
	target, err := w.targetServerPath(req.NewName)
	if err != nil {
		return 0, err
	}

	count := 0
	var fromLocal, toLocal string
	err = w.update(ctx, func(b *batch) error {
		src := b.v.lookup(specs[0].Path)
		if src == nil || src.has(vc.ChangeDelete) {
			w.warnf("%s: no matching item", specs[0].Path)
			return nil
		}
		if itemspec.ServerEqual(src.server, w.serverPath) {
			return fmt.Errorf("cannot rename the workspace root %s", src.server)
		}

		dest := target
		if e := b.v.lookup(dest); e != nil && e != src && e.isFolder && !e.has(vc.ChangeDelete) {
			dest = itemspec.ServerJoin(dest, itemspec.ServerName(src.server))
		}
		if e := b.v.lookup(dest); e != nil && e != src {
			return fmt.Errorf("cannot rename %s to %s: the target already exists", src.server, dest)
		}
		if itemspec.IsServerChild(src.server, dest, false) {
			return fmt.Errorf("cannot rename %s into itself", src.server)
		}
		if p := b.v.lookup(itemspec.ServerParent(dest)); p == nil || !p.isFolder || p.has(vc.ChangeDelete) {
			return fmt.Errorf("cannot rename %s to %s: parent folder does not exist", src.server, dest)
		}
		if dest == src.server {
			return nil
		}

		var err error
		if fromLocal, err = w.toLocal(src.server); err != nil {
			return err
		}
		if toLocal, err = w.toLocal(dest); err != nil {
			return err
		}

		moving := append([]*entry{src}, b.v.below(src.server)...)
		oldRoot := src.server
		for _, e := range moving {
			newPath := dest + e.server[len(oldRoot):]
			if err := b.renameEntry(e, newPath); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil || count == 0 || req.Get&GetNoDiskUpdate != 0 {
		return count, err
	}

	if err := os.MkdirAll(filepath.Dir(toLocal), 0755); err != nil {
		return count, err
	}
	if err := os.Rename(fromLocal, toLocal); err != nil && !os.IsNotExist(err) {
		return count, fmt.Errorf("moving %s: %w", fromLocal, err)
	}
	return count, nil
}

// targetServerPath resolves a rename target given as a local or server path.
func (w *Local) targetServerPath(name string) (string, error) {
	if itemspec.IsServerPath(name) {
		return itemspec.CanonicalizeServerPath(name)
	}
	local, err := itemspec.CanonicalizeLocalPath(name, "")
	if err != nil {
		return "", err
	}
	return w.toServer(local)
}

func (b *batch) renameEntry(e *entry, newPath string) error {
	b.w.log.Debug("pend rename", "item", e.server, "to", newPath)
	change := b.changeFor(e)
	change.ServerItem = newPath
	change.LocalItem = ""

	// new items just move; committed items remember where they came from
	if e.base != nil && !e.has(vc.ChangeAdd|vc.ChangeUndelete) {
		if newPath == e.base.ServerPath {
			change.ChangeType = change.ChangeType.Remove(vc.ChangeRename)
			change.SourceServerItem = ""
		} else {
			change.ChangeType = change.ChangeType.Combine(vc.ChangeRename)
			change.SourceServerItem = e.base.ServerPath
		}
	}
	return b.pend(e, change)
}
