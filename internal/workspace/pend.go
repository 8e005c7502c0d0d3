package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"tfvc/internal/itemspec"
	"tfvc/internal/vc"
)

// PendAdd pends adds for local files and folders. Folders are expanded per
// the item's recursion; missing parent folders are added too.
func (w *Local) PendAdd(ctx context.Context, req Request) (int, error) {
	count := 0
	err := w.update(ctx, func(b *batch) error {
		for _, it := range req.Items {
			local := it.Path
			if it.IsServerPath() {
				var err error
				if local, err = w.toLocal(it.Path); err != nil {
					w.warnf("%v", err)
					continue
				}
			}

			roots, err := w.expandLocal(local, req.Pend)
			if err != nil {
				return err
			}
			if len(roots) == 0 {
				w.warnf("%s: no matching files", local)
				continue
			}
			for _, root := range roots {
				n, err := b.addTree(root, it.Recursion, req)
				if err != nil {
					return err
				}
				count += n
			}
		}
		return nil
	})
	return count, err
}

// expandLocal resolves a local path that may carry a wildcard in its last
// segment to the existing paths it names.
func (w *Local) expandLocal(local string, opts PendOptions) ([]string, error) {
	if !itemspec.HasWildcard(local) {
		if _, err := os.Lstat(local); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		return []string{local}, nil
	}

	dir := filepath.Dir(local)
	pattern := strings.ToLower(filepath.Base(local))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, de := range entries {
		if ok, _ := doublestar.Match(pattern, strings.ToLower(de.Name())); !ok {
			continue
		}
		p := filepath.Join(dir, de.Name())
		if w.ignored(p, de.IsDir(), opts) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *batch) addTree(local string, recursion vc.RecursionType, req Request) (int, error) {
	info, err := os.Stat(local)
	if err != nil {
		return 0, err
	}
	count, err := b.addItem(local, info.IsDir(), req)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() || recursion == vc.RecursionNone {
		return count, nil
	}

	err = filepath.WalkDir(local, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == local {
			return nil
		}
		if b.w.ignored(path, d.IsDir(), req.Pend) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		n, err := b.addItem(path, d.IsDir(), req)
		if err != nil {
			return err
		}
		count += n
		if d.IsDir() && recursion == vc.RecursionOneLevel {
			return filepath.SkipDir
		}
		return nil
	})
	return count, err
}

// addItem pends an add for one path and any missing parent folders,
// returning how many changes were created.
func (b *batch) addItem(local string, isDir bool, req Request) (int, error) {
	server, err := b.w.toServer(local)
	if err != nil {
		b.w.warnf("%v", err)
		return 0, nil
	}
	if itemspec.ServerEqual(server, b.w.serverPath) || b.v.lookup(server) != nil {
		return 0, nil
	}
	n, err := b.addParents(server, req)
	if err != nil {
		return 0, err
	}
	if err := b.pendAdd(server, local, isDir, req.Lock); err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (b *batch) addParents(server string, req Request) (int, error) {
	parent := itemspec.ServerParent(server)
	if parent == "" || itemspec.ServerEqual(parent, b.w.serverPath) {
		return 0, nil
	}
	if e := b.v.lookup(parent); e != nil {
		return 0, nil
	}
	n, err := b.addParents(parent, req)
	if err != nil {
		return 0, err
	}
	local, err := b.w.toLocal(parent)
	if err != nil {
		return 0, err
	}
	return n + 1, b.pendAdd(parent, local, true, req.Lock)
}

func (b *batch) pendAdd(server, local string, isDir bool, lock vc.LockLevel) error {
	id, err := b.q.NextItemID(b.ctx)
	if err != nil {
		return err
	}
	change := vc.PendingChange{
		ItemID:     id,
		ChangeType: vc.ChangeAdd,
		ServerItem: server,
		LocalItem:  local,
		IsFolder:   isDir,
	}
	if lock != vc.LockNone {
		change.ChangeType = change.ChangeType.Combine(vc.ChangeLock)
		change.LockLevel = lock
	}
	b.w.log.Debug("pend add", "item", server)
	return b.pend(&entry{server: server, itemID: id, isFolder: isDir}, change)
}

// PendDelete pends deletes. Deleting a folder covers everything below it;
// deleting a pending add or undelete undoes it instead.
func (w *Local) PendDelete(ctx context.Context, req Request) (int, error) {
	count := 0
	var removeFiles, removeDirs []string
	err := w.update(ctx, func(b *batch) error {
		for _, it := range b.serverSpecs(req.Items) {
			matched := b.v.match(it.Path, it.Recursion)
			if len(matched) == 0 {
				w.warnf("%s: no matching items", it.Path)
				continue
			}
			var targets []*entry
			for _, e := range matched {
				targets = append(targets, e)
				if e.isFolder {
					targets = append(targets, b.v.below(e.server)...)
				}
			}
			for _, e := range targets {
				if b.v.lookup(e.server) != e || e.has(vc.ChangeDelete) {
					continue
				}
				local, err := w.toLocal(e.server)
				if err != nil {
					return err
				}
				if err := b.deleteEntry(e, req.Lock); err != nil {
					return err
				}
				count++
				if e.isFolder {
					removeDirs = append(removeDirs, local)
				} else {
					removeFiles = append(removeFiles, local)
				}
			}
		}
		return nil
	})
	if err != nil || req.Get&GetNoDiskUpdate != 0 {
		return count, err
	}
	return count, removeLocal(removeFiles, removeDirs)
}

func (b *batch) deleteEntry(e *entry, lock vc.LockLevel) error {
	b.w.log.Debug("pend delete", "item", e.server)
	if e.has(vc.ChangeAdd | vc.ChangeUndelete) {
		return b.drop(e)
	}
	change := b.changeFor(e)
	change.ChangeType = change.ChangeType.Remove(vc.ChangeEdit).Combine(vc.ChangeDelete)
	if lock != vc.LockNone {
		change.ChangeType = change.ChangeType.Combine(vc.ChangeLock)
		change.LockLevel = lock
	}
	return b.pend(e, change)
}

// removeLocal deletes files, then folders deepest first.
func removeLocal(files, dirs []string) error {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return err
		}
	}
	return nil
}

// PendEdit pends edits on files. Folders select the files below them per
// the item's recursion.
func (w *Local) PendEdit(ctx context.Context, req Request) (int, error) {
	count := 0
	err := w.update(ctx, func(b *batch) error {
		for _, it := range b.serverSpecs(req.Items) {
			matched := b.v.match(it.Path, it.Recursion)
			if len(matched) == 0 {
				w.warnf("%s: no matching items", it.Path)
				continue
			}
			for _, e := range matched {
				if e.isFolder || e.has(vc.ChangeEdit|vc.ChangeAdd|vc.ChangeDelete|vc.ChangeUndelete) {
					continue
				}
				change := b.changeFor(e)
				change.ChangeType = change.ChangeType.Combine(vc.ChangeEdit)
				if req.Lock != vc.LockNone {
					change.ChangeType = change.ChangeType.Combine(vc.ChangeLock)
					change.LockLevel = req.Lock
				}
				w.log.Debug("pend edit", "item", e.server)
				if err := b.pend(e, change); err != nil {
					return err
				}
				count++
			}
		}
		return nil
	})
	return count, err
}

// SetLock applies req.Lock to the matched items; LockNone removes locks.
func (w *Local) SetLock(ctx context.Context, req Request) (int, error) {
	count := 0
	err := w.update(ctx, func(b *batch) error {
		for _, it := range b.serverSpecs(req.Items) {
			matched := b.v.match(it.Path, it.Recursion)
			if len(matched) == 0 {
				w.warnf("%s: no matching items", it.Path)
				continue
			}
			for _, e := range matched {
				if e.has(vc.ChangeAdd) {
					w.warnf("%s: cannot lock an item that is not yet checked in", e.server)
					continue
				}
				change := b.changeFor(e)
				if change.LockLevel == req.Lock {
					continue
				}
				if req.Lock == vc.LockNone {
					change.ChangeType = change.ChangeType.Remove(vc.ChangeLock)
				} else {
					change.ChangeType = change.ChangeType.Combine(vc.ChangeLock)
				}
				change.LockLevel = req.Lock
				w.log.Debug("set lock", "item", e.server, "level", req.Lock.String())
				if err := b.pend(e, change); err != nil {
					return err
				}
				count++
			}
		}
		return nil
	})
	return count, err
}
