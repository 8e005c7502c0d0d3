package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tfvc/internal/gitio"
	"tfvc/internal/ignore"
	"tfvc/internal/itemspec"
	"tfvc/internal/store"
)

const (
	// DirName is the metadata folder at the workspace root.
	DirName = ".tfvc"
	// DBName is the store file inside DirName.
	DBName = "workspace.db"

	metaServerPath = "server_path"
)

// Options configures a Local workspace.
type Options struct {
	// IgnoreFile replaces the root .tfignore when set.
	IgnoreFile string
	Logger     *slog.Logger
	// Notify receives per-item warnings such as "no pending change".
	Notify func(msg string)
}

// InitOptions configures Init.
type InitOptions struct {
	Options
	// ServerPath is the server folder mapped to the root; "$/<dir name>" when empty.
	ServerPath string
	// GitRef seeds the baseline from this commit of a Git repository at the root.
	GitRef string
	// FromGit enables GitRef; an empty GitRef then means HEAD.
	FromGit bool
}

// Local is a workspace whose baseline and pending changes live in a SQLite
// store under .tfvc/, mapping one server folder onto one local directory.
type Local struct {
	root       string
	serverPath string
	db         *store.DB
	ignore     *ignore.Matcher
	log        *slog.Logger
	notify     func(string)
}

// Find walks up from dir to the nearest directory containing .tfvc/.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, DirName, DBName)); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotWorkspace
		}
		abs = parent
	}
}

// Open opens the workspace enclosing dir.
func Open(dir string, opts Options) (*Local, error) {
	root, err := Find(dir)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(filepath.Join(root, DirName, DBName))
	if err != nil {
		return nil, err
	}

	serverPath, ok, err := db.Meta(context.Background(), metaServerPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !ok {
		db.Close()
		return nil, fmt.Errorf("workspace at %s has no server mapping", root)
	}

	return newLocal(root, serverPath, db, opts)
}

// Init creates a workspace at dir and commits changeset 1 holding the root
// folder and, optionally, the tree of a Git commit.
func Init(ctx context.Context, dir string, opts InitOptions) (*Local, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	metaDir := filepath.Join(root, DirName)
	if _, err := os.Stat(filepath.Join(metaDir, DBName)); err == nil {
		return nil, fmt.Errorf("%s: %w", root, ErrAlreadyInitialized)
	}

	serverPath := opts.ServerPath
	if serverPath == "" {
		serverPath = itemspec.ServerJoin("$/", filepath.Base(root))
	}
	serverPath, err = itemspec.CanonicalizeServerPath(serverPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", metaDir, err)
	}
	db, err := store.Open(filepath.Join(metaDir, DBName))
	if err != nil {
		return nil, err
	}

	var files []*gitio.FileInfo
	comment := "Initial workspace"
	if opts.FromGit {
		repo, err := gitio.Open(root)
		if err != nil {
			db.Close()
			return nil, err
		}
		commit, err := repo.ResolveRef(opts.GitRef)
		if err != nil {
			db.Close()
			return nil, err
		}
		if files, err = repo.TreeFiles(commit); err != nil {
			db.Close()
			return nil, err
		}
		comment = "Imported from git " + gitio.CommitHash(commit)
	}

	err = db.Update(ctx, func(q *store.Queries) error {
		if err := q.SetMeta(ctx, metaServerPath, serverPath); err != nil {
			return err
		}
		cs, err := q.NextChangeset(ctx)
		if err != nil {
			return err
		}
		if err := putFolder(ctx, q, serverPath, cs); err != nil {
			return err
		}
		for _, f := range files {
			server := itemspec.ServerJoin(serverPath, f.Path)
			if err := putParents(ctx, q, serverPath, server, cs); err != nil {
				return err
			}
			id, err := q.NextItemID(ctx)
			if err != nil {
				return err
			}
			item := store.BaselineItem{ServerPath: server, ItemID: id, Changeset: cs}
			if err := q.PutBaseline(ctx, item, f.Content); err != nil {
				return err
			}
		}
		return q.RecordChangeset(ctx, store.Changeset{Number: cs, Comment: comment, Count: len(files) + 1})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return newLocal(root, serverPath, db, opts.Options)
}

func putFolder(ctx context.Context, q *store.Queries, server string, cs int) error {
	id, err := q.NextItemID(ctx)
	if err != nil {
		return err
	}
	return q.PutBaseline(ctx, store.BaselineItem{ServerPath: server, ItemID: id, IsFolder: true, Changeset: cs}, nil)
}

// putParents creates baseline folders between root and server.
func putParents(ctx context.Context, q *store.Queries, root, server string, cs int) error {
	parent := itemspec.ServerParent(server)
	if parent == "" || itemspec.ServerEqual(parent, root) || !itemspec.IsServerChild(root, parent, false) {
		return nil
	}
	existing, err := q.Baseline(ctx, parent)
	if err != nil || existing != nil {
		return err
	}
	if err := putParents(ctx, q, root, parent, cs); err != nil {
		return err
	}
	return putFolder(ctx, q, parent, cs)
}

func newLocal(root, serverPath string, db *store.DB, opts Options) (*Local, error) {
	var matcher *ignore.Matcher
	var err error
	if opts.IgnoreFile != "" {
		matcher, err = ignore.LoadWithFile(root, opts.IgnoreFile)
	} else {
		matcher, err = ignore.LoadFromDir(root)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(string) {}
	}

	return &Local{
		root:       root,
		serverPath: serverPath,
		db:         db,
		ignore:     matcher,
		log:        log.With("workspace", root),
		notify:     notify,
	}, nil
}

// Root returns the local root directory.
func (w *Local) Root() string {
	return w.root
}

// ServerPath returns the server folder mapped to the root.
func (w *Local) ServerPath() string {
	return w.serverPath
}

// Close releases the store.
func (w *Local) Close() error {
	return w.db.Close()
}

// Changesets returns the local checkin history, newest first.
func (w *Local) Changesets(ctx context.Context) ([]store.Changeset, error) {
	return w.db.Changesets(ctx)
}

func (w *Local) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.log.Warn(msg)
	w.notify(msg)
}

// toServer maps an absolute local path into the server namespace.
func (w *Local) toServer(local string) (string, error) {
	rel, err := filepath.Rel(w.root, local)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", local, ErrOutsideWorkspace)
	}
	return itemspec.ServerJoin(w.serverPath, filepath.ToSlash(rel)), nil
}

// toLocal maps a server path below the workspace mapping to a local path.
func (w *Local) toLocal(server string) (string, error) {
	if itemspec.ServerEqual(server, w.serverPath) {
		return w.root, nil
	}
	if !itemspec.IsServerChild(w.serverPath, server, false) {
		return "", fmt.Errorf("%s: %w", server, ErrOutsideWorkspace)
	}
	prefix := len(w.serverPath)
	if !strings.HasSuffix(w.serverPath, "/") {
		prefix++
	}
	return filepath.Join(w.root, filepath.FromSlash(server[prefix:])), nil
}

// relative returns the root-relative slash path used by the ignore matcher.
func (w *Local) relative(local string) string {
	rel, err := filepath.Rel(w.root, local)
	if err != nil {
		return local
	}
	return filepath.ToSlash(rel)
}

func (w *Local) ignored(local string, isDir bool, opts PendOptions) bool {
	rel := w.relative(local)
	if rel == DirName || strings.HasPrefix(rel, DirName+"/") {
		return true
	}
	if opts&PendNoIgnore != 0 {
		return false
	}
	return w.ignore.Match(rel, isDir)
}
