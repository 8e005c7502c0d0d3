// Package workspace defines the batch capability surface commands run
// against and provides Local, a file system workspace backed by SQLite.
package workspace

import (
	"context"
	"errors"

	"tfvc/internal/reconcile"
	"tfvc/internal/vc"
)

// GetOptions control how an operation touches files on disk.
type GetOptions int

const (
	GetNone GetOptions = 0
	// GetNoDiskUpdate records the change without touching local files.
	GetNoDiskUpdate GetOptions = 1 << 0
)

// PendOptions control how new pending changes are created.
type PendOptions int

const (
	PendNone PendOptions = 0
	// PendNoIgnore adds files that .tfignore would exclude.
	PendNoIgnore PendOptions = 1 << 0
)

// Request is the input of every batch operation.
type Request struct {
	Items []vc.ItemSpec
	Lock  vc.LockLevel
	Get   GetOptions
	Pend  PendOptions
	// NewName is the target of a rename, or the new path of an undeleted item.
	NewName string
	Comment string
}

// Changeset describes a completed checkin.
type Changeset struct {
	Number  int
	Comment string
	Count   int
}

// Workspace is the capability surface the command executor drives. Each
// batch operation returns the number of items it affected; 0 means nothing
// matched.
type Workspace interface {
	reconcile.Querier

	Root() string

	PendAdd(ctx context.Context, req Request) (int, error)
	PendDelete(ctx context.Context, req Request) (int, error)
	PendEdit(ctx context.Context, req Request) (int, error)
	PendRename(ctx context.Context, req Request) (int, error)
	PendUndelete(ctx context.Context, req Request) (int, error)
	SetLock(ctx context.Context, req Request) (int, error)
	Undo(ctx context.Context, req Request) (int, error)
	Checkin(ctx context.Context, req Request) (Changeset, error)

	Close() error
}

var (
	// ErrNotWorkspace is returned when no workspace encloses a directory.
	ErrNotWorkspace = errors.New("not in a tfvc workspace (run 'tfvc init')")
	// ErrOutsideWorkspace is returned for paths not mapped by the workspace.
	ErrOutsideWorkspace = errors.New("path is not mapped in this workspace")
	// ErrAlreadyInitialized is returned by Init for an existing workspace.
	ErrAlreadyInitialized = errors.New("workspace already initialized")
)
