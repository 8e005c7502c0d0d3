// Package vc provides the core value types shared by the tfvc command pipeline.
package vc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ServerRoot is the marker every server path starts with.
const ServerRoot = "$/"

// RecursionType controls how far an item specification reaches below its path.
type RecursionType int

const (
	RecursionNone RecursionType = iota
	RecursionOneLevel
	RecursionFull
)

func (r RecursionType) String() string {
	switch r {
	case RecursionNone:
		return "none"
	case RecursionOneLevel:
		return "one-level"
	case RecursionFull:
		return "full"
	default:
		return fmt.Sprintf("RecursionType(%d)", int(r))
	}
}

// VersionKind tags the variant held by a VersionSpec.
type VersionKind int

const (
	VersionLatest VersionKind = iota
	VersionChangeset
	VersionLabel
	VersionDate
	VersionWorkspace
)

// VersionSpec selects a version of an item.
type VersionSpec struct {
	Kind      VersionKind
	Changeset int
	Label     string
	Scope     string // label scope, server path or empty
	Date      time.Time
	Workspace string
	Owner     string
}

// Latest returns the latest version spec.
func Latest() VersionSpec {
	return VersionSpec{Kind: VersionLatest}
}

// Changeset returns a changeset version spec.
func Changeset(n int) VersionSpec {
	return VersionSpec{Kind: VersionChangeset, Changeset: n}
}

// String renders the spec in the same syntax it is parsed from.
func (v VersionSpec) String() string {
	switch v.Kind {
	case VersionChangeset:
		return "C" + strconv.Itoa(v.Changeset)
	case VersionLabel:
		if v.Scope != "" {
			return "L" + v.Label + "@" + v.Scope
		}
		return "L" + v.Label
	case VersionDate:
		return "D" + v.Date.Format(time.RFC3339)
	case VersionWorkspace:
		s := "W" + v.Workspace
		if v.Owner != "" {
			s += ";" + v.Owner
		}
		return s
	default:
		return "T"
	}
}

// ItemSpec is a normalized target of an operation.
type ItemSpec struct {
	Path       string
	Recursion  RecursionType
	DeletionID int // 0 means not a deletion
	Version    VersionSpec
}

// IsServerPath reports whether the spec names a server item.
func (s ItemSpec) IsServerPath() bool {
	return strings.HasPrefix(s.Path, ServerRoot)
}

// String returns the path, with a deletion qualifier when one is set.
func (s ItemSpec) String() string {
	if s.DeletionID != 0 {
		return s.Path + ";X" + strconv.Itoa(s.DeletionID)
	}
	return s.Path
}

// ChangeType is a bit-set of change kinds.
type ChangeType uint16

const (
	ChangeAdd ChangeType = 1 << iota
	ChangeEdit
	ChangeDelete
	ChangeRename
	ChangeLock
	ChangeUndelete
	ChangeBranch
	ChangeMerge

	ChangeNone ChangeType = 0
)

var changeTypeNames = []struct {
	bit  ChangeType
	name string
}{
	{ChangeAdd, "add"},
	{ChangeEdit, "edit"},
	{ChangeDelete, "delete"},
	{ChangeRename, "rename"},
	{ChangeLock, "lock"},
	{ChangeUndelete, "undelete"},
	{ChangeBranch, "branch"},
	{ChangeMerge, "merge"},
}

// Contains reports whether every bit of other is set in c.
func (c ChangeType) Contains(other ChangeType) bool {
	return other != 0 && c&other == other
}

// ContainsAny reports whether any bit of other is set in c.
func (c ChangeType) ContainsAny(other ChangeType) bool {
	return c&other != 0
}

// Combine returns c with the bits of other set.
func (c ChangeType) Combine(other ChangeType) ChangeType {
	return c | other
}

// Remove returns c with the bits of other cleared.
func (c ChangeType) Remove(other ChangeType) ChangeType {
	return c &^ other
}

// IsEmpty reports whether no bit is set.
func (c ChangeType) IsEmpty() bool {
	return c == 0
}

func (c ChangeType) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, n := range changeTypeNames {
		if c&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseChangeType parses a comma separated list such as "edit, lock".
func ParseChangeType(s string) (ChangeType, error) {
	var c ChangeType
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		found := false
		for _, n := range changeTypeNames {
			if n.name == part {
				c |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown change type %q", part)
		}
	}
	if c == 0 {
		return 0, fmt.Errorf("empty change type")
	}
	return c, nil
}

// LockLevel is the lock held on an item.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockCheckin
	LockCheckout
)

func (l LockLevel) String() string {
	switch l {
	case LockCheckin:
		return "checkin"
	case LockCheckout:
		return "checkout"
	default:
		return "none"
	}
}

// ParseLockLevel parses the value of the lock option.
func ParseLockLevel(s string) (LockLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LockNone, nil
	case "checkin":
		return LockCheckin, nil
	case "checkout":
		return LockCheckout, nil
	default:
		return LockNone, fmt.Errorf("invalid lock level %q (expected none, checkin or checkout)", s)
	}
}

// PendingChange is a change the workspace has recorded against an item.
type PendingChange struct {
	ItemID           int64
	ChangeType       ChangeType
	ServerItem       string
	LocalItem        string
	SourceServerItem string // rename source, empty otherwise
	LockLevel        LockLevel
	DeletionID       int
	IsFolder         bool
}

// CandidateChange is a change detected on disk that has not been pended.
type CandidateChange struct {
	PendingChange
}

// Path returns the local item when known, otherwise the server item.
func (p PendingChange) Path() string {
	if p.LocalItem != "" {
		return p.LocalItem
	}
	return p.ServerItem
}
