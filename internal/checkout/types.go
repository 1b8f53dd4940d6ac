package checkout

import (
	"time"

	"github.com/scmfs/scmfs/internal/pathutil"
	"github.com/scmfs/scmfs/internal/telemetry"
)

// Mode selects how a checkout treats conflicting local modifications.
type Mode = telemetry.CheckoutMode

const (
	ModeDryRun = telemetry.ModeDryRun
	ModeNormal = telemetry.ModeNormal
	ModeForce  = telemetry.ModeForce
)

// ConflictType classifies why a single path could not be checked out
// cleanly.
type ConflictType int

const (
	// ConflictModifiedRemoved: locally modified, and removed or changed in
	// the target tree.
	ConflictModifiedRemoved ConflictType = iota
	// ConflictRemovedModified: locally removed, modified in the target tree.
	ConflictRemovedModified
	// ConflictUntrackedAdded: an untracked local file occupies a path the
	// target tree wants to create.
	ConflictUntrackedAdded
	// ConflictDirectoryNotEmpty: a directory the target tree wants to remove
	// still has untracked contents.
	ConflictDirectoryNotEmpty
	// ConflictTypeMismatch: the local entry and the target entry are
	// different kinds (file vs directory) at the same path.
	ConflictTypeMismatch
)

func (t ConflictType) String() string {
	switch t {
	case ConflictModifiedRemoved:
		return "MODIFIED_REMOVED"
	case ConflictRemovedModified:
		return "REMOVED_MODIFIED"
	case ConflictUntrackedAdded:
		return "UNTRACKED_ADDED"
	case ConflictDirectoryNotEmpty:
		return "DIRECTORY_NOT_EMPTY"
	case ConflictTypeMismatch:
		return "TYPE_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// Conflict is one path checkout could not apply the way Mode requested.
type Conflict struct {
	Path    pathutil.RelativePath
	Type    ConflictType
	Message string
}

// Times records how long each checkout phase took, measured from the start
// of the operation, mirroring EdenMount's CheckoutTimes stopwatch splits.
type Times struct {
	AcquireParentsLock time.Duration
	LookupTrees        time.Duration
	Diff               time.Duration
	AcquireRenameLock  time.Duration
	Checkout           time.Duration
	Finish             time.Duration
}

// Result is what a completed checkout (successful or conflicted) returns.
type Result struct {
	Times     Times
	Conflicts []Conflict
}
