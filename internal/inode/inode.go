package inode

import (
	"sync"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// Number identifies an inode within a mount. It is stable across a takeover
// but has no meaning outside the mount that issued it.
type Number uint64

// Root is the inode number of the mount's root directory, fixed the way
// EdenMount fixes its root inode rather than allocating it dynamically.
const Root Number = 1

// Kind distinguishes the three inode shapes a mount tracks.
type Kind int

const (
	KindTree Kind = iota
	KindFile
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Inode is one entry in the registry. A tree inode additionally has
// children tracked by the owning InodeMap; a file or symlink inode's
// content lives either in the object store (unmodified) or the overlay
// (materialized).
type Inode struct {
	mu sync.RWMutex

	number Number
	parent Number
	name   string
	kind   Kind

	// backingID is the object-store id this inode had the last time it was
	// unmodified relative to its parent tree. It stays set even after
	// materialization so a revert can restore it without a fresh tree fetch.
	backingID objectstore.ObjectID

	// materialized is true once the inode's content has diverged from
	// backingID and now lives in the overlay.
	materialized bool

	// unlinked marks an inode that checkout or a filesystem operation has
	// removed from its parent but that still has open references.
	unlinked bool
}

func newInode(number, parent Number, name string, kind Kind, backingID objectstore.ObjectID) *Inode {
	return &Inode{number: number, parent: parent, name: name, kind: kind, backingID: backingID}
}

func (i *Inode) Number() Number { return i.number }

func (i *Inode) Parent() Number {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.parent
}

func (i *Inode) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name
}

func (i *Inode) Kind() Kind { return i.kind }

func (i *Inode) BackingID() objectstore.ObjectID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.backingID
}

func (i *Inode) IsMaterialized() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.materialized
}

func (i *Inode) IsUnlinked() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.unlinked
}

// setBackingID updates the tree/blob id this inode is checked out against,
// clearing materialized state: this is setPathObjectId's per-inode effect.
func (i *Inode) setBackingID(id objectstore.ObjectID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.backingID = id
	i.materialized = false
}

func (i *Inode) markMaterialized() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.materialized = true
}

func (i *Inode) markUnlinked() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.unlinked = true
}

func (i *Inode) rename(newParent Number, newName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.parent = newParent
	i.name = newName
}
