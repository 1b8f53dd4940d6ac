package inode

import (
	"sync"
	"sync/atomic"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// Map is the mount's inode registry: every inode number it has ever handed
// out, the tree/file that number currently represents, and the parent-child
// index checkout and diff walk to resolve paths without re-fetching trees
// for inodes that are already resident.
type Map struct {
	mu       sync.RWMutex
	byNumber map[Number]*Inode
	children map[Number]map[string]Number
	nextNum  uint64
}

// NewMap creates a registry with only the root tree inode present.
func NewMap(rootTreeID objectstore.ObjectID) *Map {
	m := &Map{
		byNumber: make(map[Number]*Inode),
		children: make(map[Number]map[string]Number),
		nextNum:  uint64(Root),
	}
	root := newInode(Root, Root, "", KindTree, rootTreeID)
	m.byNumber[Root] = root
	m.children[Root] = make(map[string]Number)
	return m
}

func (m *Map) allocate() Number {
	return Number(atomic.AddUint64(&m.nextNum, 1))
}

// Lookup returns the inode registered under number, if any.
func (m *Map) Lookup(number Number) (*Inode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.byNumber[number]
	return in, ok
}

// LookupChild returns the child of parent named name, if the registry has
// already materialized an entry for it.
func (m *Map) LookupChild(parent Number, name string) (*Inode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kids, ok := m.children[parent]
	if !ok {
		return nil, false
	}
	num, ok := kids[name]
	if !ok {
		return nil, false
	}
	return m.byNumber[num], true
}

// Children returns every currently-registered child of parent.
func (m *Map) Children(parent Number) []*Inode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kids := m.children[parent]
	result := make([]*Inode, 0, len(kids))
	for _, num := range kids {
		if in, ok := m.byNumber[num]; ok {
			result = append(result, in)
		}
	}
	return result
}

// Create allocates a new inode as a child of parent, registering it in the
// parent-child index. It is used both when checkout materializes a new tree
// entry and when a filesystem operation (mkdir, create) adds one the
// backing tree never had.
func (m *Map) Create(parent Number, name string, kind Kind, backingID objectstore.ObjectID) *Inode {
	m.mu.Lock()
	defer m.mu.Unlock()

	num := m.allocate()
	in := newInode(num, parent, name, kind, backingID)
	m.byNumber[num] = in

	if _, ok := m.children[parent]; !ok {
		m.children[parent] = make(map[string]Number)
	}
	m.children[parent][name] = num

	if kind == KindTree {
		if _, ok := m.children[num]; !ok {
			m.children[num] = make(map[string]Number)
		}
	}

	return in
}

// CreateIfAbsent registers a new child inode under parent named name only if
// no child of that name is already registered there, checking and creating
// under a single lock acquisition. Concurrent callers racing to materialize
// the same path component all observe the same result: one gets created ==
// true and the rest get the winner's inode back with created == false,
// rather than each allocating its own inode and overwriting the others.
func (m *Map) CreateIfAbsent(parent Number, name string, kind Kind, backingID objectstore.ObjectID) (in *Inode, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kids, ok := m.children[parent]; ok {
		if num, ok := kids[name]; ok {
			return m.byNumber[num], false
		}
	}

	num := m.allocate()
	in = newInode(num, parent, name, kind, backingID)
	m.byNumber[num] = in

	if _, ok := m.children[parent]; !ok {
		m.children[parent] = make(map[string]Number)
	}
	m.children[parent][name] = num

	if kind == KindTree {
		if _, ok := m.children[num]; !ok {
			m.children[num] = make(map[string]Number)
		}
	}

	return in, true
}

// Unlink removes name from parent's directory listing, marking the
// underlying inode unlinked rather than deleting its registry entry
// outright so a file handle still open on it keeps working.
func (m *Map) Unlink(parent Number, name string) (*Inode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kids, ok := m.children[parent]
	if !ok {
		return nil, false
	}
	num, ok := kids[name]
	if !ok {
		return nil, false
	}
	delete(kids, name)

	in := m.byNumber[num]
	if in != nil {
		in.markUnlinked()
	}
	return in, true
}

// Rename moves the inode registered at oldParent/oldName to
// newParent/newName, updating both the moved inode and the two directory
// indexes. If an inode already occupies newParent/newName it is unlinked.
func (m *Map) Rename(oldParent Number, oldName string, newParent Number, newName string) (*Inode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldKids, ok := m.children[oldParent]
	if !ok {
		return nil, false
	}
	num, ok := oldKids[oldName]
	if !ok {
		return nil, false
	}
	delete(oldKids, oldName)

	if newKids, ok := m.children[newParent]; ok {
		if displaced, ok := newKids[newName]; ok {
			if in := m.byNumber[displaced]; in != nil {
				in.markUnlinked()
			}
		}
	} else {
		m.children[newParent] = make(map[string]Number)
	}
	m.children[newParent][newName] = num

	in := m.byNumber[num]
	if in != nil {
		in.rename(newParent, newName)
	}
	return in, true
}

// SetBackingID updates the object-store id an inode is checked out against.
// This is the per-inode effect of the supplemented setPathObjectId
// operation: it lets a single path be repointed at a different tree/blob
// without running a full checkout.
func (m *Map) SetBackingID(number Number, id objectstore.ObjectID) bool {
	in, ok := m.Lookup(number)
	if !ok {
		return false
	}
	in.setBackingID(id)
	return true
}

// MarkMaterialized records that an inode's content now lives in the
// overlay rather than being read through unmodified from backingID.
func (m *Map) MarkMaterialized(number Number) bool {
	in, ok := m.Lookup(number)
	if !ok {
		return false
	}
	in.markMaterialized()
	return true
}

// Count returns the number of inodes currently registered.
func (m *Map) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byNumber)
}

// restore repopulates the registry from a decoded takeover payload. It is
// only called by LoadSerializedInodeMap.
func (m *Map) restore(entries []serializedInode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byNumber = make(map[Number]*Inode, len(entries))
	m.children = make(map[Number]map[string]Number)
	var maxNum uint64

	for _, e := range entries {
		in := newInode(Number(e.Number), Number(e.Parent), e.Name, Kind(e.Kind), e.BackingID)
		in.materialized = e.Materialized
		in.unlinked = e.Unlinked
		m.byNumber[in.number] = in
		if uint64(in.number) > maxNum {
			maxNum = uint64(in.number)
		}
	}
	for _, e := range entries {
		if _, ok := m.children[Number(e.Parent)]; !ok {
			m.children[Number(e.Parent)] = make(map[string]Number)
		}
		if e.Number != uint64(Root) {
			m.children[Number(e.Parent)][e.Name] = Number(e.Number)
		}
		if Kind(e.Kind) == KindTree {
			if _, ok := m.children[Number(e.Number)]; !ok {
				m.children[Number(e.Number)] = make(map[string]Number)
			}
		}
	}
	atomic.StoreUint64(&m.nextNum, maxNum)
}
