package inode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// serializedInode is the CBOR wire form of one registry entry, written out
// during a graceful takeover and read back by the successor process so
// inode numbers survive the handoff.
type serializedInode struct {
	Number       uint64               `cbor:"n"`
	Parent       uint64               `cbor:"p"`
	Name         string               `cbor:"name"`
	Kind         int                  `cbor:"k"`
	BackingID    objectstore.ObjectID `cbor:"b"`
	Materialized bool                 `cbor:"m"`
	Unlinked     bool                 `cbor:"u"`
}

// Serialize encodes the full registry for a takeover handoff.
func (m *Map) Serialize() ([]byte, error) {
	m.mu.RLock()
	entries := make([]serializedInode, 0, len(m.byNumber))
	for _, in := range m.byNumber {
		in.mu.RLock()
		entries = append(entries, serializedInode{
			Number:       uint64(in.number),
			Parent:       uint64(in.parent),
			Name:         in.name,
			Kind:         int(in.kind),
			BackingID:    in.backingID,
			Materialized: in.materialized,
			Unlinked:     in.unlinked,
		})
		in.mu.RUnlock()
	}
	m.mu.RUnlock()

	data, err := cbor.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("inode: failed to encode inode map: %w", err)
	}
	return data, nil
}

// LoadSerializedInodeMap decodes a takeover payload written by Serialize
// and returns a Map populated from it.
func LoadSerializedInodeMap(data []byte) (*Map, error) {
	var entries []serializedInode
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("inode: failed to decode inode map: %w", err)
	}

	m := &Map{
		byNumber: make(map[Number]*Inode),
		children: make(map[Number]map[string]Number),
	}
	m.restore(entries)
	return m, nil
}
