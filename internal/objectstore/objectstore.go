// Package objectstore implements the content-addressed blob/tree fetcher
// consumed by checkout and diff: get_root_tree and get_tree_entry_for_root_id
// from spec.md §6, backed by an S3-compatible bucket.
package objectstore

import "context"

// Store is the object store contract consumed by the checkout engine and
// diff engine. Implementations must be safe for concurrent use — the diff
// walk fetches trees and blobs from many goroutines at once.
type Store interface {
	// GetRootTree fetches the tree for a commit's root object id.
	GetRootTree(ctx context.Context, rootID ObjectID, fc *FetchContext) (*Tree, error)

	// GetTreeEntryForRootID resolves a single named child of the tree at
	// rootID, used by lookup paths that only need one entry. The S3 backend
	// fetches and decodes the whole tree to find it.
	GetTreeEntryForRootID(ctx context.Context, rootID ObjectID, entryType EntryType, basename string, fc *FetchContext) (TreeEntry, error)

	// GetBlob fetches a blob's contents by id.
	GetBlob(ctx context.Context, id ObjectID, fc *FetchContext) ([]byte, error)

	// PutTree stores a tree, returning its content-derived id.
	PutTree(ctx context.Context, entries []TreeEntry) (ObjectID, error)

	// PutBlob stores blob data, returning its content-derived id.
	PutBlob(ctx context.Context, data []byte) (ObjectID, error)

	// HealthCheck verifies connectivity to the backing store.
	HealthCheck(ctx context.Context) error

	// Close releases held resources (connection pools, etc).
	Close() error
}
