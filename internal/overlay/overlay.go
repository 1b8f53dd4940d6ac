package overlay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	scmfserrors "github.com/scmfs/scmfs/internal/errors"
)

// ProgressCallback is invoked periodically while an overlay scans its
// on-disk state during Initialize, reporting a coarse percent-complete.
type ProgressCallback func(percentComplete int)

// EntryKind mirrors the object-store entry types an overlay directory
// listing needs to reconstruct a directory without consulting the object
// store.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
	KindSymlink
	KindExecutable
)

// DirEntry is one locally-modified directory entry: a child inode that has
// been created, renamed, or materialized since the last committed tree.
type DirEntry struct {
	Name  string    `cbor:"name"`
	Inode uint64    `cbor:"inode"`
	Kind  EntryKind `cbor:"kind"`
}

// Overlay is the local-modification store a mount consults for inodes that
// have diverged from the committed tree. The mount reads a materialized
// inode's content from it and writes every file write into it.
type Overlay interface {
	// Initialize scans the overlay's on-disk state, invoking progressCB as it
	// goes so a slow scan (a large overlay after an unclean shutdown) can be
	// reported to the caller.
	Initialize(ctx context.Context, mountPath string, progressCB ProgressCallback) error

	// LoadOverlayDir returns the locally-modified directory entries recorded
	// for inodeNum, or (nil, false) if the overlay holds nothing for it.
	LoadOverlayDir(ctx context.Context, inodeNum uint64) ([]DirEntry, bool, error)

	// SaveOverlayDir buffers a directory's entries for later flush.
	SaveOverlayDir(ctx context.Context, inodeNum uint64, entries []DirEntry) error

	// LoadFile returns the overlay's copy of a file inode's content, or
	// (nil, false) if the file has no local modifications.
	LoadFile(ctx context.Context, inodeNum uint64) ([]byte, bool, error)

	// SaveFile buffers a write to a file inode's overlay content at offset.
	SaveFile(ctx context.Context, inodeNum uint64, offset int64, data []byte) error

	// RemoveInode discards any overlay state held for inodeNum.
	RemoveInode(ctx context.Context, inodeNum uint64) error

	// Flush forces all buffered writes to disk.
	Flush(ctx context.Context) error

	// IsPersistent reports whether overlay state survives a daemon restart.
	IsPersistent() bool

	// Close flushes and releases resources.
	Close() error
}

// FileOverlay is a Overlay backed by a local directory tree, one file per
// inode, sharded by the low byte of the inode number the way EdenFS's disk
// overlay shards its directory to keep any one directory small.
type FileOverlay struct {
	mu         sync.RWMutex
	root       string
	writer     *bufferedWriter
	persistent bool
}

const overlayDirName = ".scmfs-overlay"

// NewFileOverlay creates an overlay rooted at mountPath's private overlay
// directory. persistent controls whether overlay content survives restart:
// when false, Initialize wipes any existing overlay directory so a mount
// always starts clean, matching an in-memory-only overlay type.
func NewFileOverlay(persistent bool) *FileOverlay {
	return &FileOverlay{persistent: persistent}
}

func (o *FileOverlay) Initialize(ctx context.Context, mountPath string, progressCB ProgressCallback) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.root = filepath.Join(mountPath, overlayDirName)

	if !o.persistent {
		if err := os.RemoveAll(o.root); err != nil {
			return scmfserrors.NewError(scmfserrors.ErrCodeStorageWrite, "failed to reset overlay directory").
				WithComponent("overlay").WithOperation("Initialize").WithCause(err)
		}
	}

	if err := os.MkdirAll(o.root, 0o700); err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeStorageWrite, "failed to create overlay directory").
			WithComponent("overlay").WithOperation("Initialize").WithCause(err)
	}

	entries, err := os.ReadDir(o.root)
	if err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "failed to scan overlay directory").
			WithComponent("overlay").WithOperation("Initialize").WithCause(err)
	}

	writer, err := newBufferedWriter(nil, o.flushToDisk)
	if err != nil {
		return err
	}
	o.writer = writer

	if progressCB != nil {
		total := len(entries)
		for i := range entries {
			if total > 0 {
				progressCB((i + 1) * 100 / total)
			}
		}
		if total == 0 {
			progressCB(100)
		}
	}

	return nil
}

func (o *FileOverlay) shardPath(inodeNum uint64) string {
	shard := fmt.Sprintf("%02x", byte(inodeNum))
	return filepath.Join(o.root, shard, fmt.Sprintf("%d", inodeNum))
}

func (o *FileOverlay) dirEntriesPath(inodeNum uint64) string {
	return o.shardPath(inodeNum) + ".dir"
}

func (o *FileOverlay) fileContentPath(inodeNum uint64) string {
	return o.shardPath(inodeNum) + ".data"
}

func (o *FileOverlay) LoadOverlayDir(ctx context.Context, inodeNum uint64) ([]DirEntry, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, err := os.ReadFile(o.dirEntriesPath(inodeNum))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "failed to read overlay directory entries").
			WithComponent("overlay").WithOperation("LoadOverlayDir").WithCause(err)
	}

	var entries []DirEntry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, false, scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "corrupt overlay directory entries").
			WithComponent("overlay").WithOperation("LoadOverlayDir").WithCause(err)
	}
	return entries, true, nil
}

func (o *FileOverlay) SaveOverlayDir(ctx context.Context, inodeNum uint64, entries []DirEntry) error {
	data, err := cbor.Marshal(entries)
	if err != nil {
		return fmt.Errorf("overlay: failed to encode directory entries: %w", err)
	}

	path := o.dirEntriesPath(inodeNum)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeStorageWrite, "failed to create overlay shard directory").
			WithComponent("overlay").WithOperation("SaveOverlayDir").WithCause(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeStorageWrite, "failed to write overlay directory entries").
			WithComponent("overlay").WithOperation("SaveOverlayDir").WithCause(err)
	}
	return nil
}

func (o *FileOverlay) LoadFile(ctx context.Context, inodeNum uint64) ([]byte, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, err := os.ReadFile(o.fileContentPath(inodeNum))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, scmfserrors.NewError(scmfserrors.ErrCodeStorageRead, "failed to read overlay file content").
			WithComponent("overlay").WithOperation("LoadFile").WithCause(err)
	}
	return data, true, nil
}

func (o *FileOverlay) SaveFile(ctx context.Context, inodeNum uint64, offset int64, data []byte) error {
	key := fmt.Sprintf("file:%d", inodeNum)
	resp := o.writer.Write(key, offset, data)
	return resp.Error
}

// flushToDisk is the bufferedWriter's flush callback: it applies a buffered
// range write to the inode's overlay content file.
func (o *FileOverlay) flushToDisk(key string, data []byte, offset int64) error {
	var inodeNum uint64
	if _, err := fmt.Sscanf(key, "file:%d", &inodeNum); err != nil {
		return fmt.Errorf("overlay: malformed buffer key %q: %w", key, err)
	}

	path := o.fileContentPath(inodeNum)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return err
	}
	return nil
}

func (o *FileOverlay) RemoveInode(ctx context.Context, inodeNum uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, path := range []string{o.dirEntriesPath(inodeNum), o.fileContentPath(inodeNum)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return scmfserrors.NewError(scmfserrors.ErrCodeStorageWrite, "failed to remove overlay inode state").
				WithComponent("overlay").WithOperation("RemoveInode").WithCause(err)
		}
	}
	return nil
}

func (o *FileOverlay) Flush(ctx context.Context) error {
	return o.writer.Sync(ctx)
}

func (o *FileOverlay) IsPersistent() bool {
	return o.persistent
}

func (o *FileOverlay) Close() error {
	if o.writer == nil {
		return nil
	}
	return o.writer.Close()
}
