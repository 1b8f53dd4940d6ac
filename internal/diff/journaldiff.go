package diff

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// JournalDiffCallback collects the set of paths that changed between the
// mount's previous checked-out tree and its current on-disk state, so a
// checkout can record them as unclean in its completion journal entry
// without a second diff pass afterward. Added and ignored paths are
// deliberately not unclean: a file that appeared cleanly is not a conflict.
// Every removed or modified path is unclean, whether or not the new tree
// touches it.
type JournalDiffCallback struct {
	logger *slog.Logger

	mu           sync.Mutex
	uncleanPaths map[string]pathutil.RelativePath
}

// NewJournalDiffCallback creates a callback ready for a single diff pass.
func NewJournalDiffCallback(logger *slog.Logger) *JournalDiffCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalDiffCallback{
		logger:       logger,
		uncleanPaths: make(map[string]pathutil.RelativePath),
	}
}

func (c *JournalDiffCallback) AddedFile(pathutil.RelativePath) {}

func (c *JournalDiffCallback) RemovedFile(path pathutil.RelativePath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uncleanPaths[path.String()] = path
}

func (c *JournalDiffCallback) ModifiedFile(path pathutil.RelativePath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uncleanPaths[path.String()] = path
}

func (c *JournalDiffCallback) DiffError(path pathutil.RelativePath, err error) {
	c.logger.Warn("error computing journal diff data", "path", path.String(), "error", err)
}

// StealUncleanPaths returns the accumulated unclean paths and clears the
// callback's internal set, mirroring the one-shot "steal" semantics of the
// value it's grounded on: once read, a callback instance is spent.
func (c *JournalDiffCallback) StealUncleanPaths() []pathutil.RelativePath {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]pathutil.RelativePath, 0, len(c.uncleanPaths))
	for _, p := range c.uncleanPaths {
		result = append(result, p)
	}
	c.uncleanPaths = make(map[string]pathutil.RelativePath)
	return result
}

// PerformWorkingCopyDiff runs the diff between fromTree (the mount's last
// checked-out tree) and the live inode state rooted at rootNumber, against
// store, reporting results to callback. It returns the fetch context
// accumulated during the walk so a caller can merge it into a checkout's
// own fetch statistics.
func PerformWorkingCopyDiff(ctx context.Context, store objectstore.Store, callback *JournalDiffCallback, inodes *inode.Map, rootNumber inode.Number, fromTree *objectstore.Tree) (*objectstore.FetchContext, error) {
	fc := objectstore.NewFetchContext()
	engine := New(&Context{Store: store, Callback: callback, FetchStats: fc})

	root, err := pathutil.NewRelativePath("")
	if err != nil {
		return fc, err
	}
	if err := engine.DiffWorkingCopy(ctx, root, inodes, rootNumber, fromTree); err != nil {
		return fc, err
	}
	return fc, nil
}
