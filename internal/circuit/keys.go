package circuit

// Breaker names for the collaborators scmfs's core can wrap in a circuit
// breaker. No code in this module builds a breaker or a Manager under these
// names; the object store backend's own breaker is named "objectstore".
const (
	// BreakerObjectStore names a breaker for ObjectStore.GetRootTree /
	// GetTreeEntryForRootId calls made during initialize and checkout.
	BreakerObjectStore = "objectstore.fetch"

	// BreakerPrivHelper names a breaker for calls into the privileged mount
	// helper (fuse_mount, fuse_unmount, nfs_mount, nfs_unmount, bind_mount).
	BreakerPrivHelper = "privhelper.rpc"

	// BreakerOverlay names a breaker for overlay I/O performed on the
	// worker executor during initialize and shutdown.
	BreakerOverlay = "overlay.io"
)
