/*
Package inode implements the mount's inode registry: the mapping from a
stable inode number to the tree or file it currently represents, and whether
that representation is the unmodified backing tree, a materialized copy in
the overlay, or a locally-created entry the backing tree never had.

The registry is deliberately explicit rather than delegated to a FUSE
library's own inode bookkeeping, because checkout, diff, and the journal all
need to name inodes by number directly (spec.md §6's load_overlay_dir and
set_path_object_id both take an inode number, not a path) and need that
number to remain stable across a takeover, which SerializedInodeMap exists
to carry.
*/
package inode
