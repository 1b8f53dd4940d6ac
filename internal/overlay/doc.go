/*
Package overlay implements the per-inode local-modification store named in
spec.md §6's collaborator interface: a mount's uncommitted directory entries
and file contents, persisted to local disk so they survive a daemon restart
when the overlay type is configured to be durable.

Writes are buffered per inode through a small write-coalescing buffer
(bufferedWriter) before being flushed to the on-disk representation, the same
shape the teacher used for buffering writes to remote storage, here aimed at
a local directory tree instead.
*/
package overlay
