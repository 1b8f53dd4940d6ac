/*
Package journal implements the mount's append-only change log: every
checkout's resulting tree transition, and any paths a checkout could not
apply cleanly, recorded so a subscriber (a filesystem watcher, a client
build tool) can learn what changed without re-diffing the whole tree.

The log itself is a mutex-guarded slice with a monotonically increasing
sequence number per entry: append under the lock, then fan each new entry
out to subscribers from a snapshot taken before unlocking. Entries are kept
up to the retention limit rather than drained.
*/
package journal
