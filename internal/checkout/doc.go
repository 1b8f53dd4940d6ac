/*
Package checkout implements the mount's checkout engine: the phase-by-phase
transaction that moves a mount from its current parent commit to a new one,
following EdenMount::checkout's ordering exactly — acquire the parent lock,
fetch both trees, diff the working state against the old tree to find
unclean paths, acquire the rename lock, apply the tree change to the inode
map and overlay, finish by installing the new parent, then record a journal
entry and emit completion telemetry.

setpath.go implements the supplemented set_path_object_id operation, which
takes the rename lock, creates any missing parent directories, and repoints
or creates the single leaf entry; it does not run the apply phase.
*/
package checkout
