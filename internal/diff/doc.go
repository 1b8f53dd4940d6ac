/*
Package diff computes the set of paths that differ between two committed
trees, walking matching directories in lockstep and only descending into a
subtree when its object id actually changed. JournalDiffCallback is the
consumer checkout uses before applying a new tree: it records every removed
or modified path as "unclean" so the journal entry checkout writes on
completion reports files that changed underneath a client's feet, not just
the files checkout itself touched.
*/
package diff
