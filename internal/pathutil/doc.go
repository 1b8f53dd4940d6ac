/*
Package pathutil implements the RelativePath type used for every path that
flows through checkout, diff, and inode resolution, plus the base-directory
containment checks needed to turn a RelativePath into a real filesystem
path under the mount's client directory.
*/
package pathutil
