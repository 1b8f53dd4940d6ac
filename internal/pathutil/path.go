// Package pathutil handles the repository-relative paths used throughout
// checkout, diff, and inode resolution: joining, normalization, and
// component splitting, all relative to a mount root rather than the
// filesystem root.
package pathutil

import (
	"fmt"
	"path"
	"strings"
)

// RelativePath is a slash-separated path relative to the mount root, never
// beginning with "/" and never containing "." or ".." components. The empty
// RelativePath ("") denotes the root itself.
type RelativePath string

// Root is the RelativePath denoting the mount root.
const Root RelativePath = ""

// NewRelativePath cleans and validates raw into a RelativePath. It rejects
// absolute paths and any path that would escape the root via "..".
func NewRelativePath(raw string) (RelativePath, error) {
	if raw == "" {
		return Root, nil
	}
	if strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("pathutil: %q is absolute, want mount-relative", raw)
	}

	cleaned := path.Clean(raw)
	if cleaned == "." {
		return Root, nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("pathutil: %q escapes mount root", raw)
	}

	return RelativePath(cleaned), nil
}

// IsRoot reports whether p denotes the mount root.
func (p RelativePath) IsRoot() bool {
	return p == Root
}

// Join appends a single path component to p, validating it does not itself
// contain a separator or a traversal segment.
func (p RelativePath) Join(component string) (RelativePath, error) {
	if component == "" {
		return "", fmt.Errorf("pathutil: empty path component")
	}
	if strings.ContainsRune(component, '/') {
		return "", fmt.Errorf("pathutil: component %q contains a separator", component)
	}
	if component == "." || component == ".." {
		return "", fmt.Errorf("pathutil: component %q is not a valid name", component)
	}

	if p.IsRoot() {
		return RelativePath(component), nil
	}
	return RelativePath(string(p) + "/" + component), nil
}

// Dirname returns the parent of p and whether p had a parent (false at the
// root).
func (p RelativePath) Dirname() (RelativePath, bool) {
	if p.IsRoot() {
		return Root, false
	}
	idx := strings.LastIndexByte(string(p), '/')
	if idx < 0 {
		return Root, true
	}
	return RelativePath(p[:idx]), true
}

// Basename returns the final path component of p.
func (p RelativePath) Basename() string {
	if p.IsRoot() {
		return ""
	}
	idx := strings.LastIndexByte(string(p), '/')
	if idx < 0 {
		return string(p)
	}
	return string(p[idx+1:])
}

// Components splits p into its individual path components. The root
// returns an empty slice.
func (p RelativePath) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p), "/")
}

// HasPrefixDir reports whether p is equal to dir or nested underneath it.
func (p RelativePath) HasPrefixDir(dir RelativePath) bool {
	if dir.IsRoot() {
		return true
	}
	if p == dir {
		return true
	}
	return strings.HasPrefix(string(p), string(dir)+"/")
}

func (p RelativePath) String() string {
	return string(p)
}

// ResolveSymlinkTarget joins a symlink's raw target with the directory that
// contains the symlink and normalizes the result, collapsing "." and ".."
// segments. Used by the symlink resolver, which recurses on the result and
// fails with a depth error rather than looping forever on a cycle.
func ResolveSymlinkTarget(containingDir RelativePath, target string) (RelativePath, error) {
	if strings.HasPrefix(target, "/") {
		return NewRelativePath(strings.TrimPrefix(target, "/"))
	}

	joined := string(containingDir)
	if joined == "" {
		joined = target
	} else {
		joined = joined + "/" + target
	}

	cleaned := path.Clean(joined)
	if cleaned == "." {
		return Root, nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("pathutil: symlink target %q escapes mount root", target)
	}
	return RelativePath(cleaned), nil
}
