package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SecureJoin joins base with elements on the real filesystem, refusing to
// return a path that escapes base. Used when turning a RelativePath into an
// overlay or client-directory path: a malformed or adversarial repository
// path must never let overlay I/O land outside the client directory.
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("pathutil: base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)

	if fullPath != cleanBase && !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("pathutil: path escapes base directory %s", base)
	}

	return fullPath, nil
}

// ToFilesystemPath converts a mount-relative path into an absolute path
// under clientDirectory, guarding against traversal the same way SecureJoin
// does.
func ToFilesystemPath(clientDirectory string, p RelativePath) (string, error) {
	if p.IsRoot() {
		return filepath.Clean(clientDirectory), nil
	}
	return SecureJoin(clientDirectory, p.Components()...)
}
