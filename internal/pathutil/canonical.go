package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Canonical returns a cleaned, symlink-resolved path when possible.
// Missing trailing components are kept and joined onto the deepest
// existing parent, so /tmp -> /private/tmp style links stay stable.
func Canonical(path string) string {
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "" || clean == "." {
		return clean
	}
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		return filepath.Clean(resolved)
	}

	prefix := clean
	var suffix []string
	for {
		if _, err := os.Lstat(prefix); err == nil {
			resolved, err := filepath.EvalSymlinks(prefix)
			if err != nil {
				return clean
			}
			parts := append([]string{resolved}, suffix...)
			return filepath.Clean(filepath.Join(parts...))
		}
		dir := filepath.Dir(prefix)
		if dir == prefix {
			return clean
		}
		suffix = append([]string{filepath.Base(prefix)}, suffix...)
		prefix = dir
	}
}

// Depth counts the path components of path below root. It returns -1 when
// path is not inside root.
func Depth(root, path string) int {
	rel, err := filepath.Rel(Canonical(root), Canonical(path))
	if err != nil {
		return -1
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return 0
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return -1
	}
	return len(strings.Split(rel, "/"))
}

// UniquePath returns path, or the first free "<stem>-N<ext>" sibling when
// path already exists.
func UniquePath(path string) string {
	if _, err := os.Lstat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
	}
}
