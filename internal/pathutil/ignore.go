package pathutil

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName holds extra gitignore-style patterns for saga capture.
const IgnoreFileName = ".sagaignore"

// Matcher answers whether a repo-relative path is excluded from capture.
type Matcher struct {
	matchers []*ignore.GitIgnore
}

// NewMatcher compiles the configured excluded paths plus an optional
// .sagaignore at root.
func NewMatcher(root string, excluded []string) Matcher {
	var lines []string
	for _, entry := range excluded {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		lines = append(lines, entry, entry+"/")
	}
	matchers := []*ignore.GitIgnore{ignore.CompileIgnoreLines(lines...)}
	if strings.TrimSpace(root) != "" {
		if m, err := ignore.CompileIgnoreFile(filepath.Join(root, IgnoreFileName)); err == nil {
			matchers = append(matchers, m)
		}
	}
	return Matcher{matchers: matchers}
}

func (m Matcher) Matches(path string) bool {
	path = filepath.ToSlash(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	for _, matcher := range m.matchers {
		if matcher != nil && matcher.MatchesPath(path) {
			return true
		}
	}
	return false
}

// Filter returns the paths that are not excluded, preserving order.
func (m Matcher) Filter(paths []string) []string {
	kept := make([]string, 0, len(paths))
	for _, path := range paths {
		if m.Matches(path) {
			continue
		}
		kept = append(kept, path)
	}
	return kept
}
