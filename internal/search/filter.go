package search

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"sagashark/internal/saga"
)

// Filter narrows results. Zero fields match everything.
type Filter struct {
	Type     saga.Type
	Branch   string
	Tag      string
	FileGlob string
	// Since drops sagas written before it.
	Since time.Time

	files glob.Glob
}

// Compile validates the file glob. Patterns use / as the separator, so
// "internal/**" spans directories and "*.go" stays within one.
func (f Filter) Compile() (Filter, error) {
	pattern := strings.TrimSpace(f.FileGlob)
	if pattern == "" {
		f.files = nil
		return f, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return f, fmt.Errorf("invalid file glob %q: %w", pattern, err)
	}
	f.files = g
	return f, nil
}

func (f Filter) Match(s *saga.Saga) bool {
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.Branch != "" && !strings.EqualFold(s.Branch, f.Branch) {
		return false
	}
	if f.Tag != "" && !hasTag(s.Tags, f.Tag) {
		return false
	}
	if f.files != nil && !f.matchFiles(s.FilesChanged) {
		return false
	}
	if !f.Since.IsZero() && s.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// ParseSince reads yesterday, week, month or a YYYY-MM-DD date (local
// midnight) relative to now. Blank yields the zero time.
func ParseSince(value string, now time.Time) (time.Time, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return time.Time{}, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, 0, -30), nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: use yesterday, week, month or YYYY-MM-DD", value)
	}
	return t, nil
}

func (f Filter) matchFiles(files []string) bool {
	for _, file := range files {
		file = strings.TrimPrefix(file, "./")
		if f.files.Match(file) || f.files.Match(path.Base(file)) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), tag) {
			return true
		}
	}
	return false
}
