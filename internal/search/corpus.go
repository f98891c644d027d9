package search

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sagashark/internal/saga"
)

// Entry is a parsed saga file.
type Entry struct {
	Saga    *saga.Saga
	Path    string
	ModTime time.Time
}

// Scan parses every *.md under dir, newest file first. Files that do not
// parse are skipped and counted in the debug log.
func Scan(dir string, logger *slog.Logger) ([]Entry, error) {
	type file struct {
		path string
		mod  time.Time
	}
	var files []file
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, file{path: path, mod: info.ModTime()})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.After(files[j].mod)
		}
		return files[i].path < files[j].path
	})

	entries := make([]Entry, 0, len(files))
	skipped := 0
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			skipped++
			continue
		}
		s, err := saga.Parse(string(data))
		if err != nil {
			skipped++
			if logger != nil {
				logger.Debug("skip unparseable saga", "path", f.path, "err", err)
			}
			continue
		}
		entries = append(entries, Entry{Saga: s, Path: f.path, ModTime: f.mod})
	}
	if skipped > 0 && logger != nil {
		logger.Debug("saga scan finished", "dir", dir, "parsed", len(entries), "skipped", skipped)
	}
	return entries, nil
}

// Find resolves a saga by id, by path, or by a filename fragment.
func Find(entries []Entry, ref string) (Entry, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Saga.ID == ref {
			return e, true
		}
	}
	if abs, err := filepath.Abs(ref); err == nil {
		for _, e := range entries {
			if e.Path == abs || e.Path == ref {
				return e, true
			}
		}
	}
	for _, e := range entries {
		if strings.Contains(filepath.Base(e.Path), ref) {
			return e, true
		}
	}
	return Entry{}, false
}
