package organize

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"sagashark/internal/pathutil"
)

var (
	filenameDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(\d{2})(\d{2})`)
	organizedRel = regexp.MustCompile(`^\d{4}/\d{2}-[A-Za-z]+/week-\d{2}/[^/]+$`)
)

// Organizer lays saga files out as <root>/<YYYY>/<MM-Month>/week-<NN>/<file>.
type Organizer struct {
	root string
	now  func() time.Time
}

func New(root string) *Organizer {
	return &Organizer{root: root, now: time.Now}
}

func (o *Organizer) Root() string {
	return o.root
}

// Move is a planned or performed relocation.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Stats struct {
	Total       int            `json:"total_sagas"`
	Organized   int            `json:"organized_sagas"`
	Unorganized int            `json:"unorganized_sagas"`
	ByYear      map[string]int `json:"by_year"`
	ByMonth     map[string]int `json:"by_month"`
	RecentWeek  int            `json:"recent_week"`
}

// WeekOfMonth buckets by day of month: days 1-7 are week 1, and so on.
func WeekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// SagaDate reads the YYYY-MM-DD-HHMM filename prefix and falls back to the
// file's modification time.
func (o *Organizer) SagaDate(path string) (time.Time, bool) {
	if m := filenameDate.FindStringSubmatch(filepath.Base(path)); m != nil {
		parts := make([]int, 5)
		for i := range parts {
			parts[i], _ = strconv.Atoi(m[i+1])
		}
		t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.Local)
		if t.Month() == time.Month(parts[1]) && t.Day() == parts[2] {
			return t, true
		}
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime(), true
	}
	return time.Time{}, false
}

// OrganizedPath is where path belongs. A zero date is derived from the file.
// Calling it on an already organized path returns that path.
func (o *Organizer) OrganizedPath(path string, date time.Time) string {
	if date.IsZero() && o.isOrganized(path) {
		return path
	}
	if date.IsZero() {
		var ok bool
		if date, ok = o.SagaDate(path); !ok {
			date = o.now()
		}
	}
	return filepath.Join(o.root,
		date.Format("2006"),
		date.Format("01-January"),
		fmt.Sprintf("week-%02d", WeekOfMonth(date)),
		filepath.Base(path))
}

// Organize moves path to its organized location, appending -1, -2, ... on
// name collisions.
func (o *Organizer) Organize(path string, date time.Time) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("saga not found: %w", err)
	}
	target := o.OrganizedPath(path, date)
	if samePath(path, target) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	target = pathutil.UniquePath(target)
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

// OrganizeAll relocates stray files: markdown directly under the root and
// anything inside top-level directories that are not years. The moves are
// reported even in dry-run mode.
func (o *Organizer) OrganizeAll(dryRun bool) ([]Move, error) {
	candidates, err := o.strayFiles()
	if err != nil {
		return nil, err
	}
	var moves []Move
	for _, path := range candidates {
		target := o.OrganizedPath(path, time.Time{})
		if samePath(path, target) {
			continue
		}
		if !dryRun {
			if target, err = o.Organize(path, time.Time{}); err != nil {
				return moves, err
			}
		}
		moves = append(moves, Move{From: path, To: target})
	}
	return moves, nil
}

func (o *Organizer) strayFiles() ([]string, error) {
	entries, err := os.ReadDir(o.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		path := filepath.Join(o.root, entry.Name())
		if !entry.IsDir() {
			if filepath.Ext(entry.Name()) == ".md" {
				out = append(out, path)
			}
			continue
		}
		if isDigits(entry.Name()) {
			continue
		}
		nested, err := markdownFiles(path)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// CleanupEmptyDirs removes empty directories bottom-up and never the root.
func (o *Organizer) CleanupEmptyDirs() (int, error) {
	var dirs []string
	err := filepath.WalkDir(o.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != o.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (o *Organizer) Stats() (Stats, error) {
	stats := Stats{ByYear: map[string]int{}, ByMonth: map[string]int{}}
	files, err := markdownFiles(o.root)
	if err != nil {
		return stats, err
	}
	now := o.now()
	for _, path := range files {
		stats.Total++
		rel, err := filepath.Rel(o.root, path)
		if err != nil {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 4 {
			stats.Unorganized++
			continue
		}
		stats.Organized++
		stats.ByYear[parts[0]]++
		stats.ByMonth[parts[0]+"/"+parts[1]]++
		if date, ok := o.SagaDate(path); ok && now.Sub(date) <= 7*24*time.Hour {
			stats.RecentWeek++
		}
	}
	return stats, nil
}

// ShouldReorganize reports whether more than a fifth of the sagas sit
// outside the date hierarchy.
func (o *Organizer) ShouldReorganize() (bool, error) {
	stats, err := o.Stats()
	if err != nil || stats.Total == 0 {
		return false, err
	}
	return float64(stats.Unorganized)/float64(stats.Total) > 0.2, nil
}

// Cleanup is the outcome of an AutoCleanup that found work to do.
type Cleanup struct {
	Moves   []Move `json:"moves"`
	Removed int    `json:"removed_dirs"`
}

// AutoCleanup organizes every stray saga and prunes empty directories, but
// only once ShouldReorganize says the hierarchy has drifted. ran is false
// when nothing was needed.
func (o *Organizer) AutoCleanup() (res Cleanup, ran bool, err error) {
	should, err := o.ShouldReorganize()
	if err != nil || !should {
		return res, false, err
	}
	if res.Moves, err = o.OrganizeAll(false); err != nil {
		return res, true, err
	}
	res.Removed, err = o.CleanupEmptyDirs()
	return res, true, err
}

// markdownFiles lists *.md files under dir. A missing dir is empty.
func markdownFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".md" {
			out = append(out, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

func (o *Organizer) isOrganized(path string) bool {
	rel, err := filepath.Rel(pathutil.Canonical(o.root), pathutil.Canonical(path))
	if err != nil {
		return false
	}
	return organizedRel.MatchString(filepath.ToSlash(rel))
}

func samePath(a, b string) bool {
	return pathutil.Canonical(a) == pathutil.Canonical(b)
}

func isDigits(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
