package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"sagashark/internal/capture"
	"sagashark/internal/config"
	"sagashark/internal/repo"
	"sagashark/internal/search"
	"sagashark/internal/store"
)

type Options struct {
	Cwd     string
	DataDir string
	Repair  bool
}

type Report struct {
	OK         bool          `json:"ok"`
	Repo       RepoReport    `json:"repo"`
	Config     ConfigReport  `json:"config"`
	Sagas      SagaReport    `json:"sagas"`
	DB         DBReport      `json:"db"`
	Schema     SchemaReport  `json:"schema"`
	FTS        FTSReport     `json:"fts"`
	Session    SessionReport `json:"session"`
	Warnings   []string      `json:"warnings,omitempty"`
	Error      string        `json:"error,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

type RepoReport struct {
	ID      string `json:"id"`
	GitRoot string `json:"git_root"`
	Branch  string `json:"branch,omitempty"`
}

type ConfigReport struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	RepoPath       string `json:"repo_path"`
	RepoExists     bool   `json:"repo_exists"`
	RepoValid      bool   `json:"repo_valid"`
	RepoConfigNote string `json:"repo_config_error,omitempty"`
}

type SagaReport struct {
	Dir         string   `json:"dir"`
	Exists      bool     `json:"exists"`
	Files       int      `json:"files"`
	Parsed      int      `json:"parsed"`
	Unparseable []string `json:"unparseable,omitempty"`
}

type DBReport struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes"`
	Indexed   int    `json:"indexed"`
	Stale     bool   `json:"stale"`
	Reindexed bool   `json:"reindexed,omitempty"`
}

type SchemaReport struct {
	UserVersion     int    `json:"user_version"`
	CurrentVersion  int    `json:"current_version"`
	LastMigrationAt string `json:"last_migration_at,omitempty"`
}

type FTSReport struct {
	OK      bool `json:"ok"`
	Rebuilt bool `json:"rebuilt,omitempty"`
}

type SessionReport struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Valid   bool   `json:"valid"`
	Removed bool   `json:"removed,omitempty"`
}

type CheckError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e *CheckError) Error() string {
	if e.Suggestion == "" {
		return e.Message
	}
	return fmt.Sprintf("%s. %s", e.Message, e.Suggestion)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

func Check(ctx context.Context, opts Options) (Report, error) {
	return check(ctx, opts)
}

// Repair runs the same checks but rebuilds the index and drops an unreadable
// session file instead of failing on them.
func Repair(ctx context.Context, opts Options) (Report, error) {
	opts.Repair = true
	return check(ctx, opts)
}

func check(ctx context.Context, opts Options) (Report, error) {
	report := Report{}

	cfg, err := config.Load(opts.DataDir)
	if err != nil {
		return reportError(report, "config error", "Check config.toml", err)
	}
	report.Config.Path = cfg.Path()
	report.Config.Exists = pathExists(cfg.Path())

	if _, err := exec.LookPath("git"); err != nil {
		return reportError(report, "git not found", "Install git and make sure it is on PATH", err)
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return reportError(report, "failed to get cwd", "", err)
		}
	}
	info, err := repo.Detect(cwd)
	if err != nil {
		return reportError(report, "not inside a git repository", "Run saga from a git working tree", err)
	}
	report.Repo = RepoReport{ID: info.ID, GitRoot: info.GitRoot, Branch: info.Branch}

	report.Config.RepoPath = config.RepoConfigPath(info.GitRoot)
	_, exists, err := config.LoadRepoConfig(info.GitRoot)
	report.Config.RepoExists = exists || err != nil
	report.Config.RepoValid = err == nil
	if err != nil {
		report.Config.RepoConfigNote = err.Error()
		report.Warnings = append(report.Warnings, "repo config is invalid and will be ignored")
	}

	entries, err := checkSagas(&report, config.SagaDir(info.GitRoot))
	if err != nil {
		return reportError(report, "saga directory unreadable", "Check permissions on "+config.SagaDir(info.GitRoot), err)
	}
	if !report.Sagas.Exists {
		report.Warnings = append(report.Warnings, "no saga directory yet (run: saga init)")
	}
	if n := len(report.Sagas.Unparseable); n > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d saga file(s) could not be parsed", n))
	}

	if err := checkIndex(ctx, &report, cfg.RepoDBPath(info.ID), entries, opts.Repair); err != nil {
		return report, err
	}

	if err := checkSession(&report, info.GitRoot, opts.Repair); err != nil {
		return report, err
	}

	report.OK = true
	return report, nil
}

func checkSagas(report *Report, dir string) ([]search.Entry, error) {
	report.Sagas.Dir = dir
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	report.Sagas.Exists = true

	files, err := markdownFiles(dir)
	if err != nil {
		return nil, err
	}
	entries, err := search.Scan(dir, nil)
	if err != nil {
		return nil, err
	}
	parsed := make(map[string]bool, len(entries))
	for _, e := range entries {
		parsed[e.Path] = true
	}
	report.Sagas.Files = len(files)
	report.Sagas.Parsed = len(entries)
	for _, f := range files {
		if !parsed[f] {
			report.Sagas.Unparseable = append(report.Sagas.Unparseable, f)
		}
	}
	return entries, nil
}

// markdownFiles lists the files search.Scan considers, parsed or not.
func markdownFiles(dir string) ([]string, error) {
	var files []string
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
		if filepath.Ext(path) == ".md" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func checkIndex(ctx context.Context, report *Report, dbPath string, entries []search.Entry, repair bool) error {
	report.DB.Path = dbPath
	fi, err := os.Stat(dbPath)
	switch {
	case err == nil:
		report.DB.Exists = true
		report.DB.SizeBytes = fi.Size()
	case errors.Is(err, fs.ErrNotExist):
		if !repair {
			// The index is a cache; a missing one only costs search speed.
			if len(entries) > 0 {
				report.Warnings = append(report.Warnings, "saga index not built yet (run: saga reindex)")
				report.DB.Stale = true
			}
			return nil
		}
	default:
		msg, hint := mapDBError(err)
		return failCheck(report, msg, hint, err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		msg, hint := mapDBError(err)
		return failCheck(report, msg, hint, err)
	}
	defer st.Close()

	version, err := st.UserVersion()
	if err != nil {
		return failCheck(report, "schema check failed", "Try: saga doctor --verbose", err)
	}
	report.Schema.UserVersion = version
	report.Schema.CurrentVersion = store.SchemaVersion()
	if last, err := st.GetMeta("last_migration_at"); err == nil {
		report.Schema.LastMigrationAt = formatTimeRFC3339(last)
	}

	if err := st.CheckFTS(); err != nil {
		if !repair {
			return failCheck(report, "full-text index is corrupt", "Run: saga doctor --repair", err)
		}
		if err := st.RebuildFTS(); err != nil {
			return failCheck(report, "full-text rebuild failed", "Delete "+dbPath+" and run: saga reindex", err)
		}
		report.FTS.Rebuilt = true
	}
	report.FTS.OK = true

	indexed, err := st.Count()
	if err != nil {
		return failCheck(report, "index count failed", "Run: saga doctor --repair", err)
	}
	report.DB.Indexed = indexed
	report.DB.Stale = indexed != len(entries) || newerThan(entries, st.LastReindex())

	if report.DB.Stale && repair {
		records := make([]store.Record, 0, len(entries))
		for _, e := range entries {
			records = append(records, store.RecordFromSaga(e.Path, e.Saga))
		}
		if _, err := st.Reindex(ctx, records); err != nil {
			return failCheck(report, "reindex failed", "Run: saga reindex", err)
		}
		report.DB.Reindexed = true
		report.DB.Stale = false
		if n, err := st.Count(); err == nil {
			report.DB.Indexed = n
		}
	}
	if report.DB.Stale {
		report.Warnings = append(report.Warnings, "saga index is out of date (run: saga reindex)")
	}
	if fi, err := os.Stat(dbPath); err == nil {
		report.DB.Exists = true
		report.DB.SizeBytes = fi.Size()
	}
	return nil
}

func newerThan(entries []search.Entry, last time.Time) bool {
	if last.IsZero() {
		return len(entries) > 0
	}
	for _, e := range entries {
		if e.ModTime.After(last) {
			return true
		}
	}
	return false
}

func checkSession(report *Report, root string, repair bool) error {
	path := capture.SessionPath(root)
	report.Session.Path = path
	if !pathExists(path) {
		report.Session.Valid = true
		return nil
	}
	report.Session.Exists = true
	_, err := capture.LoadSession(root)
	if err == nil {
		report.Session.Valid = true
		return nil
	}
	if !repair {
		return failCheck(report, "session context file is unreadable", "Run: saga doctor --repair or saga session start", err)
	}
	if err := capture.ClearSession(root); err != nil {
		return failCheck(report, "could not remove session context file", "Delete "+path+" by hand", err)
	}
	report.Session.Exists = false
	report.Session.Valid = true
	report.Session.Removed = true
	return nil
}

func failCheck(report *Report, message, suggestion string, err error) error {
	var cerr error
	*report, cerr = reportError(*report, message, suggestion, err)
	return cerr
}

func mapDBError(err error) (string, string) {
	if isDBLocked(err) {
		return "database is locked", "Close other saga processes and retry (busy_timeout=3000ms)"
	}
	if isReadOnly(err) {
		return "cannot create index under the data dir", "Check permissions or set SAGA_DATA_DIR"
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "schema migration failed") {
		reason := strings.TrimSpace(strings.TrimPrefix(err.Error(), "schema migration failed:"))
		if reason == "" {
			reason = err.Error()
		}
		return fmt.Sprintf("schema migration failed: %s", reason), "Delete the index file and run: saga reindex"
	}
	return "index open error", "Run: saga doctor --verbose"
}

func reportError(report Report, message, suggestion string, err error) (Report, error) {
	report.OK = false
	report.Error = message
	report.Suggestion = suggestion
	return report, &CheckError{Message: message, Suggestion: suggestion, Err: err}
}

func isDBLocked(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}

func isReadOnly(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "read-only") || strings.Contains(msg, "readonly") || strings.Contains(msg, "permission denied")
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func formatTimeRFC3339(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.Format(time.RFC3339Nano)
	}
	return value
}
