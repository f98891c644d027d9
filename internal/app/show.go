package app

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sagashark/internal/capture"
	"sagashark/internal/saga"
	"sagashark/internal/search"
	"sagashark/internal/store"
)

type sagaView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	Timestamp    string   `json:"timestamp"`
	Branch       string   `json:"branch"`
	Tags         []string `json:"tags"`
	FilesChanged []string `json:"files_changed"`
	Status       string   `json:"status"`
	CommitID     string   `json:"commit_id,omitempty"`
	Path         string   `json:"path"`
	Score        float64  `json:"score,omitempty"`
	Content      string   `json:"content,omitempty"`
}

func toSagaView(s *saga.Saga, path string) sagaView {
	return sagaView{
		ID:           s.ID,
		Title:        s.Title,
		Type:         string(s.Type),
		Timestamp:    formatTime(s.Timestamp),
		Branch:       s.Branch,
		Tags:         nonNilStrings(s.Tags),
		FilesChanged: nonNilStrings(s.FilesChanged),
		Status:       string(s.Status),
		CommitID:     s.CommitID,
		Path:         path,
	}
}

func hitViews(e *env, hits []search.Hit) []sagaView {
	views := make([]sagaView, 0, len(hits))
	for _, h := range hits {
		v := toSagaView(h.Saga, e.rel(h.Path))
		v.Score = h.Score
		views = append(views, v)
	}
	return views
}

func runLog(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.SetOutput(errOut)
	limit := fs.Int("limit", 10, "Max sagas to list")
	typ := fs.String("type", "", "Only sagas of this type")
	branch := fs.String("branch", "", "Only sagas from this branch")
	tag := fs.String("tag", "", "Only sagas with this tag")
	files := fs.String("file", "", "Only sagas touching files matching this glob")
	since := fs.String("since", "", "Only sagas since yesterday, week, month or YYYY-MM-DD")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	filter, ok := buildFilter(*typ, *branch, *tag, *files, errOut)
	if !ok {
		return 2
	}
	cutoff, err := search.ParseSince(*since, time.Now())
	if err != nil {
		fmt.Fprintf(errOut, "log error: %v\n", err)
		return 2
	}
	filter.Since = cutoff
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	hits, err := e.textSearcher().Recent(*limit, filter)
	if err != nil {
		fmt.Fprintf(errOut, "log error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return writeJSON(out, errOut, hitViews(e, hits))
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No sagas yet. Capture one with: saga capture")
		return 0
	}
	for _, h := range hits {
		s := h.Saga
		fmt.Fprintf(out, "%s  %s  %-12s %s (%s)\n",
			s.ID, s.Timestamp.Format("2006-01-02 15:04"), s.Type, s.Title, humanize.Time(s.Timestamp))
	}
	return 0
}

func runShow(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{"json": {}})
	if err != nil {
		fmt.Fprintf(errOut, "show error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(errOut, "usage: saga show <id|path> [--json]")
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	entry, err := e.findSaga(positional[0])
	if err != nil {
		fmt.Fprintf(errOut, "show error: %v\n", err)
		return 1
	}
	s := entry.Saga
	if *jsonOut {
		view := toSagaView(s, e.rel(entry.Path))
		view.Content = s.Content
		return writeJSON(out, errOut, view)
	}

	fmt.Fprintf(out, "ID: %s\n", s.ID)
	fmt.Fprintf(out, "Title: %s\n", s.Title)
	fmt.Fprintf(out, "Type: %s\n", s.Type)
	fmt.Fprintf(out, "Branch: %s\n", s.Branch)
	fmt.Fprintf(out, "Date: %s (%s)\n", s.Timestamp.Format("2006-01-02 15:04"), humanize.Time(s.Timestamp))
	if len(s.Tags) > 0 {
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(s.Tags, ", "))
	}
	if len(s.FilesChanged) > 0 {
		fmt.Fprintf(out, "Files: %s\n", strings.Join(s.FilesChanged, ", "))
	}
	if s.CommitID != "" {
		fmt.Fprintf(out, "Commit: %s\n", s.CommitID)
	}
	size := ""
	if info, err := os.Stat(entry.Path); err == nil {
		size = fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
	}
	fmt.Fprintf(out, "Path: %s%s\n\n", e.rel(entry.Path), size)
	fmt.Fprintln(out, strings.TrimSpace(s.Content))
	return 0
}

type statusReport struct {
	Repo        string         `json:"repo"`
	Root        string         `json:"root"`
	Branch      string         `json:"branch"`
	SagaDir     string         `json:"saga_dir"`
	Total       int            `json:"total_sagas"`
	Organized   int            `json:"organized_sagas"`
	Unorganized int            `json:"unorganized_sagas"`
	RecentWeek  int            `json:"recent_week"`
	ByType      map[string]int `json:"by_type"`
	LastSaga    string         `json:"last_saga,omitempty"`
	LastSagaAt  string         `json:"last_saga_at,omitempty"`
	Reorganize  bool           `json:"should_reorganize"`
	Session     string         `json:"session,omitempty"`
	HookInstall bool           `json:"hook_installed"`
	Indexed     int            `json:"indexed"`
	LastReindex string         `json:"last_reindex,omitempty"`
	Threshold   float64        `json:"min_significance"`
	UseAI       bool           `json:"use_ai"`
}

func runStatus(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}

	org := e.organizer()
	stats, err := org.Stats()
	if err != nil {
		fmt.Fprintf(errOut, "status error: %v\n", err)
		return 1
	}
	report := statusReport{
		Repo:        e.repo.ID,
		Root:        e.root,
		Branch:      e.repo.Branch,
		SagaDir:     e.rel(e.sagaDir),
		Total:       stats.Total,
		Organized:   stats.Organized,
		Unorganized: stats.Unorganized,
		RecentWeek:  stats.RecentWeek,
		ByType:      map[string]int{},
		Threshold:   e.cfg.MinSignificance,
		UseAI:       e.cfg.UseAI,
	}
	report.Reorganize, _ = org.ShouldReorganize()

	entries, err := e.entries()
	if err != nil {
		e.logger.Warn("scan sagas", "err", err)
	}
	var last *saga.Saga
	for _, entry := range entries {
		report.ByType[string(entry.Saga.Type)]++
		if last == nil || entry.Saga.Timestamp.After(last.Timestamp) {
			last = entry.Saga
		}
	}
	var lastAt time.Time
	if last != nil {
		report.LastSaga = last.Title
		report.LastSagaAt = formatTime(last.Timestamp)
		lastAt = last.Timestamp
	}

	session, err := capture.LoadSession(e.root)
	if err != nil {
		e.logger.Warn("read session context", "err", err)
	}
	if session != nil {
		report.Session = session.Summary()
	}
	report.HookInstall = hookInstalled(e.root)

	var lastReindex time.Time
	if dbPath := e.cfg.RepoDBPath(e.repo.ID); fileExists(dbPath) {
		if st, err := store.Open(dbPath); err == nil {
			report.Indexed, _ = st.Count()
			lastReindex = st.LastReindex()
			st.Close()
		} else {
			e.logger.Debug("index unavailable", "err", err)
		}
	}
	if !lastReindex.IsZero() {
		report.LastReindex = formatTime(lastReindex)
	}

	if *jsonOut {
		return writeJSON(out, errOut, report)
	}

	fmt.Fprintf(out, "repo: %s (%s)\n", e.root, report.Repo)
	if report.Branch != "" {
		fmt.Fprintf(out, "branch: %s\n", report.Branch)
	}
	fmt.Fprintf(out, "sagas: %d in %s (%d organized, %d unorganized)\n", report.Total, report.SagaDir, report.Organized, report.Unorganized)
	for _, t := range saga.Types {
		if n := report.ByType[string(t)]; n > 0 {
			fmt.Fprintf(out, "  %-13s %d\n", t, n)
		}
	}
	fmt.Fprintf(out, "this week: %d\n", report.RecentWeek)
	if last != nil {
		fmt.Fprintf(out, "last saga: %s (%s)\n", last.Title, humanize.Time(lastAt))
	}
	if report.Reorganize {
		fmt.Fprintln(out, "suggestion: run `saga organize` to file loose sagas by date")
	}
	fmt.Fprintf(out, "threshold: %.2f\n", report.Threshold)
	fmt.Fprintf(out, "post-commit hook: %s\n", yesNo(report.HookInstall))
	if lastReindex.IsZero() {
		fmt.Fprintln(out, "index: never built (run `saga reindex`)")
	} else {
		fmt.Fprintf(out, "index: %d sagas, rebuilt %s\n", report.Indexed, humanize.Time(lastReindex))
	}
	if report.Session != "" {
		fmt.Fprintf(out, "session: %s\n", report.Session)
	}
	return 0
}

func buildFilter(typ, branch, tag, files string, errOut io.Writer) (search.Filter, bool) {
	filter := search.Filter{Branch: strings.TrimSpace(branch), Tag: strings.TrimSpace(tag), FileGlob: files}
	if strings.TrimSpace(typ) != "" {
		t, ok := saga.ParseType(typ)
		if !ok {
			fmt.Fprintf(errOut, "unknown saga type: %s\n", typ)
			return filter, false
		}
		filter.Type = t
	}
	if _, err := filter.Compile(); err != nil {
		fmt.Fprintln(errOut, err.Error())
		return filter, false
	}
	return filter, true
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func writeJSON(out, errOut io.Writer, value any) int {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "json error: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(encoded))
	return 0
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func yesNo(v bool) string {
	if v {
		return "installed"
	}
	return "not installed"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
