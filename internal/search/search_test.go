package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sagashark/internal/embed"
	"sagashark/internal/logging"
	"sagashark/internal/saga"
	"sagashark/internal/store"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.Local)

func writeSaga(t *testing.T, dir string, s *saga.Saga, mod time.Time) string {
	t.Helper()
	path, err := s.Save(dir, nil)
	if err != nil {
		t.Fatalf("save saga: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSaga(title, content string, typ saga.Type, ts time.Time, tags []string, files []string) *saga.Saga {
	s := saga.New(title, content, typ, ts)
	s.Tags = tags
	s.FilesChanged = files
	return s
}

func seedCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSaga(t, dir, newSaga("Fix login timeout", "Session cookie expired. The login timeout came from clock skew.",
		saga.TypeDebugging, now.Add(-2*24*time.Hour), []string{"debugging", "auth"}, []string{"internal/auth/session.go"}), now.Add(-time.Hour))
	writeSaga(t, dir, newSaga("Add CSV export", "Users can export reports as CSV.",
		saga.TypeFeature, now.Add(-20*24*time.Hour), []string{"feature"}, []string{"web/export.ts"}), now.Add(-2*time.Hour))
	writeSaga(t, dir, newSaga("Tune cache eviction", "LRU evicted hot keys.",
		saga.TypeOptimization, now.Add(-90*24*time.Hour), []string{"performance"}, []string{"internal/cache/lru.go"}), now.Add(-3*time.Hour))
	if err := os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter here"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRelevance(t *testing.T) {
	s := newSaga("Fix login timeout", "the login timeout login timeout", saga.TypeDebugging, now.Add(-3*24*time.Hour), []string{"auth", "login-flow"}, nil)
	s.Branch = "main"
	// title phrase 10, content phrase 5 + 0.5, tag word 1, recency 1
	if got := Relevance(s, "login timeout", now); got != 17.5 {
		t.Fatalf("expected 17.5, got %v", got)
	}
	// title words 3, content words 0.5, tag word match 1, type 1.5, branch 2, recency 1
	if got := Relevance(s, "main debugging login", now); got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}
	old := newSaga("Unrelated", "nothing", saga.TypeGeneral, now.Add(-400*24*time.Hour), nil, nil)
	old.Branch = "develop"
	if got := Relevance(old, "login", now); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Relevance(s, "   ", now); got != 0 {
		t.Fatalf("expected blank query to score 0, got %v", got)
	}
}

func TestTextSearch(t *testing.T) {
	dir := seedCorpus(t)
	ts := NewTextSearcher(dir, logging.Discard())
	ts.now = func() time.Time { return now }

	hits, err := ts.Search("login timeout", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 || hits[0].Saga.Title != "Fix login timeout" {
		t.Fatalf("expected login saga first, got %+v", hits)
	}
	for _, h := range hits {
		if h.Score <= 0 {
			t.Fatalf("expected only positive scores, got %+v", h)
		}
	}

	hits, err = ts.SearchFiltered("export cache login", 10, Filter{FileGlob: "internal/**"})
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected glob to keep two internal/ sagas, got %d", len(hits))
	}
	hits, _ = ts.SearchFiltered("export cache login", 10, Filter{FileGlob: "*.ts"})
	if len(hits) != 1 || hits[0].Saga.Title != "Add CSV export" {
		t.Fatalf("expected basename glob match, got %+v", hits)
	}
	if _, err := ts.SearchFiltered("x", 10, Filter{FileGlob: "[unclosed"}); err == nil {
		t.Fatal("expected invalid glob error")
	}
}

func TestRecentByTypeByTag(t *testing.T) {
	dir := seedCorpus(t)
	ts := NewTextSearcher(dir, logging.Discard())

	recent, err := ts.Recent(2, Filter{})
	if err != nil || len(recent) != 2 {
		t.Fatalf("expected 2 recent, got %d (%v)", len(recent), err)
	}
	if recent[0].Saga.Title != "Fix login timeout" || recent[1].Saga.Title != "Add CSV export" {
		t.Fatalf("expected newest file first, got %q, %q", recent[0].Saga.Title, recent[1].Saga.Title)
	}
	byType, _ := ts.ByType(saga.TypeOptimization, 10)
	if len(byType) != 1 || byType[0].Saga.Title != "Tune cache eviction" {
		t.Fatalf("unexpected by-type result %+v", byType)
	}
	byTag, _ := ts.ByTag("AUTH", 10)
	if len(byTag) != 1 || byTag[0].Saga.Title != "Fix login timeout" {
		t.Fatalf("unexpected by-tag result %+v", byTag)
	}
}

func TestFind(t *testing.T) {
	dir := seedCorpus(t)
	entries, err := Scan(dir, logging.Discard())
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected 3 parsed entries, got %d (%v)", len(entries), err)
	}
	target := entries[1]
	if got, ok := Find(entries, target.Saga.ID); !ok || got.Path != target.Path {
		t.Fatalf("find by id failed")
	}
	if got, ok := Find(entries, target.Path); !ok || got.Saga.ID != target.Saga.ID {
		t.Fatalf("find by path failed")
	}
	if got, ok := Find(entries, "csv-export"); !ok || got.Saga.Title != "Add CSV export" {
		t.Fatalf("find by fragment failed")
	}
	if _, ok := Find(entries, "saga-nope"); ok {
		t.Fatal("expected miss")
	}
	if missing, err := Scan(filepath.Join(dir, "missing"), nil); err != nil || missing != nil {
		t.Fatalf("expected empty scan for missing dir, got %v (%v)", missing, err)
	}
}

type fakeProvider struct {
	fail bool
}

func (f fakeProvider) Name() string  { return "fake" }
func (f fakeProvider) Model() string { return "fake-model" }

// Embed maps texts onto three axes: auth, export, cache.
func (f fakeProvider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := []float64{0.01, 0.01, 0.01}
		if strings.Contains(lower, "login") || strings.Contains(lower, "session") {
			v[0] = 1
		}
		if strings.Contains(lower, "export") {
			v[1] = 1
		}
		if strings.Contains(lower, "cache") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func openIndex(t *testing.T, provider embed.Provider) *Index {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	status := embed.Status{Provider: "none"}
	if provider != nil {
		status = embed.Status{Provider: provider.Name(), Model: provider.Model(), Enabled: true}
	}
	return NewIndex(st, provider, status, 0.5, logging.Discard())
}

func TestIndexReindexSearchSimilar(t *testing.T) {
	dir := seedCorpus(t)
	entries, err := Scan(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	ix := openIndex(t, fakeProvider{})
	ctx := context.Background()

	res, err := ix.Reindex(ctx, entries)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if res.Indexed != 3 || res.Embedded != 3 || res.EmbedError != "" {
		t.Fatalf("unexpected reindex result %+v", res)
	}
	res, _ = ix.Reindex(ctx, entries)
	if res.Unchanged != 3 || res.Embedded != 0 {
		t.Fatalf("expected no-op reindex, got %+v", res)
	}

	hits, err := ix.Search("eviction", 5)
	if err != nil || len(hits) != 1 || hits[0].Saga.Type != saga.TypeOptimization {
		t.Fatalf("unexpected FTS hits %+v (%v)", hits, err)
	}

	similar, err := ix.Similar(ctx, "users cannot export reports", 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(similar) != 1 || similar[0].Saga.Title != "Add CSV export" {
		t.Fatalf("expected only the export saga above the threshold, got %+v", similar)
	}
}

func TestFindSimilarFallsBackToText(t *testing.T) {
	dir := seedCorpus(t)
	entries, _ := Scan(dir, nil)
	ts := NewTextSearcher(dir, nil)
	ctx := context.Background()

	disabled := openIndex(t, nil)
	if _, err := disabled.Reindex(ctx, entries); err != nil {
		t.Fatal(err)
	}
	if _, err := disabled.Similar(ctx, "login", 5); !errors.Is(err, ErrVectorsDisabled) {
		t.Fatalf("expected ErrVectorsDisabled, got %v", err)
	}
	hits, mode, err := FindSimilar(ctx, disabled, ts, "login timeout", 5)
	if err != nil || mode != ModeText || len(hits) == 0 {
		t.Fatalf("expected text fallback, got %v %d (%v)", mode, len(hits), err)
	}

	failing := openIndex(t, fakeProvider{fail: true})
	res, err := failing.Reindex(ctx, entries)
	if err != nil || res.EmbedError == "" || res.Indexed != 3 {
		t.Fatalf("expected embed error reported without failing reindex, got %+v (%v)", res, err)
	}

	working := openIndex(t, fakeProvider{})
	if _, err := working.Reindex(ctx, entries); err != nil {
		t.Fatal(err)
	}
	hits, mode, _ = FindSimilar(ctx, working, ts, "session cookie", 5)
	if mode != ModeHybrid {
		t.Fatalf("expected hybrid mode, got %s", mode)
	}
	if len(hits) != 1 || hits[0].Saga.Title != "Fix login timeout" {
		t.Fatalf("expected both backends merged into one login hit, got %+v", hits)
	}

	login := hits[0].Saga.ID
	hits, _, err = FindSimilar(ctx, working, ts, "Fix login timeout\nSession cookie expired.", 5, login)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Saga.ID == login {
			t.Fatalf("excluded saga returned: %+v", hits)
		}
	}
}

func TestMerge(t *testing.T) {
	hit := func(id string) Hit { return Hit{Saga: &saga.Saga{ID: id}, Path: id + ".md"} }
	ids := func(hits []Hit) string {
		var out []string
		for _, h := range hits {
			out = append(out, hitID(h))
		}
		return strings.Join(out, ",")
	}

	cases := []struct {
		name   string
		vector []Hit
		text   []Hit
		limit  int
		want   string
	}{
		{"interleaves vector first", []Hit{hit("a"), hit("b")}, []Hit{hit("c"), hit("d")}, 10, "a,c,b,d"},
		{"dedups by id", []Hit{hit("a"), hit("b")}, []Hit{hit("b"), hit("a"), hit("c")}, 10, "a,b,c"},
		{"keeps tail of longer list", []Hit{hit("a")}, []Hit{hit("c"), hit("d"), hit("e")}, 10, "a,c,d,e"},
		{"text only", nil, []Hit{hit("c"), hit("d")}, 10, "c,d"},
		{"applies limit", []Hit{hit("a"), hit("b")}, []Hit{hit("c"), hit("d")}, 3, "a,c,b"},
		{"no limit", []Hit{hit("a")}, []Hit{hit("b")}, 0, "a,b"},
		{"path when id missing", []Hit{{Saga: &saga.Saga{}, Path: "x.md"}}, []Hit{{Saga: &saga.Saga{}, Path: "x.md"}}, 10, "x.md"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(Merge(tc.vector, tc.text, tc.limit)); got != tc.want {
				t.Fatalf("Merge = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseSince(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"yesterday", now.AddDate(0, 0, -1), false},
		{"Week", now.AddDate(0, 0, -7), false},
		{"month", now.AddDate(0, 0, -30), false},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), false},
		{"03/01/2024", time.Time{}, true},
		{"fortnight", time.Time{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSince(tc.in, now)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSince(%q) err = %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("ParseSince(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRecentSince(t *testing.T) {
	ts := NewTextSearcher(seedCorpus(t), nil)
	cases := []struct {
		since string
		want  int
	}{
		{"week", 1},
		{"month", 2},
		{"2023-01-01", 3},
		{"", 3},
	}
	for _, tc := range cases {
		cutoff, err := ParseSince(tc.since, now)
		if err != nil {
			t.Fatal(err)
		}
		hits, err := ts.Recent(0, Filter{Since: cutoff})
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != tc.want {
			t.Errorf("since %q: expected %d sagas, got %d", tc.since, tc.want, len(hits))
		}
	}
}
