package saga

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestMarkdownRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 10, 14, 30, 15, 123, time.UTC)
	s := New("Fix login timeout: retry --- twice", "## Problem\n\nLogin timed out.", TypeDebugging, ts)
	s.Branch = "fix/login"
	s.Tags = []string{"debugging", "auth", "debugging", "Auth"}
	s.FilesChanged = []string{"auth/login.go", "config.yml"}
	s.CommitID = "abc123"
	s.normalize()

	text, err := s.Markdown()
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if !strings.HasPrefix(text, "---\nid: "+s.ID+"\ntitle:") {
		t.Fatalf("unexpected frontmatter order:\n%s", text)
	}

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ID != s.ID || got.Title != s.Title || got.Type != s.Type || got.Branch != s.Branch || got.Status != StatusActive {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, s)
	}
	if !got.Timestamp.Equal(s.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", got.Timestamp, s.Timestamp)
	}
	if !reflect.DeepEqual(got.Tags, []string{"debugging", "auth", "Auth"}) {
		t.Errorf("unexpected tags %v", got.Tags)
	}
	if !reflect.DeepEqual(got.FilesChanged, s.FilesChanged) {
		t.Errorf("unexpected files %v", got.FilesChanged)
	}
	if got.Content != s.Content || got.CommitID != "abc123" {
		t.Errorf("unexpected content/commit: %q %q", got.Content, got.CommitID)
	}
}

func TestParseDefaultsAndErrors(t *testing.T) {
	if _, err := Parse("# no frontmatter"); !errors.Is(err, ErrNoFrontmatter) {
		t.Fatalf("expected ErrNoFrontmatter, got %v", err)
	}
	if _, err := Parse("---\nid: x\n"); !errors.Is(err, ErrIncompleteFrontmatter) {
		t.Fatalf("expected ErrIncompleteFrontmatter, got %v", err)
	}
	s, err := Parse("---\ntimestamp: 2024-01-02T03:04:05\n---\n\nbody\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Title != "Untitled" || s.Type != TypeGeneral || s.Branch != "main" || s.Status != StatusActive {
		t.Errorf("defaults not applied: %+v", s)
	}
	if s.ID == "" || s.Content != "body" {
		t.Errorf("unexpected id/content: %q %q", s.ID, s.Content)
	}
}

func TestGenerateIDDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 10, 14, 30, 0, 0, time.Local)
	a := GenerateID("Same title", ts)
	b := GenerateID("Same title", ts)
	if a != b || !strings.HasPrefix(a, "saga-") || len(a) != len("saga-")+8 {
		t.Fatalf("unexpected ids %s %s", a, b)
	}
	if GenerateID("Same title", ts.Add(time.Second)) == a {
		t.Fatal("expected different id for different timestamp")
	}
}

func TestNormalizeTagsCap(t *testing.T) {
	var tags []string
	for i := 0; i < 15; i++ {
		tags = append(tags, string(rune('a'+i)))
	}
	got := NormalizeTags(tags)
	if len(got) != MaxTags || got[0] != "a" || got[9] != "j" {
		t.Fatalf("unexpected tags %v", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Fix the login timeout in the session handler", "fix-login-timeout-session"},
		{"Resolve null pointer", "resolve-null-pointer"},
		{"Go is it", "go-is-it"},
		{"Internationalization configuration synchronization refactoring", "internationalization"},
		{"!!!", "saga"},
	}
	for _, tc := range cases {
		got := Slug(tc.title)
		if got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.title, got, tc.want)
		}
		if utf8.RuneCountInString(got) > maxSlugLength || got == "" {
			t.Errorf("Slug(%q) violates bounds: %q", tc.title, got)
		}
	}
}

func TestFilename(t *testing.T) {
	s := New("Fix login timeout", "", TypeDebugging, time.Date(2024, 3, 10, 9, 5, 0, 0, time.Local))
	if got := s.Filename(); got != "2024-03-10-0905-fix-login-timeout.md" {
		t.Fatalf("unexpected filename %s", got)
	}
	if s.Filename() != s.Filename() {
		t.Fatal("filename is not deterministic")
	}
}

type recordingOrganizer struct {
	target string
	seen   []string
}

func (r *recordingOrganizer) Organize(path string, _ time.Time) (string, error) {
	r.seen = append(r.seen, path)
	if err := os.MkdirAll(filepath.Dir(r.target), 0o755); err != nil {
		return "", err
	}
	return r.target, os.Rename(path, r.target)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	s := New("Add export button", "body", TypeFeature, time.Date(2024, 3, 10, 14, 30, 0, 0, time.Local))

	first, err := s.Save(dir, nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := s.Save(dir, nil)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if first == second || !strings.HasSuffix(second, "-1.md") {
		t.Fatalf("expected collision suffix, got %s and %s", first, second)
	}

	org := &recordingOrganizer{target: filepath.Join(dir, "2024", "03-March", "week-02", s.Filename())}
	final, err := s.Save(dir, org)
	if err != nil {
		t.Fatalf("save organized: %v", err)
	}
	if final != org.target || len(org.seen) != 1 {
		t.Fatalf("unexpected organized result %s (%v)", final, org.seen)
	}
	loaded, err := ReadFile(final)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if loaded.ID != s.ID {
		t.Fatalf("expected id %s, got %s", s.ID, loaded.ID)
	}
}

func TestPreview(t *testing.T) {
	s := &Saga{Content: "first\n\n  second  \nthird\nfourth"}
	if got := s.Preview(3); got != "first second" {
		t.Fatalf("unexpected preview %q", got)
	}
	long := &Saga{Content: strings.Repeat("x", 250)}
	if got := long.Preview(3); len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected long preview length %d", len(got))
	}
}
