package pathutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCanonicalMissingSuffix(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "a", "b.md")
	got := Canonical(missing)
	want := filepath.Join(Canonical(root), "a", "b.md")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDepth(t *testing.T) {
	root := t.TempDir()
	cases := []struct {
		path string
		want int
	}{
		{root, 0},
		{filepath.Join(root, "x.md"), 1},
		{filepath.Join(root, "2024", "03-March", "week-02", "x.md"), 4},
		{filepath.Dir(root), -1},
	}
	for _, tc := range cases {
		if got := Depth(root, tc.path); got != tc.want {
			t.Errorf("Depth(%s) = %d, want %d", tc.path, got, tc.want)
		}
	}
}

func TestMatcherFilter(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("*.lock\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewMatcher(root, []string{"node_modules", " ", "__pycache__"})
	got := m.Filter([]string{
		"src/app.js",
		"node_modules/left-pad/index.js",
		"pkg/__pycache__/mod.pyc",
		"yarn.lock",
		"README.md",
	})
	want := []string{"src/app.js", "README.md"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if m.Matches("") {
		t.Fatal("empty path should never match")
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2024-03-10-1430-fix-login.md")
	if got := UniquePath(path); got != path {
		t.Fatalf("expected free path unchanged, got %s", got)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	first := UniquePath(path)
	if filepath.Base(first) != "2024-03-10-1430-fix-login-1.md" {
		t.Fatalf("unexpected first collision name %s", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(UniquePath(path)); got != "2024-03-10-1430-fix-login-2.md" {
		t.Fatalf("unexpected second collision name %s", got)
	}
}
