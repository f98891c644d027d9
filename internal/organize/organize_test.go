package organize

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSaga(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("---\nid: x\n---\n\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWeekOfMonth(t *testing.T) {
	cases := map[int]int{1: 1, 7: 1, 8: 2, 14: 2, 15: 3, 28: 4, 29: 5, 31: 5}
	for day, want := range cases {
		d := time.Date(2024, 3, day, 12, 0, 0, 0, time.Local)
		if got := WeekOfMonth(d); got != want {
			t.Errorf("WeekOfMonth(day %d) = %d, want %d", day, got, want)
		}
	}
}

func TestOrganizedPathIdempotent(t *testing.T) {
	root := t.TempDir()
	o := New(root)
	path := filepath.Join(root, "2024-03-10-1430-fix-login.md")
	want := filepath.Join(root, "2024", "03-March", "week-02", "2024-03-10-1430-fix-login.md")
	got := o.OrganizedPath(path, time.Time{})
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if again := o.OrganizedPath(got, time.Time{}); again != got {
		t.Fatalf("expected idempotent path, got %s", again)
	}

	undated := filepath.Join(root, "2023", "12-December", "week-01", "notes.md")
	writeSaga(t, undated)
	if got := o.OrganizedPath(undated, time.Time{}); got != undated {
		t.Fatalf("expected organized undated file to stay, got %s", got)
	}
}

func TestOrganizeCollision(t *testing.T) {
	root := t.TempDir()
	o := New(root)
	name := "2024-03-10-1430-fix-login.md"
	writeSaga(t, filepath.Join(root, "2024", "03-March", "week-02", name))

	stray := filepath.Join(root, name)
	writeSaga(t, stray)
	got, err := o.Organize(stray, time.Time{})
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if filepath.Base(got) != "2024-03-10-1430-fix-login-1.md" {
		t.Fatalf("expected collision suffix, got %s", got)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatalf("expected stray file moved, stat err %v", err)
	}
	same, err := o.Organize(got, time.Time{})
	if err != nil || same != got {
		t.Fatalf("expected organized file left alone, got %s (%v)", same, err)
	}
}

func TestOrganizeAllAndCleanup(t *testing.T) {
	root := t.TempDir()
	o := New(root)
	rootFile := filepath.Join(root, "2024-01-05-0900-add-export.md")
	branchFile := filepath.Join(root, "feature-x", "nested", "2024-02-20-1000-tune-cache.md")
	organized := filepath.Join(root, "2023", "11-November", "week-01", "2023-11-02-0800-old.md")
	for _, p := range []string{rootFile, branchFile, organized} {
		writeSaga(t, p)
	}

	moves, err := o.OrganizeAll(true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected 2 planned moves, got %+v", moves)
	}
	if _, err := os.Stat(rootFile); err != nil {
		t.Fatal("dry run must not move files")
	}

	moves, err = o.OrganizeAll(false)
	if err != nil || len(moves) != 2 {
		t.Fatalf("organize all: %+v (%v)", moves, err)
	}
	for _, m := range moves {
		if _, err := os.Stat(m.To); err != nil {
			t.Errorf("expected %s to exist: %v", m.To, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "2024", "02-February", "week-03", "2024-02-20-1000-tune-cache.md")); err != nil {
		t.Errorf("expected branch file organized: %v", err)
	}

	removed, err := o.CleanupEmptyDirs()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected feature-x and nested removed, got %d", removed)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatal("root must never be removed")
	}
}

func TestStatsAndShouldReorganize(t *testing.T) {
	root := t.TempDir()
	o := New(root)
	o.now = func() time.Time { return time.Date(2024, 3, 12, 0, 0, 0, 0, time.Local) }
	writeSaga(t, filepath.Join(root, "2024", "03-March", "week-02", "2024-03-10-1430-a.md"))
	writeSaga(t, filepath.Join(root, "2024", "01-January", "week-01", "2024-01-02-1430-b.md"))
	writeSaga(t, filepath.Join(root, "2024-03-11-0900-c.md"))

	stats, err := o.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Organized != 2 || stats.Unorganized != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.ByYear["2024"] != 2 || stats.ByMonth["2024/03-March"] != 1 || stats.RecentWeek != 1 {
		t.Fatalf("unexpected buckets %+v", stats)
	}
	should, err := o.ShouldReorganize()
	if err != nil || !should {
		t.Fatalf("expected reorganize suggestion, got %v (%v)", should, err)
	}

	empty, err := New(filepath.Join(root, "missing")).ShouldReorganize()
	if err != nil || empty {
		t.Fatalf("expected no suggestion for missing dir, got %v (%v)", empty, err)
	}
}

func TestAutoCleanup(t *testing.T) {
	cases := []struct {
		name    string
		files   []string
		ran     bool
		moves   int
		removed int
	}{
		{
			name:  "mostly organized",
			files: []string{"2024/03-March/week-02/2024-03-10-1430-a.md", "2024/01-January/week-01/2024-01-02-1430-b.md", "2024/01-January/week-02/2024-01-09-1430-c.md", "2024/01-January/week-03/2024-01-16-1430-d.md", "2024/02-February/week-01/2024-02-01-1430-e.md", "2024-03-11-0900-f.md"},
			ran:   false,
		},
		{
			name:    "drifted",
			files:   []string{"2024/03-March/week-02/2024-03-10-1430-a.md", "2024-03-11-0900-b.md", "feature-x/2024-02-20-1000-c.md"},
			ran:     true,
			moves:   2,
			removed: 1,
		},
		{name: "empty", ran: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tc.files {
				writeSaga(t, filepath.Join(root, filepath.FromSlash(f)))
			}
			res, ran, err := New(root).AutoCleanup()
			if err != nil {
				t.Fatalf("auto cleanup: %v", err)
			}
			if ran != tc.ran || len(res.Moves) != tc.moves || res.Removed != tc.removed {
				t.Fatalf("got ran=%v moves=%d removed=%d, want %v %d %d", ran, len(res.Moves), res.Removed, tc.ran, tc.moves, tc.removed)
			}
			if ran {
				if should, _ := New(root).ShouldReorganize(); should {
					t.Fatal("expected hierarchy settled after cleanup")
				}
			}
		})
	}
}
