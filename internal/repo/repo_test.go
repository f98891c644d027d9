package repo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDetect(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Detect(tmpDir); !errors.Is(err, ErrNotGitRepository) {
		t.Fatalf("expected ErrNotGitRepository for plain dir, got %v", err)
	}

	setupGit(t, tmpDir)
	info, err := Detect(tmpDir)
	if err != nil {
		t.Fatalf("Detect git failed: %v", err)
	}
	if info.Branch != "main" {
		t.Errorf("expected branch main, got %q", info.Branch)
	}
	if !strings.HasPrefix(info.ID, "r_") || len(info.ID) != 10 {
		t.Errorf("unexpected repo id %q", info.ID)
	}

	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	subInfo, err := Detect(subDir)
	if err != nil {
		t.Fatalf("Detect subdir failed: %v", err)
	}
	if subInfo.GitRoot != info.GitRoot {
		t.Errorf("Expected GitRoot %s, got %s", info.GitRoot, subInfo.GitRoot)
	}
	if subInfo.ID != info.ID {
		t.Errorf("expected stable id, got %s vs %s", subInfo.ID, info.ID)
	}
}

func TestGitProviderCommit(t *testing.T) {
	tmpDir := t.TempDir()
	setupGit(t, tmpDir)

	content := strings.Repeat("line\n", 12)
	writeFile(t, tmpDir, "db/migration.sql", content)
	runGit(t, tmpDir, "add", ".")
	runGit(t, tmpDir, "commit", "-q", "-m", "fix: handle timeout\n\nRetry the connection twice.")

	g := NewGit(tmpDir)
	info, err := g.Commit("HEAD")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if info.Subject != "fix: handle timeout" {
		t.Errorf("unexpected subject %q", info.Subject)
	}
	if info.Message() != "fix: handle timeout\nRetry the connection twice." {
		t.Errorf("unexpected message %q", info.Message())
	}
	if info.Author != "Test" || info.Parents != 1 {
		t.Errorf("unexpected author/parents: %s %d", info.Author, info.Parents)
	}

	files, err := g.ChangedFiles("HEAD")
	if err != nil {
		t.Fatalf("changed files: %v", err)
	}
	if len(files) != 1 || files[0] != "db/migration.sql" {
		t.Errorf("unexpected files %v", files)
	}

	added, deleted, err := g.DiffStat("HEAD")
	if err != nil {
		t.Fatalf("diffstat: %v", err)
	}
	if added != 12 || deleted != 0 {
		t.Errorf("expected 12/0, got %d/%d", added, deleted)
	}

	diff, err := g.Diff("HEAD", 40)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len([]rune(diff)) != 40 || !strings.HasPrefix(diff, "diff --git") {
		t.Errorf("expected truncated diff, got %q", diff)
	}

	branch, err := g.CurrentBranch()
	if err != nil || branch != "main" {
		t.Errorf("expected main branch, got %q (%v)", branch, err)
	}

	if _, err := g.Commit("does-not-exist"); !errors.Is(err, ErrNoCommit) {
		t.Errorf("expected ErrNoCommit, got %v", err)
	}
}

func TestGitProviderRootCommitAndRevList(t *testing.T) {
	tmpDir := t.TempDir()
	setupGit(t, tmpDir)

	g := NewGit(tmpDir)
	files, err := g.ChangedFiles("HEAD")
	if err != nil {
		t.Fatalf("changed files: %v", err)
	}
	if len(files) != 1 || files[0] != "README.md" {
		t.Errorf("expected root commit files [README.md], got %v", files)
	}

	makeCommit(t, tmpDir, "a.txt", "a")
	makeCommit(t, tmpDir, "b.txt", "b")
	revs, err := g.RevList("HEAD~2")
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %v", revs)
	}
	last, err := g.Commit(revs[1])
	if err != nil {
		t.Fatal(err)
	}
	if last.Subject != "add b.txt" {
		t.Errorf("expected oldest-first order, got %q last", last.Subject)
	}

	writeFile(t, tmpDir, "dirty.txt", "x")
	modified, err := g.ModifiedFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(modified) != 1 || modified[0] != "dirty.txt" {
		t.Errorf("unexpected modified files %v", modified)
	}
}

func TestGitProviderDetachedBranch(t *testing.T) {
	tmpDir := t.TempDir()
	setupGit(t, tmpDir)
	runGit(t, tmpDir, "checkout", "-q", "--detach", "HEAD")

	branch, err := NewGit(tmpDir).CurrentBranch()
	if err != nil {
		t.Fatalf("current branch: %v", err)
	}
	if branch != "HEAD" {
		t.Errorf("expected HEAD for detached state, got %q", branch)
	}
}

func TestGitProviderHonorsContext(t *testing.T) {
	tmpDir := t.TempDir()
	setupGit(t, tmpDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGit(tmpDir).WithContext(ctx)
	if _, err := g.Commit("HEAD"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled commit lookup, got %v", err)
	}
	_, err := g.ChangedFiles("HEAD")
	var gitErr *GitError
	if !errors.As(err, &gitErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled GitError, got %v", err)
	}

	// The original provider is unaffected.
	if _, err := NewGit(tmpDir).Commit("HEAD"); err != nil {
		t.Fatalf("commit with background context: %v", err)
	}
}

func TestGitCommandTimeout(t *testing.T) {
	tmpDir := t.TempDir()
	setupGit(t, tmpDir)

	prev := CommandTimeout
	CommandTimeout = time.Nanosecond
	t.Cleanup(func() { CommandTimeout = prev })

	if _, err := NewGit(tmpDir).Diff("HEAD", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTruncateChars(t *testing.T) {
	if got := TruncateChars("héllo", 2); got != "hé" {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
	if got := TruncateChars("short", 0); got != "short" {
		t.Errorf("expected no limit, got %q", got)
	}
}

// Helpers

func setupGit(t *testing.T, dir string) {
	runGit(t, dir, "init", "-q", "--initial-branch=main")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "user.email", "test@example.com")
	makeCommit(t, dir, "README.md", "init")
}

func makeCommit(t *testing.T, dir, file, content string) {
	writeFile(t, dir, file, content)
	runGit(t, dir, "add", file)
	runGit(t, dir, "commit", "-m", "add "+file, "-q")
}

func writeFile(t *testing.T, dir, file, content string) {
	path := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func TestHooksDir(t *testing.T) {
	dir := t.TempDir()
	setupGit(t, dir)
	root, err := Detect(dir)
	if err != nil {
		t.Fatal(err)
	}
	hooks, err := HooksDir(root.GitRoot)
	if err != nil {
		t.Fatalf("hooks dir: %v", err)
	}
	if filepath.Base(hooks) != "hooks" || !filepath.IsAbs(hooks) {
		t.Fatalf("unexpected hooks dir %q", hooks)
	}
}
