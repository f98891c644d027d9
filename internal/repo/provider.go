package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// CommitInfo is the metadata of a single commit.
type CommitInfo struct {
	Hash      string
	Author    string
	Email     string
	Timestamp time.Time
	Subject   string
	Body      string
	Parents   int
}

// Message returns subject and body joined the way git shows them.
func (c CommitInfo) Message() string {
	body := strings.TrimSpace(c.Body)
	if body == "" {
		return strings.TrimSpace(c.Subject)
	}
	return strings.TrimSpace(c.Subject + "\n" + body)
}

// Provider is the read-only view of a repository the capture pipeline needs.
type Provider interface {
	Root() string
	Commit(ref string) (CommitInfo, error)
	ChangedFiles(ref string) ([]string, error)
	DiffStat(ref string) (added int, deleted int, err error)
	Diff(ref string, maxChars int) (string, error)
	CurrentBranch() (string, error)
	ModifiedFiles() ([]string, error)
	RevList(since string) ([]string, error)
}

// Git implements Provider by shelling out to the git binary. Each call is
// bounded by CommandTimeout and by the context set with WithContext.
type Git struct {
	root string
	ctx  context.Context
}

func NewGit(root string) *Git {
	return &Git{root: root, ctx: context.Background()}
}

// WithContext returns a copy of g whose git calls stop when ctx is done.
func (g *Git) WithContext(ctx context.Context) *Git {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Git{root: g.root, ctx: ctx}
}

func (g *Git) Root() string {
	return g.root
}

const commitFormat = "%H%x00%an%x00%ae%x00%at%x00%P%x00%s%x00%b"

func (g *Git) Commit(ref string) (CommitInfo, error) {
	ref = normalizeRef(ref)
	out, err := gitOutput(g.ctx, g.root, "show", "-s", "--format="+commitFormat, ref)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("%w: %s: %w", ErrNoCommit, ref, err)
	}
	fields := strings.SplitN(strings.TrimRight(out, "\n"), "\x00", 7)
	if len(fields) < 6 {
		return CommitInfo{}, fmt.Errorf("%w: unexpected git show output for %s", ErrNoCommit, ref)
	}
	unix, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("parse commit time for %s: %w", ref, err)
	}
	info := CommitInfo{
		Hash:      strings.TrimSpace(fields[0]),
		Author:    fields[1],
		Email:     fields[2],
		Timestamp: time.Unix(unix, 0),
		Parents:   len(strings.Fields(fields[4])),
		Subject:   fields[5],
	}
	if len(fields) == 7 {
		info.Body = strings.TrimSpace(fields[6])
	}
	return info, nil
}

func (g *Git) ChangedFiles(ref string) ([]string, error) {
	out, err := gitOutput(g.ctx, g.root, "diff-tree", "--root", "--no-commit-id", "--name-only", "-r", normalizeRef(ref))
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// DiffStat sums --numstat; binary files count as zero.
func (g *Git) DiffStat(ref string) (int, int, error) {
	out, err := gitOutput(g.ctx, g.root, "show", "--numstat", "--format=", normalizeRef(ref))
	if err != nil {
		return 0, 0, err
	}
	added, deleted := 0, 0
	for _, line := range splitLines(out) {
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		if n, err := strconv.Atoi(parts[0]); err == nil {
			added += n
		}
		if n, err := strconv.Atoi(parts[1]); err == nil {
			deleted += n
		}
	}
	return added, deleted, nil
}

func (g *Git) Diff(ref string, maxChars int) (string, error) {
	out, err := gitOutput(g.ctx, g.root, "show", "--format=", "--no-color", normalizeRef(ref))
	if err != nil {
		return "", err
	}
	return TruncateChars(strings.TrimLeft(out, "\n"), maxChars), nil
}

func (g *Git) CurrentBranch() (string, error) {
	out, err := gitOutput(g.ctx, g.root, "symbolic-ref", "--short", "HEAD")
	if err == nil {
		return strings.TrimSpace(out), nil
	}
	// Detached HEAD still resolves to a commit.
	if _, headErr := gitOutput(g.ctx, g.root, "rev-parse", "--verify", "HEAD"); headErr == nil {
		return "HEAD", nil
	}
	return "", err
}

func (g *Git) ModifiedFiles() ([]string, error) {
	out, err := gitOutput(g.ctx, g.root, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		files = append(files, strings.Trim(path, "\""))
	}
	return files, nil
}

func (g *Git) RevList(since string) ([]string, error) {
	since = strings.TrimSpace(since)
	if since == "" {
		since = "HEAD~10"
	}
	out, err := gitOutput(g.ctx, g.root, "rev-list", "--reverse", since+"..HEAD")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "HEAD"
	}
	return ref
}

// TruncateChars caps text at maxChars runes; maxChars <= 0 means no limit.
func TruncateChars(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
