package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"sagashark/internal/pathutil"
)

// CommandTimeout bounds every git subprocess.
var CommandTimeout = 30 * time.Second

var (
	ErrNotGitRepository = errors.New("not a git repository")
	ErrNoCommit         = errors.New("commit not found")
)

// GitError is returned when a git subprocess exits non-zero.
type GitError struct {
	Args   []string
	Err    error
	Stderr string
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}

type Info struct {
	ID      string
	GitRoot string
	Head    string
	Branch  string
	Origin  string
}

// Detect resolves the git repository containing cwd.
func Detect(cwd string) (Info, error) {
	rootOut, err := gitOutput(context.Background(), cwd, "rev-parse", "--show-toplevel")
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrNotGitRepository, cwd)
	}
	root := pathutil.Canonical(rootOut)
	if strings.TrimSpace(root) == "" {
		return Info{}, fmt.Errorf("unexpected rev-parse output")
	}

	// Best-effort: new repos may have an unborn HEAD.
	headOut, _ := gitOutput(context.Background(), root, "rev-parse", "HEAD")
	branchOut, _ := gitOutput(context.Background(), root, "symbolic-ref", "--short", "HEAD")
	info := Info{
		GitRoot: root,
		Head:    strings.TrimSpace(headOut),
		Branch:  strings.TrimSpace(branchOut),
	}

	origin, _ := gitOutput(context.Background(), root, "config", "--get", "remote.origin.url")
	info.Origin = strings.TrimSpace(origin)
	firstCommit := ""
	if info.Origin == "" {
		commit, _ := gitOutput(context.Background(), root, "rev-list", "--max-parents=0", "HEAD")
		firstCommit = strings.TrimSpace(firstLine(commit))
	}
	info.ID = computeID(info, firstCommit)
	return info, nil
}

// HooksDir is the directory git runs hooks from. It honors core.hooksPath
// and linked worktrees.
func HooksDir(root string) (string, error) {
	out, err := gitOutput(context.Background(), root, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if dir == "" {
		return "", fmt.Errorf("empty hooks path")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir, nil
}

func computeID(info Info, firstCommit string) string {
	if info.Origin != "" {
		return hashID("r_", info.Origin)
	}
	if firstCommit != "" {
		return hashID("r_", info.GitRoot+":"+firstCommit)
	}
	return hashID("p_", info.GitRoot)
}

func hashID(prefix, input string) string {
	h := sha256.Sum256([]byte(input))
	return prefix + hex.EncodeToString(h[:])[:8]
}

func gitOutput(ctx context.Context, repoRoot string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoRoot}, args...)...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &GitError{Args: args, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.String(), nil
}

func splitLines(output string) []string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func firstLine(output string) string {
	lines := splitLines(output)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
