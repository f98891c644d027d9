package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sagashark/internal/capture"
	"sagashark/internal/repo"
)

const hookMarker = "# sagashark post-commit hook"

const hookScript = `#!/bin/sh
` + hookMarker + `
# Capture significant commits as sagas. Never blocks the commit.
if command -v saga >/dev/null 2>&1; then
    saga hook post-commit || true
fi
`

// hookTimeout bounds a capture run from the post-commit hook so a slow AI
// endpoint never stalls git.
const hookTimeout = 90 * time.Second

func hookPath(root string) (string, error) {
	dir, err := repo.HooksDir(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "post-commit"), nil
}

func hookInstalled(root string) bool {
	path, err := hookPath(root)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(path)
	return err == nil && bytes.Contains(data, []byte(hookMarker))
}

func runInstallHooks(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("install-hooks", flag.ContinueOnError)
	fs.SetOutput(errOut)
	force := fs.Bool("force", false, "Replace an existing post-commit hook (a .backup copy is kept)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	path, err := hookPath(e.root)
	if err != nil {
		fmt.Fprintf(errOut, "install-hooks error: %v\n", err)
		return 1
	}
	if err := installHook(path, *force, os.Stdin, out); err != nil {
		fmt.Fprintf(errOut, "install-hooks error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✅ post-commit hook installed at %s\n", e.rel(path))
	return 0
}

// installHook writes the hook script. An unrelated existing hook is either
// replaced (force, keeping a backup), extended after confirmation on a
// terminal, or left alone with an error.
func installHook(path string, force bool, in *os.File, out io.Writer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return os.WriteFile(path, []byte(hookScript), 0o755)
	case err != nil:
		return err
	case bytes.Contains(existing, []byte(hookMarker)):
		fmt.Fprintln(out, "post-commit hook already installed")
		return nil
	case force:
		if err := os.WriteFile(path+".backup", existing, 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(hookScript), 0o755)
	}

	if !capture.IsTerminal(in) {
		return fmt.Errorf("a post-commit hook already exists at %s; rerun with --force to replace it", path)
	}
	if !confirm(in, out, "A post-commit hook already exists. Append the saga hook to it?") {
		return fmt.Errorf("left existing hook untouched")
	}
	body := strings.TrimRight(string(existing), "\n") + "\n\n" + strings.TrimPrefix(hookScript, "#!/bin/sh\n")
	return os.WriteFile(path, []byte(body), 0o755)
}

// confirm reads a single answer; anything but yes declines.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// runHook is invoked by git. It always exits 0 so a failed capture never
// looks like a failed commit.
func runHook(args []string, g globalFlags, out, errOut io.Writer) int {
	if len(args) != 1 || args[0] != "post-commit" {
		fmt.Fprintln(errOut, "usage: saga hook post-commit")
		return 0
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "saga: %v\n", err)
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	opts := chroniclerOptions{ctx: ctx, threshold: e.cfg.MinSignificance, out: io.Discard}
	if e.cfg.UseAI {
		opts.enhancer, _ = e.enhancer(ctx, false)
	}
	res, err := e.chronicler(opts).Capture(ctx, "HEAD")
	if err != nil {
		fmt.Fprintf(errOut, "saga: capture failed: %v\n", err)
		return 0
	}
	if res.Saga == nil {
		fmt.Fprintf(out, "saga: commit not significant enough for a saga (score: %s)\n", res.Score.Display())
		return 0
	}
	fmt.Fprintf(out, "saga: captured '%s' (%s, score %s)\n", res.Saga.Title, res.Saga.Type, res.Score.Display())
	writeEnhanceHint(out, res)
	return 0
}

// writeEnhanceHint points at saga enhance for high-value commits the hook
// could neither ask about nor enhance.
func writeEnhanceHint(out io.Writer, res capture.Outcome) {
	if res.Saga == nil || res.Enhanced || !res.Notes.Empty() {
		return
	}
	if !capture.ShouldPrompt(res.Score, res.Context.Message) {
		return
	}
	fmt.Fprintf(out, "saga: high-value commit detected! Run 'saga enhance %s' to add debugging details.\n", res.Saga.ID)
}
