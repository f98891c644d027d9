package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sagashark/internal/capture"
	"sagashark/internal/config"
	"sagashark/internal/patterns"
)

func runInit(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}

	if err := os.MkdirAll(e.sagaDir, 0o755); err != nil {
		fmt.Fprintf(errOut, "init error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "📁 Saga directory: %s\n", e.rel(e.sagaDir))

	examplePath := filepath.Join(e.root, config.RepoDirName, patterns.ExampleFileName)
	if !fileExists(examplePath) {
		if _, err := patterns.WriteExample(e.root); err != nil {
			fmt.Fprintf(errOut, "init error: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "📝 Pattern example: %s\n", e.rel(examplePath))
	}

	if _, ok, err := config.LoadRepoConfig(e.root); err == nil && !ok {
		repoCfg := config.RepoConfig{
			MinSignificance: &e.cfg.MinSignificance,
			AutoOrganize:    &e.cfg.AutoOrganize,
			Interactive:     &e.cfg.Interactive,
		}
		if err := config.WriteRepoConfig(e.root, repoCfg); err != nil {
			fmt.Fprintf(errOut, "init error: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "⚙️  Repo config: %s\n", e.rel(config.RepoConfigPath(e.root)))
	} else if err != nil {
		e.logger.Warn("existing repo config is invalid", "err", err)
	}

	added, err := ensureGitignore(e.root, capture.SessionFileName)
	if err != nil {
		fmt.Fprintf(errOut, "init error: %v\n", err)
		return 1
	}
	if added {
		fmt.Fprintf(out, "🙈 Added %s to .gitignore\n", capture.SessionFileName)
	}

	fmt.Fprintln(out, "\n✅ sagashark initialized")
	if !hookInstalled(e.root) {
		fmt.Fprintln(out, "Next: run `saga install-hooks` to capture sagas after every commit")
	}
	return 0
}

// ensureGitignore appends entry to the repository .gitignore unless a line
// already matches it exactly.
func ensureGitignore(root, entry string) (bool, error) {
	path := filepath.Join(root, ".gitignore")
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return false, err
	default:
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == entry || line == "/"+entry {
				f.Close()
				return false, nil
			}
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return false, err
		}
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(entry + "\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
