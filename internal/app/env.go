package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sagashark/internal/capture"
	"sagashark/internal/config"
	"sagashark/internal/embed"
	"sagashark/internal/enhance"
	"sagashark/internal/logging"
	"sagashark/internal/organize"
	"sagashark/internal/pathutil"
	"sagashark/internal/patterns"
	"sagashark/internal/repo"
	"sagashark/internal/saga"
	"sagashark/internal/search"
	"sagashark/internal/significance"
	"sagashark/internal/store"
)

// env is what a repo-scoped command works against: the effective config,
// the repository and the output writers.
type env struct {
	cfg     config.Config
	repo    repo.Info
	root    string
	sagaDir string
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
}

// loadEnv resolves the repository containing the working directory and
// applies its .sagashark/config.json over the global config.
func loadEnv(g globalFlags, out, errOut io.Writer) (*env, error) {
	logger := logging.New(errOut, g.Verbose)
	cfg, err := config.Load(g.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	info, err := repo.Detect(cwd)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyRepoOverrides(&cfg, info.GitRoot); err != nil {
		logger.Warn("ignore repo config", "path", config.RepoConfigPath(info.GitRoot), "err", err)
	}
	return &env{
		cfg:     cfg,
		repo:    info,
		root:    info.GitRoot,
		sagaDir: config.SagaDir(info.GitRoot),
		out:     out,
		errOut:  errOut,
		logger:  logger,
	}, nil
}

func (e *env) provider() repo.Provider {
	return repo.NewGit(e.root)
}

func (e *env) extractor() *capture.Extractor {
	return e.extractorFor(e.provider())
}

func (e *env) extractorFor(p repo.Provider) *capture.Extractor {
	matcher := pathutil.NewMatcher(e.root, e.cfg.ExcludedPaths)
	return capture.NewExtractor(p, matcher, e.cfg.DiffMaxChars)
}

func (e *env) patterns() *patterns.Extractor {
	return patterns.NewExtractor(patterns.Load(e.root, e.logger), e.logger)
}

func (e *env) organizer() *organize.Organizer {
	return organize.New(e.sagaDir)
}

// saveOrganizer is nil when auto_organize is off so sagas stay flat.
func (e *env) saveOrganizer() saga.Organizer {
	if !e.cfg.AutoOrganize {
		return nil
	}
	return e.organizer()
}

func (e *env) textSearcher() *search.TextSearcher {
	return search.NewTextSearcher(e.sagaDir, e.logger)
}

func (e *env) entries() ([]search.Entry, error) {
	return search.Scan(e.sagaDir, e.logger)
}

// findSaga resolves an id, path or filename fragment.
func (e *env) findSaga(ref string) (search.Entry, error) {
	entries, err := e.entries()
	if err != nil {
		return search.Entry{}, err
	}
	entry, ok := search.Find(entries, ref)
	if !ok {
		return search.Entry{}, fmt.Errorf("saga not found: %s", ref)
	}
	return entry, nil
}

// openIndex opens the per-repo index and resolves embeddings once. The
// returned close func must be called.
func (e *env) openIndex(ctx context.Context) (*search.Index, func(), error) {
	st, err := store.Open(e.cfg.RepoDBPath(e.repo.ID))
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	provider, status := embed.Resolve(ctx, e.cfg)
	if !status.Enabled {
		e.logger.Debug("embeddings unavailable", "provider", status.Provider, "err", status.Error)
	}
	ix := search.NewIndex(st, provider, status, e.cfg.EmbeddingMinSimilarity, e.logger)
	return ix, func() { st.Close() }, nil
}

// enhancer resolves the AI enhancer. force turns it on regardless of use_ai.
func (e *env) enhancer(ctx context.Context, force bool) (enhance.Enhancer, enhance.Status) {
	cfg := e.cfg
	if force {
		cfg.UseAI = true
	}
	enh, status := enhance.Resolve(ctx, cfg, e.logger)
	if !status.Enabled {
		e.logger.Debug("ai enhancement unavailable", "provider", status.Provider, "err", status.Error)
		return nil, status
	}
	return enh, status
}

func (e *env) promptTimeout() time.Duration {
	if e.cfg.PromptTimeoutSeconds <= 0 {
		return capture.DefaultPromptTimeout
	}
	return time.Duration(e.cfg.PromptTimeoutSeconds) * time.Second
}

type chroniclerOptions struct {
	// ctx stops in-flight git calls; nil means no cancellation beyond the
	// per-call timeout.
	ctx       context.Context
	threshold float64
	enhancer  enhance.Enhancer
	prompter  capture.Prompter
	out       io.Writer
}

func (e *env) chronicler(opts chroniclerOptions) *capture.Chronicler {
	out := opts.out
	if out == nil {
		out = e.out
	}
	git := repo.NewGit(e.root)
	if opts.ctx != nil {
		git = git.WithContext(opts.ctx)
	}
	return capture.NewChronicler(capture.Options{
		Root:      e.root,
		SagaDir:   e.sagaDir,
		Provider:  git,
		Extractor: e.extractorFor(git),
		Scorer:    significance.NewScorer(opts.threshold),
		Builder:   capture.NewBuilder(e.patterns()),
		Enhancer:  opts.enhancer,
		Organizer: e.saveOrganizer(),
		Prompter:  opts.prompter,
		Out:       out,
		Logger:    e.logger,
	})
}

// rel shortens path to be relative to the repository root for display.
func (e *env) rel(path string) string {
	if r, err := filepath.Rel(e.root, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

func envError(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "repo detection error: %v\n", err)
	return 1
}
