package capture

import (
	"fmt"
	"strings"

	"sagashark/internal/pathutil"
	"sagashark/internal/repo"
	"sagashark/internal/saga"
	"sagashark/internal/significance"
)

// Extractor turns a commit reference into a CommitContext.
type Extractor struct {
	provider     repo.Provider
	matcher      pathutil.Matcher
	diffMaxChars int
}

func NewExtractor(provider repo.Provider, matcher pathutil.Matcher, diffMaxChars int) *Extractor {
	return &Extractor{provider: provider, matcher: matcher, diffMaxChars: diffMaxChars}
}

// Context reads commit metadata, the filtered file list, line counts and a
// bounded diff. session may be nil.
func (e *Extractor) Context(ref string, session *Session) (significance.CommitContext, error) {
	info, err := e.provider.Commit(ref)
	if err != nil {
		return significance.CommitContext{}, err
	}
	files, err := e.provider.ChangedFiles(info.Hash)
	if err != nil {
		return significance.CommitContext{}, fmt.Errorf("changed files: %w", err)
	}
	added, deleted, err := e.provider.DiffStat(info.Hash)
	if err != nil {
		return significance.CommitContext{}, fmt.Errorf("diff stat: %w", err)
	}
	diff, err := e.provider.Diff(info.Hash, e.diffMaxChars)
	if err != nil {
		return significance.CommitContext{}, fmt.Errorf("diff: %w", err)
	}
	branch, err := e.provider.CurrentBranch()
	if err != nil || strings.TrimSpace(branch) == "" {
		branch = saga.DefaultBranch
	}

	message := info.Message()
	return significance.CommitContext{
		CommitID:        info.Hash,
		Message:         message,
		FilesChanged:    e.matcher.Filter(files),
		LinesAdded:      max(added, 0),
		LinesDeleted:    max(deleted, 0),
		Branch:          branch,
		Author:          info.Author,
		Timestamp:       info.Timestamp,
		DiffContent:     diff,
		IsMerge:         info.Parents > 1 || strings.Contains(message, "Merge"),
		IsRevert:        strings.Contains(strings.ToLower(message), "revert"),
		SessionDuration: session.Duration(),
	}, nil
}
