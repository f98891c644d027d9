package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"sagashark/internal/enhance"
	"sagashark/internal/logging"
	"sagashark/internal/repo"
	"sagashark/internal/saga"
	"sagashark/internal/significance"
)

// Options wires a Chronicler. Enhancer, Organizer and Prompter are optional.
type Options struct {
	Root      string
	SagaDir   string
	Provider  repo.Provider
	Extractor *Extractor
	Scorer    *significance.Scorer
	Builder   *Builder
	Enhancer  enhance.Enhancer
	Organizer saga.Organizer
	Prompter  Prompter
	Out       io.Writer
	Logger    *slog.Logger
}

// Chronicler runs the capture pipeline: context, score, content, save.
type Chronicler struct {
	opts Options
}

func NewChronicler(opts Options) *Chronicler {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Scorer == nil {
		opts.Scorer = significance.NewScorer(significance.DefaultThreshold)
	}
	if opts.Builder == nil {
		opts.Builder = NewBuilder(nil)
	}
	return &Chronicler{opts: opts}
}

// Outcome describes one capture attempt. Saga is nil when the commit was
// not significant.
type Outcome struct {
	Context  significance.CommitContext
	Score    significance.Result
	Saga     *saga.Saga
	Path     string
	Enhanced bool
	Notes    Notes
}

// Capture scores ref and, when significant, writes a saga and consumes the
// pending session file.
func (c *Chronicler) Capture(ctx context.Context, ref string) (Outcome, error) {
	return c.capture(ctx, ref, c.opts.Prompter)
}

func (c *Chronicler) capture(ctx context.Context, ref string, prompter Prompter) (Outcome, error) {
	logger := c.opts.Logger
	session, err := LoadSession(c.opts.Root)
	if err != nil {
		logger.Warn("ignore session context", "err", err)
		session = nil
	}

	cc, err := c.opts.Extractor.Context(ref, session)
	if err != nil {
		return Outcome{}, err
	}
	score := c.opts.Scorer.Score(cc)
	out := Outcome{Context: cc, Score: score}
	if !score.IsSignificant {
		fmt.Fprintf(c.opts.Out, "Commit not significant enough for saga (score: %s)\n", score.Display())
		return out, nil
	}

	typ := score.SuggestedType
	if prompter != nil && ShouldPrompt(score, cc.Message) {
		out.Notes = prompter.Ask(ctx)
		if strings.TrimSpace(out.Notes.RootCause) != "" {
			typ = saga.TypeDebugging
			score.SuggestedType = typ
		}
	}

	var enh *enhance.Result
	if c.opts.Enhancer != nil && enhance.Supports(typ) {
		res, err := c.opts.Enhancer.Enhance(ctx, enhance.Request{
			Type:           typ,
			CommitMessage:  cc.Message,
			FilesChanged:   cc.FilesChanged,
			DiffContent:    cc.DiffContent,
			SessionContext: session.Summary(),
		})
		switch {
		case err != nil:
			logger.Debug("ai enhancement failed, using heuristic layout", "err", err)
		case !res.Usable():
			logger.Debug("ai enhancement returned no content")
		default:
			enh = &res
			out.Enhanced = true
		}
	}

	content := out.Notes.Markdown() + c.opts.Builder.Build(cc, score, session, enh)
	title := Title(cc.Message)
	if title == "" {
		title = "Commit " + shortHash(cc.CommitID)
	}
	s := saga.New(title, content, typ, cc.Timestamp)
	s.Branch = cc.Branch
	s.Tags = Tags(cc, typ)
	s.FilesChanged = cc.FilesChanged
	s.CommitID = cc.CommitID

	path, err := s.Save(c.opts.SagaDir, c.opts.Organizer)
	if err != nil {
		return out, err
	}
	out.Saga = s
	out.Path = path
	out.Score = score
	if session != nil {
		if err := ClearSession(c.opts.Root); err != nil {
			logger.Warn("clear session context", "err", err)
		}
	}

	fmt.Fprintf(c.opts.Out, "✨ Created saga: %s\n", s.Title)
	fmt.Fprintf(c.opts.Out, "   Score: %s\n", score.Display())
	fmt.Fprintf(c.opts.Out, "   Type: %s\n", s.Type)
	fmt.Fprintf(c.opts.Out, "   Factors: %s\n", strings.Join(score.FactorStrings(), ", "))
	return out, nil
}

type MonitorResult struct {
	Commits  int       `json:"commits"`
	Captured int       `json:"captured"`
	Outcomes []Outcome `json:"-"`
}

// Monitor captures every commit in since..HEAD, oldest first. Interactive
// prompts are skipped. With dryRun nothing is written; each commit's score
// is printed instead.
func (c *Chronicler) Monitor(ctx context.Context, since string, dryRun bool) (MonitorResult, error) {
	var res MonitorResult
	commits, err := c.opts.Provider.RevList(since)
	if err != nil {
		return res, fmt.Errorf("list commits: %w", err)
	}
	res.Commits = len(commits)
	if len(commits) == 0 {
		fmt.Fprintln(c.opts.Out, "No commits to analyze")
		return res, nil
	}
	fmt.Fprintf(c.opts.Out, "Analyzing %d commits...\n", len(commits))
	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if dryRun {
			cc, err := c.opts.Extractor.Context(commit, nil)
			if err != nil {
				c.opts.Logger.Warn("skip commit", "commit", commit, "err", err)
				continue
			}
			score := c.opts.Scorer.Score(cc)
			verdict := "skip"
			if score.IsSignificant {
				verdict = "saga"
				res.Captured++
			}
			fmt.Fprintf(c.opts.Out, "  %s %s %-5s %-12s %s\n", shortHash(commit), score.Display(), verdict, score.SuggestedType, firstLine(cc.Message))
			continue
		}
		out, err := c.capture(ctx, commit, nil)
		if err != nil {
			if errors.Is(err, repo.ErrNoCommit) {
				c.opts.Logger.Warn("skip commit", "commit", commit, "err", err)
				continue
			}
			return res, err
		}
		res.Outcomes = append(res.Outcomes, out)
		if out.Saga != nil {
			res.Captured++
		}
	}
	if dryRun {
		fmt.Fprintf(c.opts.Out, "\n📚 Would capture %d sagas from %d commits\n", res.Captured, res.Commits)
	} else {
		fmt.Fprintf(c.opts.Out, "\n📚 Captured %d sagas from %d commits\n", res.Captured, res.Commits)
	}
	return res, nil
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
