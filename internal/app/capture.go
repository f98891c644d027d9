package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"sagashark/internal/capture"
	"sagashark/internal/enhance"
	"sagashark/internal/pathutil"
	"sagashark/internal/saga"
	"sagashark/internal/significance"
)

func runCapture(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(errOut)
	force := fs.Bool("force", false, "Capture even when the commit scores below the threshold")
	noInteractive := fs.Bool("no-interactive", false, "Never prompt for developer notes")
	useAI := fs.Bool("ai", false, "Enhance the saga with the configured AI model")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{
		"force":          {},
		"no-interactive": {},
		"ai":             {},
	})
	if err != nil {
		fmt.Fprintf(errOut, "capture error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) > 1 {
		fmt.Fprintln(errOut, "usage: saga capture [ref] [--force] [--no-interactive] [--ai]")
		return 2
	}
	ref := "HEAD"
	if len(positional) == 1 {
		ref = positional[0]
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := chroniclerOptions{ctx: ctx, threshold: e.cfg.MinSignificance}
	if *force {
		opts.threshold = 0
	}
	if e.cfg.UseAI || *useAI {
		opts.enhancer, _ = e.enhancer(ctx, true)
	}
	if e.cfg.Interactive && !*noInteractive && capture.IsTerminal(os.Stdin) {
		opts.prompter = capture.NewTerminalPrompter(os.Stdin, out, e.promptTimeout())
	}

	res, err := e.chronicler(opts).Capture(ctx, ref)
	if err != nil {
		fmt.Fprintf(errOut, "capture error: %v\n", err)
		return 1
	}
	if res.Saga != nil {
		fmt.Fprintf(out, "   Path: %s\n", e.rel(res.Path))
		if res.Enhanced {
			fmt.Fprintln(out, "   Enhanced with AI")
		}
	}
	return 0
}

type scoreOutput struct {
	Commit    string              `json:"commit"`
	Message   string              `json:"message"`
	Threshold float64             `json:"threshold"`
	Result    significance.Result `json:"result"`
}

func runScore(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{"json": {}})
	if err != nil {
		fmt.Fprintf(errOut, "score error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) > 1 {
		fmt.Fprintln(errOut, "usage: saga score [ref] [--json]")
		return 2
	}
	ref := "HEAD"
	if len(positional) == 1 {
		ref = positional[0]
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	cc, result, err := scoreRef(e, ref)
	if err != nil {
		fmt.Fprintf(errOut, "score error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return writeJSON(out, errOut, scoreOutput{
			Commit:    cc.CommitID,
			Message:   capture.Title(cc.Message),
			Threshold: e.cfg.MinSignificance,
			Result:    result,
		})
	}
	writeScore(out, cc, result, e.cfg.MinSignificance)
	return 0
}

// scoreRef builds the commit context for ref, including any pending
// session, and scores it against the configured threshold.
func scoreRef(e *env, ref string) (significance.CommitContext, significance.Result, error) {
	session, err := capture.LoadSession(e.root)
	if err != nil {
		e.logger.Warn("ignore session context", "err", err)
		session = nil
	}
	cc, err := e.extractor().Context(ref, session)
	if err != nil {
		return cc, significance.Result{}, err
	}
	return cc, significance.NewScorer(e.cfg.MinSignificance).Score(cc), nil
}

func writeScore(out io.Writer, cc significance.CommitContext, result significance.Result, threshold float64) {
	verdict := "significant"
	if !result.IsSignificant {
		verdict = fmt.Sprintf("not significant, threshold %.2f", threshold)
	}
	fmt.Fprintf(out, "Commit: %s %s\n", shortID(cc.CommitID), capture.Title(cc.Message))
	fmt.Fprintf(out, "Score: %s (%s)\n", result.Display(), verdict)
	fmt.Fprintf(out, "Type: %s\n", result.SuggestedType)
	if len(result.Factors) == 0 {
		fmt.Fprintln(out, "Factors: none")
		return
	}
	fmt.Fprintln(out, "Factors:")
	for _, f := range result.FactorStrings() {
		fmt.Fprintf(out, "  - %s\n", f)
	}
}

func runMonitor(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(errOut)
	since := fs.String("since", "HEAD~10", "Analyze commits after this ref")
	dryRun := fs.Bool("dry-run", false, "Score commits without writing sagas")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := chroniclerOptions{ctx: ctx, threshold: e.cfg.MinSignificance}
	if e.cfg.UseAI && !*dryRun {
		opts.enhancer, _ = e.enhancer(ctx, false)
	}
	if _, err := e.chronicler(opts).Monitor(ctx, *since, *dryRun); err != nil {
		fmt.Fprintf(errOut, "monitor error: %v\n", err)
		return 1
	}
	return 0
}

func runCommit(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	typeName := fs.String("type", "general", "Saga type (general, debugging, feature, architecture, optimization, incident)")
	tags := fs.String("tags", "", "Comma-separated tags")
	content := fs.String("content", "", "Saga body")
	file := fs.String("file", "", "Read the saga body from a file (- for stdin)")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{
		"type":    {RequiresValue: true},
		"tags":    {RequiresValue: true},
		"content": {RequiresValue: true},
		"file":    {RequiresValue: true},
	})
	if err != nil {
		fmt.Fprintf(errOut, "commit error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	title := strings.TrimSpace(strings.Join(positional, " "))
	if title == "" {
		fmt.Fprintln(errOut, "usage: saga commit <title> [--type <type>] [--tags a,b] [--content <text>|--file <path>]")
		return 2
	}
	typ, ok := saga.ParseType(*typeName)
	if !ok {
		fmt.Fprintf(errOut, "unknown saga type: %s\n", *typeName)
		return 2
	}
	if *content != "" && *file != "" {
		fmt.Fprintln(errOut, "commit error: use either --content or --file")
		return 2
	}

	body := *content
	if *file != "" {
		data, err := readInput(*file)
		if err != nil {
			fmt.Fprintf(errOut, "commit error: %v\n", err)
			return 1
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" && enhance.Supports(typ) {
		body = enhance.Template(typ)
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	provider := e.provider()
	s := saga.New(title, body, typ, time.Now())
	s.Tags = saga.NormalizeTags(splitCSV(*tags))
	if branch, err := provider.CurrentBranch(); err == nil && branch != "" {
		s.Branch = branch
	}
	if files, err := provider.ModifiedFiles(); err == nil {
		s.FilesChanged = pathutil.NewMatcher(e.root, e.cfg.ExcludedPaths).Filter(files)
	} else {
		e.logger.Debug("list modified files", "err", err)
	}

	path, err := s.Save(e.sagaDir, e.saveOrganizer())
	if err != nil {
		fmt.Fprintf(errOut, "commit error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✨ Created saga: %s\n", s.Title)
	fmt.Fprintf(out, "   ID: %s\n", s.ID)
	fmt.Fprintf(out, "   Type: %s\n", s.Type)
	fmt.Fprintf(out, "   Path: %s\n", e.rel(path))
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func shortID(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
