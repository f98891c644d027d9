package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"sagashark/internal/capture"
	"sagashark/internal/embed"
	"sagashark/internal/enhance"
	"sagashark/internal/repo"
	"sagashark/internal/saga"
	"sagashark/internal/significance"
)

func runTemplate(args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "usage: saga template [debugging|feature|incident]")
		return 2
	}
	typ := saga.TypeDebugging
	if len(args) == 1 {
		parsed, ok := saga.ParseType(args[0])
		if !ok {
			fmt.Fprintf(errOut, "unknown saga type: %s\n", args[0])
			return 2
		}
		typ = parsed
	}
	io.WriteString(out, enhance.Template(typ))
	return 0
}

func runValidate(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	typeName := fs.String("type", "", "Validate against this type instead of the saga's own")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{
		"json": {},
		"type": {RequiresValue: true},
	})
	if err != nil {
		fmt.Fprintf(errOut, "validate error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(errOut, "usage: saga validate <id|path> [--type <type>] [--json]")
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	entry, err := e.findSaga(positional[0])
	if err != nil {
		fmt.Fprintf(errOut, "validate error: %v\n", err)
		return 1
	}
	typ := entry.Saga.Type
	if *typeName != "" {
		parsed, ok := saga.ParseType(*typeName)
		if !ok {
			fmt.Fprintf(errOut, "unknown saga type: %s\n", *typeName)
			return 2
		}
		typ = parsed
	}
	v := enhance.Validate(entry.Saga.Content, typ)
	if *jsonOut {
		return writeJSON(out, errOut, v)
	}

	fmt.Fprintf(out, "%s (%s)\n", entry.Saga.Title, v.Type)
	fmt.Fprintf(out, "Completeness: %.0f%%\n", v.Score*100)
	if len(v.Present) > 0 {
		fmt.Fprintf(out, "Present: %s\n", strings.Join(v.Present, ", "))
	}
	if v.IsComplete {
		fmt.Fprintln(out, "✅ All expected sections are present")
		return 0
	}
	fmt.Fprintf(out, "Missing: %s\n", strings.Join(v.Missing, ", "))
	fmt.Fprintln(out, "Recommendations:")
	for _, r := range v.Recommendations {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	return 0
}

type aiStatus struct {
	UseAI      bool           `json:"use_ai"`
	Enhancer   enhance.Status `json:"enhancer"`
	Embeddings embed.Status   `json:"embeddings"`
}

func runAI(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("ai", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{"json": {}})
	if err != nil {
		fmt.Fprintf(errOut, "ai error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) > 1 || (len(positional) == 1 && positional[0] != "status") {
		fmt.Fprintln(errOut, "usage: saga ai [status] [--json]")
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	ctx := context.Background()
	_, enhStatus := e.enhancer(ctx, true)
	_, embStatus := embed.Resolve(ctx, e.cfg)
	report := aiStatus{UseAI: e.cfg.UseAI, Enhancer: enhStatus, Embeddings: embStatus}
	if *jsonOut {
		return writeJSON(out, errOut, report)
	}

	fmt.Fprintf(out, "use_ai: %t\n", report.UseAI)
	writeCapability(out, "enhancer", enhStatus.Enabled, enhStatus.Provider, enhStatus.Model, enhStatus.Error)
	if enhStatus.BaseURL != "" {
		fmt.Fprintf(out, "  endpoint: %s\n", enhStatus.BaseURL)
	}
	writeCapability(out, "embeddings", embStatus.Enabled, embStatus.Provider, embStatus.Model, embStatus.Error)
	if enhStatus.Enabled && !report.UseAI {
		fmt.Fprintln(out, "hint: set use_ai = true in config.toml or pass --ai to capture")
	}
	return 0
}

func writeCapability(out io.Writer, name string, enabled bool, provider, model, reason string) {
	state := "available"
	if !enabled {
		state = "unavailable"
	}
	label := provider
	if model != "" {
		label = provider + "/" + model
	}
	fmt.Fprintf(out, "%s: %s (%s)\n", name, state, label)
	if reason != "" && !enabled {
		fmt.Fprintf(out, "  reason: %s\n", reason)
	}
}

func runEnhance(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("enhance", flag.ContinueOnError)
	fs.SetOutput(errOut)
	write := fs.Bool("write", false, "Replace the saga body in place instead of printing it")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{"write": {}})
	if err != nil {
		fmt.Fprintf(errOut, "enhance error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(errOut, "usage: saga enhance <id|path> [--write]")
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	entry, err := e.findSaga(positional[0])
	if err != nil {
		fmt.Fprintf(errOut, "enhance error: %v\n", err)
		return 1
	}
	s := entry.Saga
	if !enhance.Supports(s.Type) {
		fmt.Fprintf(errOut, "enhance error: %v: %s\n", enhance.ErrUnsupportedType, s.Type)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	enh, status := e.enhancer(ctx, true)
	if enh == nil {
		fmt.Fprintf(errOut, "enhance error: %v: %s\n", enhance.ErrDisabled, status.Error)
		return 1
	}

	cc := sagaContext(e, s)
	res, err := enh.Enhance(ctx, enhance.Request{
		Type:          s.Type,
		CommitMessage: cc.Message,
		FilesChanged:  cc.FilesChanged,
		DiffContent:   cc.DiffContent,
	})
	if err != nil {
		fmt.Fprintf(errOut, "enhance error: %v\n", err)
		return 1
	}
	if !res.Usable() {
		fmt.Fprintln(errOut, "enhance error: model returned no content")
		return 1
	}
	score := significance.NewScorer(e.cfg.MinSignificance).Score(cc)
	score.SuggestedType = s.Type
	content := capture.NewBuilder(e.patterns()).Build(cc, score, nil, &res)

	if !*write {
		io.WriteString(out, content)
		return 0
	}
	s.Content = content
	if err := rewriteSaga(entry.Path, s); err != nil {
		fmt.Fprintf(errOut, "enhance error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✨ Enhanced saga: %s\n", s.Title)
	fmt.Fprintf(out, "   Path: %s\n", e.rel(entry.Path))
	return 0
}

// sagaContext rebuilds the commit context behind s. Sagas without a
// readable commit get one from their own metadata and body.
func sagaContext(e *env, s *saga.Saga) significance.CommitContext {
	if s.CommitID != "" {
		cc, err := e.extractor().Context(s.CommitID, nil)
		if err == nil {
			return cc
		}
		e.logger.Debug("saga commit unavailable", "commit", s.CommitID, "err", err)
	}
	return significance.CommitContext{
		CommitID:     s.CommitID,
		Message:      s.Title + "\n\n" + repo.TruncateChars(strings.TrimSpace(s.Content), 2000),
		FilesChanged: s.FilesChanged,
		Branch:       s.Branch,
		Timestamp:    s.Timestamp,
	}
}

func rewriteSaga(path string, s *saga.Saga) error {
	text, err := s.Markdown()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
