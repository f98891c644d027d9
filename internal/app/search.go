package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"sagashark/internal/search"
)

func runSearch(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(errOut)
	typ := fs.String("type", "", "Only sagas of this type")
	branch := fs.String("branch", "", "Only sagas from this branch")
	tag := fs.String("tag", "", "Only sagas with this tag")
	files := fs.String("file", "", "Only sagas touching files matching this glob")
	limit := fs.Int("limit", 0, "Max results (default max_search_results)")
	useIndex := fs.Bool("index", false, "Query the full-text index instead of scanning files")
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{
		"type":   {RequiresValue: true},
		"branch": {RequiresValue: true},
		"tag":    {RequiresValue: true},
		"file":   {RequiresValue: true},
		"limit":  {RequiresValue: true},
		"index":  {},
		"json":   {},
	})
	if err != nil {
		fmt.Fprintf(errOut, "search error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	query := strings.TrimSpace(strings.Join(positional, " "))
	if query == "" {
		fmt.Fprintln(errOut, "usage: saga search \"<query>\" [--type <type>] [--branch <name>] [--file <glob>] [--limit <n>] [--json]")
		return 2
	}
	filter, ok := buildFilter(*typ, *branch, *tag, *files, errOut)
	if !ok {
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	n := *limit
	if n <= 0 {
		n = e.cfg.MaxSearchResults
	}

	var hits []search.Hit
	if *useIndex {
		hits, err = indexSearch(e, query, n, filter)
	} else {
		hits, err = e.textSearcher().SearchFiltered(query, n, filter)
	}
	if err != nil {
		fmt.Fprintf(errOut, "search error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return writeJSON(out, errOut, hitViews(e, hits))
	}
	if len(hits) == 0 {
		fmt.Fprintf(out, "No sagas found for: %q\n", query)
		return 0
	}
	writeHits(out, e, hits)
	return 0
}

// indexSearch queries FTS and applies filter afterwards. It overfetches so
// that filtering still fills limit in the common case.
func indexSearch(e *env, query string, limit int, filter search.Filter) ([]search.Hit, error) {
	filter, err := filter.Compile()
	if err != nil {
		return nil, err
	}
	ix, closeIndex, err := e.openIndex(context.Background())
	if err != nil {
		return nil, err
	}
	defer closeIndex()
	hits, err := ix.Search(query, limit*4)
	if err != nil {
		return nil, err
	}
	kept := hits[:0]
	for _, h := range hits {
		if filter.Match(h.Saga) {
			kept = append(kept, h)
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

func writeHits(out io.Writer, e *env, hits []search.Hit) {
	for i, h := range hits {
		s := h.Saga
		fmt.Fprintf(out, "%d. %s (score %.2f)\n", i+1, s.Title, h.Score)
		fmt.Fprintf(out, "   %s | %s | %s | %s\n", s.ID, s.Type, s.Timestamp.Format("2006-01-02"), s.Branch)
		fmt.Fprintf(out, "   %s\n", e.rel(h.Path))
		if preview := s.Preview(2); preview != "" {
			for _, line := range strings.Split(preview, "\n") {
				fmt.Fprintf(out, "   > %s\n", line)
			}
		}
	}
}

func runSimilar(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	fs.SetOutput(errOut)
	limit := fs.Int("limit", 5, "Max results")
	reindex := fs.Bool("reindex", false, "Rebuild the index before searching")
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, flagArgs, err := splitFlagArgs(args, map[string]flagSpec{
		"limit":   {RequiresValue: true},
		"reindex": {},
		"json":    {},
	})
	if err != nil {
		fmt.Fprintf(errOut, "similar error: %v\n", err)
		return 2
	}
	if err := fs.Parse(flagArgs); err != nil {
		return 2
	}
	text := strings.TrimSpace(strings.Join(positional, " "))
	if text == "" {
		fmt.Fprintln(errOut, "usage: saga similar <saga-id|\"description\"> [--limit <n>] [--reindex]")
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var exclude []string
	if len(positional) == 1 {
		entries, err := e.entries()
		if err != nil {
			fmt.Fprintf(errOut, "similar error: %v\n", err)
			return 1
		}
		if entry, ok := sagaRef(entries, text); ok {
			e.logger.Debug("similar to saga", "id", entry.Saga.ID)
			text = entry.Saga.Title + "\n" + entry.Saga.Content
			exclude = append(exclude, entry.Saga.ID)
		}
	}

	hits, mode, err := findSimilar(ctx, e, text, *limit, *reindex, exclude...)
	if err != nil {
		fmt.Fprintf(errOut, "similar error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return writeJSON(out, errOut, map[string]any{
			"mode":    mode,
			"results": hitViews(e, hits),
		})
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No similar sagas found")
		return 0
	}
	fmt.Fprintf(out, "Similar sagas (%s search):\n", mode)
	writeHits(out, e, hits)
	return 0
}

// sagaRef resolves ref to a saga by ID, path, or file name. Bare words that
// only appear inside a file name stay descriptions.
func sagaRef(entries []search.Entry, ref string) (search.Entry, bool) {
	entry, ok := search.Find(entries, ref)
	if !ok {
		return search.Entry{}, false
	}
	base := filepath.Base(entry.Path)
	if entry.Saga.ID == ref || base == ref || strings.TrimSuffix(base, filepath.Ext(base)) == ref || strings.ContainsRune(ref, filepath.Separator) || strings.HasSuffix(ref, ".md") {
		return entry, true
	}
	return search.Entry{}, false
}

// findSimilar falls back to the text searcher when the index cannot be
// opened at all.
func findSimilar(ctx context.Context, e *env, text string, limit int, reindex bool, exclude ...string) ([]search.Hit, search.Mode, error) {
	ix, closeIndex, err := e.openIndex(ctx)
	if err != nil {
		e.logger.Debug("index unavailable, using text search", "err", err)
		return search.FindSimilar(ctx, nil, e.textSearcher(), text, limit, exclude...)
	}
	defer closeIndex()
	if reindex {
		entries, err := e.entries()
		if err != nil {
			return nil, "", err
		}
		if _, err := ix.Reindex(ctx, entries); err != nil {
			return nil, "", err
		}
	}
	return search.FindSimilar(ctx, ix, e.textSearcher(), text, limit, exclude...)
}

func runReindex(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	entries, err := e.entries()
	if err != nil {
		fmt.Fprintf(errOut, "reindex error: %v\n", err)
		return 1
	}
	ix, closeIndex, err := e.openIndex(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "reindex error: %v\n", err)
		return 1
	}
	defer closeIndex()
	res, err := ix.Reindex(ctx, entries)
	if err != nil {
		fmt.Fprintf(errOut, "reindex error: %v\n", err)
		return 1
	}
	status := ix.Status()
	if *jsonOut {
		return writeJSON(out, errOut, map[string]any{
			"indexed":    res.Indexed,
			"unchanged":  res.Unchanged,
			"removed":    res.Removed,
			"embedded":   res.Embedded,
			"embeddings": status,
		})
	}
	fmt.Fprintf(out, "Indexed %d sagas (%d unchanged, %d removed)\n", res.Indexed, res.Unchanged, res.Removed)
	switch {
	case status.Enabled && res.EmbedError != "":
		fmt.Fprintf(out, "Embeddings: %d new with %s, last error: %s\n", res.Embedded, status.Model, res.EmbedError)
	case status.Enabled:
		fmt.Fprintf(out, "Embeddings: %d new with %s\n", res.Embedded, status.Model)
	default:
		reason := status.Error
		if reason == "" {
			reason = "disabled"
		}
		fmt.Fprintf(out, "Embeddings: off (%s); similar falls back to text search\n", reason)
	}
	return 0
}
