package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sagashark/internal/capture"
	"sagashark/internal/enhance"
	"sagashark/internal/saga"
	"sagashark/internal/search"
)

func runMCP(args []string, g globalFlags, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(errOut)
	name := fs.String("name", "sagashark", "MCP server name")
	version := fs.String("version", Version, "MCP server version")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// stdout carries the protocol, so everything else goes to errOut.
	e, err := loadEnv(g, errOut, errOut)
	if err != nil {
		return envError(errOut, err)
	}

	ix, closeIndex, err := e.openIndex(context.Background())
	if err != nil {
		e.logger.Warn("index unavailable, similar issues use text search", "err", err)
		ix = nil
	} else {
		defer closeIndex()
	}
	tools := newMCPTools(e, ix)
	status := "text"
	if ix != nil && ix.Status().Enabled {
		status = "vector"
	}
	fmt.Fprintf(errOut, "sagashark mcp: repo=%s sagas=%s similar=%s tools=5\n", e.repo.ID, e.rel(e.sagaDir), status)

	srv := server.NewMCPServer(*name, *version, server.WithToolCapabilities(false))
	tools.register(srv)

	if err := server.ServeStdio(srv); err != nil {
		fmt.Fprintf(errOut, "mcp server error: %v\n", err)
		return 1
	}
	return 0
}

type mcpTools struct {
	env   *env
	index *search.Index
}

// newMCPTools serves tool calls against e. index may be nil, in which case
// similarity falls back to text search.
func newMCPTools(e *env, index *search.Index) *mcpTools {
	return &mcpTools{env: e, index: index}
}

func (t *mcpTools) register(srv *server.MCPServer) {
	searchTool := mcp.NewTool("search_sagas",
		mcp.WithDescription("Search past debugging sessions, features and incidents recorded as sagas in this repository."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query (e.g. 'timeout', 'redis bug')")),
		mcp.WithNumber("limit", mcp.Description("Max results to return"), mcp.DefaultNumber(5)),
	)
	srv.AddTool(searchTool, t.handleSearchSagas)

	similarTool := mcp.NewTool("find_similar_issues",
		mcp.WithDescription("Find past sagas similar to the problem currently being worked on."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("description", mcp.Required(), mcp.Description("Description of the current issue")),
		mcp.WithNumber("limit", mcp.Description("Max results to return"), mcp.DefaultNumber(5)),
	)
	srv.AddTool(similarTool, t.handleFindSimilar)

	captureTool := mcp.NewTool("capture_context",
		mcp.WithDescription("Record the current debugging context and findings as a saga."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title for this debugging session")),
		mcp.WithString("context", mcp.Required(), mcp.Description("Debugging context and findings")),
		mcp.WithString("solution", mcp.Description("Solution found, if any")),
	)
	srv.AddTool(captureTool, t.handleCaptureContext)

	scoreTool := mcp.NewTool("score_commit",
		mcp.WithDescription("Check whether a commit is significant enough for a saga."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("commit", mcp.Description("Commit hash or ref"), mcp.DefaultString("HEAD")),
	)
	srv.AddTool(scoreTool, t.handleScoreCommit)

	templateTool := mcp.NewTool("get_debugging_template",
		mcp.WithDescription("Get a markdown template for documenting a debugging session, feature or incident."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("type", mcp.Description("Template type"), mcp.Enum("debugging", "feature", "incident"), mcp.DefaultString("debugging")),
	)
	srv.AddTool(templateTool, t.handleTemplate)
}

func (t *mcpTools) handleSearchSagas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be > 0"), nil
	}
	hits, err := t.env.textSearcher().Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No matching sagas found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant sagas:\n\n", len(hits))
	for i, h := range hits {
		s := h.Saga
		fmt.Fprintf(&b, "%d. **%s** (Score: %.1f)\n", i+1, s.Title, h.Score)
		fmt.Fprintf(&b, "   Type: %s | Date: %s | ID: %s\n", s.Type, s.Timestamp.Format("2006-01-02"), s.ID)
		fmt.Fprintf(&b, "   Preview: %s\n\n", previewLine(s, 2, 150))
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: b.String()}},
		StructuredContent: map[string]any{"results": hitViews(t.env, hits)},
	}, nil
}

func (t *mcpTools) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(description) == "" {
		return mcp.NewToolResultError("description must not be empty"), nil
	}
	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be > 0"), nil
	}
	hits, mode, err := search.FindSimilar(ctx, t.index, t.env.textSearcher(), description, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No similar issues found in saga history."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Similar past issues (%s search):\n\n", mode)
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, h.Saga.Title)
		fmt.Fprintf(&b, "   %s\n\n", previewLine(h.Saga, 3, 200))
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: b.String()}},
		StructuredContent: map[string]any{
			"mode":    mode,
			"results": hitViews(t.env, hits),
		},
	}, nil
}

func (t *mcpTools) handleCaptureContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := request.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return mcp.NewToolResultError("title must not be empty"), nil
	}

	typ := saga.TypeGeneral
	if strings.Contains(strings.ToLower(title), "fix") {
		typ = saga.TypeDebugging
	}
	content := strings.TrimSpace(body)
	if solution := strings.TrimSpace(request.GetString("solution", "")); solution != "" {
		content += "\n\n## Solution\n" + solution
	}
	s := saga.New(title, content+"\n", typ, time.Now())
	s.Tags = []string{"mcp"}
	if branch, err := t.env.provider().CurrentBranch(); err == nil && branch != "" {
		s.Branch = branch
	}
	path, err := s.Save(t.env.sagaDir, t.env.saveOrganizer())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("✓ Saga captured: %s\nSaved to: %s", s.Title, t.env.rel(path))
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		StructuredContent: toSagaView(s, t.env.rel(path)),
	}, nil
}

func (t *mcpTools) handleScoreCommit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(request.GetString("commit", "HEAD"))
	if ref == "" {
		ref = "HEAD"
	}
	cc, result, err := scoreRef(t.env, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("could not analyze commit: %v", err)), nil
	}
	significant := "No"
	if result.IsSignificant {
		significant = "Yes"
	}
	factors := strings.Join(result.FactorStrings(), ", ")
	if factors == "" {
		factors = "none"
	}
	text := fmt.Sprintf("Commit Score: %s\nSignificant: %s\nType: %s\nFactors: %s",
		result.Display(), significant, result.SuggestedType, factors)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		StructuredContent: scoreOutput{
			Commit:    cc.CommitID,
			Message:   capture.Title(cc.Message),
			Threshold: t.env.cfg.MinSignificance,
			Result:    result,
		},
	}, nil
}

func (t *mcpTools) handleTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("type", "debugging")
	typ, ok := saga.ParseType(name)
	if !ok || !enhance.Supports(typ) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported template type: %s", name)), nil
	}
	return mcp.NewToolResultText(enhance.Template(typ)), nil
}

func previewLine(s *saga.Saga, lines, maxChars int) string {
	preview := strings.Join(strings.Fields(s.Preview(lines)), " ")
	if len([]rune(preview)) > maxChars {
		preview = string([]rune(preview)[:maxChars]) + "..."
	}
	return preview
}
