package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"sagashark/internal/search"
)

func newTestTools(t *testing.T) *mcpTools {
	t.Helper()
	base := t.TempDir()
	setXDGEnv(t, base)
	repoDir := setupRepo(t, base)
	withCwd(t, repoDir)

	var buf bytes.Buffer
	e, err := loadEnv(globalFlags{}, &buf, &buf)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	return newMCPTools(e, nil)
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("expected tool content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestMCPCaptureThenSearch(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	res, err := tools.handleCaptureContext(ctx, toolRequest("capture_context", map[string]any{
		"title":    "Fix webhook retry storm",
		"context":  "Retries were scheduled without backoff.",
		"solution": "Added exponential backoff with jitter.",
	}))
	if err != nil {
		t.Fatalf("capture_context: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	view, ok := res.StructuredContent.(sagaView)
	if !ok {
		t.Fatalf("expected sagaView, got %T", res.StructuredContent)
	}
	if view.Type != "debugging" || view.ID == "" {
		t.Fatalf("unexpected captured saga %+v", view)
	}
	if len(view.Tags) != 1 || view.Tags[0] != "mcp" {
		t.Fatalf("expected mcp tag, got %v", view.Tags)
	}
	if !strings.Contains(resultText(t, res), "Saga captured: Fix webhook retry storm") {
		t.Fatalf("unexpected capture text %q", resultText(t, res))
	}

	res, err = tools.handleSearchSagas(ctx, toolRequest("search_sagas", map[string]any{"query": "backoff", "limit": 3}))
	if err != nil {
		t.Fatalf("search_sagas: %v", err)
	}
	text := resultText(t, res)
	if res.IsError || !strings.Contains(text, "Found 1 relevant sagas") || !strings.Contains(text, view.ID) {
		t.Fatalf("unexpected search result %q", text)
	}
	payload, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("expected map payload, got %T", res.StructuredContent)
	}
	hits, ok := payload["results"].([]sagaView)
	if !ok || len(hits) != 1 || hits[0].ID != view.ID {
		t.Fatalf("unexpected structured results %#v", payload["results"])
	}

	res, err = tools.handleFindSimilar(ctx, toolRequest("find_similar_issues", map[string]any{"description": "webhook retries pile up"}))
	if err != nil {
		t.Fatalf("find_similar_issues: %v", err)
	}
	payload, ok = res.StructuredContent.(map[string]any)
	if !ok || payload["mode"] != search.ModeText {
		t.Fatalf("expected text mode without an index, got %#v", res.StructuredContent)
	}
	if !strings.Contains(resultText(t, res), "Fix webhook retry storm") {
		t.Fatalf("expected captured saga listed, got %q", resultText(t, res))
	}
}

func TestMCPArgumentErrors(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"blank query", tools.handleSearchSagas, map[string]any{"query": "   "}},
		{"missing query", tools.handleSearchSagas, map[string]any{}},
		{"zero limit", tools.handleSearchSagas, map[string]any{"query": "x", "limit": 0}},
		{"blank description", tools.handleFindSimilar, map[string]any{"description": ""}},
		{"missing context", tools.handleCaptureContext, map[string]any{"title": "Fix it"}},
		{"blank title", tools.handleCaptureContext, map[string]any{"title": " ", "context": "c"}},
		{"unknown template", tools.handleTemplate, map[string]any{"type": "poetry"}},
		{"unknown commit", tools.handleScoreCommit, map[string]any{"commit": "does-not-exist"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tc.handler(ctx, toolRequest("", tc.args))
			if err != nil {
				t.Fatalf("handler returned protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatalf("expected tool error, got %q", resultText(t, res))
			}
		})
	}
}

func TestMCPScoreAndTemplate(t *testing.T) {
	tools := newTestTools(t)
	ctx := context.Background()

	res, err := tools.handleScoreCommit(ctx, toolRequest("score_commit", map[string]any{}))
	if err != nil {
		t.Fatalf("score_commit: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	score, ok := res.StructuredContent.(scoreOutput)
	if !ok || score.Commit == "" {
		t.Fatalf("expected score output with commit, got %#v", res.StructuredContent)
	}
	if !strings.Contains(resultText(t, res), "Commit Score:") {
		t.Fatalf("unexpected score text %q", resultText(t, res))
	}

	res, err = tools.handleTemplate(ctx, toolRequest("get_debugging_template", map[string]any{"type": "feature"}))
	if err != nil {
		t.Fatalf("get_debugging_template: %v", err)
	}
	if !strings.Contains(resultText(t, res), "Feature Overview") {
		t.Fatalf("expected feature template, got %q", resultText(t, res))
	}

	res, err = tools.handleTemplate(ctx, toolRequest("get_debugging_template", nil))
	if err != nil || res.IsError {
		t.Fatalf("default template failed: err=%v", err)
	}
	if resultText(t, res) != resultText(t, mustTemplate(t, tools, "debugging")) {
		t.Fatal("expected debugging template by default")
	}
}

func mustTemplate(t *testing.T, tools *mcpTools, typ string) *mcp.CallToolResult {
	t.Helper()
	res, err := tools.handleTemplate(context.Background(), toolRequest("get_debugging_template", map[string]any{"type": typ}))
	if err != nil || res.IsError {
		t.Fatalf("template %s failed: err=%v", typ, err)
	}
	return res
}
