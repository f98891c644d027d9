package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Drives `saga mcp` over stdio against an existing git repository:
//
//	SAGA_BIN=./bin/saga REPO_DIR=/path/to/repo go run ./scripts/mcp_e2e_client.go
func main() {
	sagaBin := os.Getenv("SAGA_BIN")
	repoDir := os.Getenv("REPO_DIR")
	query := os.Getenv("QUERY")
	if sagaBin == "" || repoDir == "" {
		fmt.Fprintln(os.Stderr, "SAGA_BIN and REPO_DIR are required")
		os.Exit(1)
	}
	if query == "" {
		query = "timeout"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := []string{}
	for _, key := range []string{"SAGA_DATA_DIR", "XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "OLLAMA_HOST"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}

	stdio := transport.NewStdioWithOptions(
		sagaBin,
		env,
		[]string{"mcp", "--name", "sagashark-e2e"},
		transport.WithCommandFunc(func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
			cmd := exec.CommandContext(ctx, command, args...)
			cmd.Dir = repoDir
			cmd.Env = append(os.Environ(), env...)
			return cmd, nil
		}),
	)

	c := client.NewClient(stdio)
	if err := c.Start(ctx); err != nil {
		fail("start client", err)
	}
	defer c.Close()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "saga-mcp-e2e", Version: "1.0"}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	initRes, err := c.Initialize(ctx, initReq)
	if err != nil {
		fail("initialize", err)
	}
	if initRes.ServerInfo.Name != "sagashark-e2e" {
		fail("initialize", fmt.Errorf("unexpected server name %q", initRes.ServerInfo.Name))
	}

	if err := c.Ping(ctx); err != nil {
		fail("ping", err)
	}

	toolsRes, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		fail("list tools", err)
	}
	requireTool(toolsRes.Tools, "search_sagas")
	requireTool(toolsRes.Tools, "find_similar_issues")
	requireTool(toolsRes.Tools, "capture_context")
	requireTool(toolsRes.Tools, "score_commit")
	requireTool(toolsRes.Tools, "get_debugging_template")

	templateRes := call(ctx, c, "get_debugging_template", map[string]any{"type": "incident"})
	if !strings.Contains(firstText(templateRes), "Executive Summary") {
		fail("get_debugging_template", fmt.Errorf("incident template missing executive summary"))
	}

	scoreRes := call(ctx, c, "score_commit", map[string]any{"commit": "HEAD"})
	scorePayload := asMap(scoreRes.StructuredContent)
	if commit, _ := scorePayload["commit"].(string); commit == "" {
		fail("score_commit", fmt.Errorf("missing commit in response"))
	}

	title := "Fix " + query + " in e2e run " + time.Now().Format("150405")
	captureRes := call(ctx, c, "capture_context", map[string]any{
		"title":    title,
		"context":  "Reproduced the " + query + " while driving the MCP server end to end.",
		"solution": "Raised the client deadline.",
	})
	capturePayload := asMap(captureRes.StructuredContent)
	if typ, _ := capturePayload["type"].(string); typ != "debugging" {
		fail("capture_context", fmt.Errorf("expected debugging saga, got %q", typ))
	}
	id, _ := capturePayload["id"].(string)
	if id == "" {
		fail("capture_context", fmt.Errorf("missing id in response"))
	}

	searchRes := call(ctx, c, "search_sagas", map[string]any{"query": query, "limit": 10})
	if !containsSagaID(asMap(searchRes.StructuredContent), id) {
		fail("search_sagas", fmt.Errorf("expected saga %s in results", id))
	}

	similarRes := call(ctx, c, "find_similar_issues", map[string]any{"description": "client hits a " + query})
	if mode, _ := asMap(similarRes.StructuredContent)["mode"].(string); mode == "" {
		fail("find_similar_issues", fmt.Errorf("missing search mode"))
	}

	emptyRes, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "search_sagas", Arguments: map[string]any{"query": "  "}},
	})
	if err != nil {
		fail("search_sagas empty", err)
	}
	if !emptyRes.IsError {
		fail("search_sagas empty", fmt.Errorf("expected tool error for blank query"))
	}

	fmt.Println("mcp e2e: ok")
}

func call(ctx context.Context, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		fail(name, err)
	}
	if res.IsError {
		fail(name, fmt.Errorf("tool error: %s", firstText(res)))
	}
	return res
}

func requireTool(tools []mcp.Tool, name string) {
	for _, tool := range tools {
		if tool.Name == name {
			return
		}
	}
	fail("list tools", fmt.Errorf("missing tool %s", name))
}

func firstText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func asMap(value any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func containsSagaID(payload map[string]any, id string) bool {
	if id == "" {
		return false
	}
	items, ok := payload["results"].([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		hit, ok := item.(map[string]any)
		if !ok {
			continue
		}
		got, _ := hit["id"].(string)
		if got == id {
			return true
		}
	}
	return false
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "mcp e2e failed (%s): %v\n", step, err)
	os.Exit(1)
}
