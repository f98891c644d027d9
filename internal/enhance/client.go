package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"sagashark/internal/repo"
	"sagashark/internal/saga"
	"sagashark/internal/token"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxOutput = 2000
	fallbackDiffSize = 1000
	temperature      = 0.7
)

type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxInputTokens int
	// Counter trims the diff to MaxInputTokens. Without one the diff is cut
	// to a fixed number of characters.
	Counter *token.Counter
	Logger  *slog.Logger
}

// Client talks to any OpenAI-compatible chat completions endpoint and asks
// for a JSON object matching the saga type's schema.
type Client struct {
	openai         openai.Client
	model          string
	timeout        time.Duration
	maxInputTokens int
	counter        *token.Counter
	logger         *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		openai:         openai.NewClient(opts...),
		model:          cfg.Model,
		timeout:        timeout,
		maxInputTokens: cfg.MaxInputTokens,
		counter:        cfg.Counter,
		logger:         logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Enhance(ctx context.Context, req Request) (Result, error) {
	if !Supports(req.Type) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, req.Type)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := Result{Type: req.Type}
	var target any
	var schemaName string
	switch req.Type {
	case saga.TypeDebugging:
		result.Debugging = &Debugging{}
		target, schemaName = result.Debugging, "debugging_saga"
	case saga.TypeFeature:
		result.Feature = &Feature{}
		target, schemaName = result.Feature, "feature_saga"
	case saga.TypeIncident:
		result.Incident = &Incident{}
		target, schemaName = result.Incident, "incident_saga"
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.Type)),
			openai.UserMessage(c.userPrompt(req)),
		},
		MaxTokens:   openai.Int(defaultMaxOutput),
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        schemaName,
					Description: openai.String("Narrative sections of a " + string(req.Type) + " saga"),
					Schema:      generateSchema(target),
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("ai chat: %w", err)
	}
	c.logger.Debug("ai enhancement completed",
		"model", c.model,
		"type", req.Type,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in ai response")
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return Result{}, fmt.Errorf("decode ai response: %w", err)
	}
	return result, nil
}

func (c *Client) userPrompt(req Request) string {
	fixed := fixedPrompt(req)
	diff := req.DiffContent
	if c.counter != nil && c.maxInputTokens > 0 {
		diff = c.counter.FitDiff(fixed, diff, c.maxInputTokens)
	} else {
		diff = repo.TruncateChars(diff, fallbackDiffSize)
	}
	if strings.TrimSpace(diff) == "" {
		return fixed
	}
	return fixed + "\n\nDiff excerpt:\n" + diff
}

func generateSchema(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
