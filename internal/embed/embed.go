package embed

import (
	"context"
	"fmt"
	"strings"

	"sagashark/internal/config"
)

// Provider turns texts into vectors, one per input.
type Provider interface {
	Name() string
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Status is the resolved embedding capability. Enabled is false whenever
// the provider is switched off or could not be reached.
type Status struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Enabled  bool   `json:"enabled"`
	Error    string `json:"error,omitempty"`
}

const DefaultModel = "nomic-embed-text"

// Resolve picks the embedding provider once. It probes Ollama for "auto"
// and "ollama"; any failure comes back as a disabled Status.
func Resolve(ctx context.Context, cfg config.Config) (Provider, Status) {
	name := strings.TrimSpace(strings.ToLower(cfg.EmbeddingProvider))
	model := strings.TrimSpace(cfg.EmbeddingModel)
	switch name {
	case "", "none", "off":
		return nil, Status{Provider: "none"}
	case "auto", "ollama":
		if model == "" {
			if name == "ollama" {
				return nil, Status{Provider: name, Error: "embedding_model is required for ollama"}
			}
			model = DefaultModel
		}
		baseURL := OllamaURL()
		if err := ProbeOllama(ctx, baseURL, model); err != nil {
			return nil, Status{Provider: "ollama", Model: model, Error: err.Error()}
		}
		return NewOllamaProvider(baseURL, model), Status{Provider: "ollama", Model: model, Enabled: true}
	default:
		return nil, Status{Provider: name, Model: model, Error: fmt.Sprintf("unknown embedding provider: %s", name)}
	}
}
