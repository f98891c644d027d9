package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const probeTimeout = 500 * time.Millisecond

var ErrModelMissing = errors.New("ollama model not found")

type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Model() string {
	return p.model
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embedding text %d is empty", i)
		}
	}
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama embed status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var payload embedResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode ollama embed response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("ollama embed: %s", payload.Error)
	}
	if len(payload.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed count mismatch: expected %d, got %d", len(texts), len(payload.Embeddings))
	}
	for i, vector := range payload.Embeddings {
		if len(vector) == 0 {
			return nil, fmt.Errorf("ollama embed returned empty vector at index %d", i)
		}
	}
	return payload.Embeddings, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ProbeOllama checks that the server answers /api/tags and, when model is
// set, that the model has been pulled.
func ProbeOllama(ctx context.Context, baseURL, model string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	baseURL = strings.TrimRight(baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unavailable at %s", baseURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama unavailable (status %d)", resp.StatusCode)
	}
	var payload tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("read ollama tags: %w", err)
	}
	if strings.TrimSpace(model) != "" && !hasModel(payload, model) {
		return fmt.Errorf("%w: %s (run: ollama pull %s)", ErrModelMissing, model, model)
	}
	return nil
}

func hasModel(payload tagsResponse, model string) bool {
	model = strings.TrimSpace(model)
	for _, entry := range payload.Models {
		name := strings.TrimSpace(entry.Name)
		if name == model || strings.HasPrefix(name, model+":") {
			return true
		}
	}
	return false
}

// OllamaURL honors OLLAMA_HOST and defaults to the local daemon.
func OllamaURL() string {
	host := strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
	if host == "" {
		return "http://localhost:11434"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}
