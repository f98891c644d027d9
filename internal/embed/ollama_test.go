package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"sagashark/internal/config"
)

func newTestProvider(server *httptest.Server) *OllamaProvider {
	return &OllamaProvider{
		baseURL: server.URL,
		model:   "nomic-embed-text",
		client:  server.Client(),
	}
}

func TestOllamaProviderEmbedBatch(t *testing.T) {
	var gotPath string
	var gotBody embedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float64{{1, 2}, {3, 4}},
		})
	}))
	defer server.Close()

	vectors, err := newTestProvider(server).Embed(context.Background(), []string{"login timeout", "cache miss"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if gotPath != "/api/embed" {
		t.Fatalf("expected path /api/embed, got %s", gotPath)
	}
	if gotBody.Model != "nomic-embed-text" {
		t.Fatalf("unexpected model: %s", gotBody.Model)
	}
	if !reflect.DeepEqual(gotBody.Input, []string{"login timeout", "cache miss"}) {
		t.Fatalf("unexpected input: %#v", gotBody.Input)
	}
	if !reflect.DeepEqual(vectors, [][]float64{{1, 2}, {3, 4}}) {
		t.Fatalf("unexpected vectors: %#v", vectors)
	}
}

func TestOllamaProviderEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer server.Close()

	_, err := newTestProvider(server).Embed(context.Background(), []string{"alpha", "beta"})
	if err == nil || !strings.Contains(err.Error(), "count mismatch") {
		t.Fatalf("expected count mismatch error, got: %v", err)
	}
}

func TestOllamaProviderRejectsEmptyText(t *testing.T) {
	provider := NewOllamaProvider("http://127.0.0.1:1", "nomic-embed-text")
	if _, err := provider.Embed(context.Background(), []string{"ok", "  "}); err == nil {
		t.Fatal("expected empty text error")
	}
}

func TestProbeOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"tinyllama"}]}`))
	}))
	defer server.Close()

	if err := ProbeOllama(context.Background(), server.URL, "nomic-embed-text"); err != nil {
		t.Fatalf("expected tagged model to match: %v", err)
	}
	if err := ProbeOllama(context.Background(), server.URL, ""); err != nil {
		t.Fatalf("expected reachability check to pass: %v", err)
	}
	err := ProbeOllama(context.Background(), server.URL, "mxbai-embed-large")
	if !errors.Is(err, ErrModelMissing) {
		t.Fatalf("expected ErrModelMissing, got %v", err)
	}
}

func TestResolveDisabled(t *testing.T) {
	for _, name := range []string{"", "none", "off"} {
		provider, status := Resolve(context.Background(), config.Config{EmbeddingProvider: name})
		if provider != nil || status.Enabled {
			t.Fatalf("expected %q to disable embeddings, got %+v", name, status)
		}
	}
	_, status := Resolve(context.Background(), config.Config{EmbeddingProvider: "bogus"})
	if status.Enabled || !strings.Contains(status.Error, "unknown embedding provider") {
		t.Fatalf("unexpected status for unknown provider: %+v", status)
	}
}

func TestResolveUnreachable(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "127.0.0.1:1")
	provider, status := Resolve(context.Background(), config.Config{EmbeddingProvider: "auto"})
	if provider != nil || status.Enabled || status.Error == "" {
		t.Fatalf("expected disabled status with error, got %+v", status)
	}
	if status.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", status.Model)
	}
}

func TestOllamaURL(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	if got := OllamaURL(); got != "http://localhost:11434" {
		t.Fatalf("unexpected default %s", got)
	}
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434/")
	if got := OllamaURL(); got != "http://10.0.0.5:11434" {
		t.Fatalf("unexpected host %s", got)
	}
}
