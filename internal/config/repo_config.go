package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RepoDirName is the per-repository directory holding sagas and overrides.
const RepoDirName = ".sagashark"

type RepoConfig struct {
	MinSignificance   *float64 `json:"min_significance,omitempty"`
	AutoOrganize      *bool    `json:"auto_organize,omitempty"`
	Interactive       *bool    `json:"interactive,omitempty"`
	ExcludedPaths     []string `json:"excluded_paths,omitempty"`
	MaxSearchResults  *int     `json:"max_search_results,omitempty"`
	UseAI             *bool    `json:"use_ai,omitempty"`
	AIModel           *string  `json:"ai_model,omitempty"`
	EmbeddingProvider *string  `json:"embedding_provider,omitempty"`
	EmbeddingModel    *string  `json:"embedding_model,omitempty"`
}

type repoConfigCacheEntry struct {
	ModTime time.Time
	Size    int64
	Config  RepoConfig
}

var repoConfigCache = struct {
	mu      sync.RWMutex
	entries map[string]repoConfigCacheEntry
}{
	entries: map[string]repoConfigCacheEntry{},
}

func RepoConfigPath(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	return filepath.Join(root, RepoDirName, "config.json")
}

// SagaDir is where a repository's saga markdown files live.
func SagaDir(root string) string {
	return filepath.Join(root, RepoDirName, "sagas")
}

func LoadRepoConfig(root string) (RepoConfig, bool, error) {
	path := RepoConfigPath(root)
	if path == "" {
		return RepoConfig{}, false, nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RepoConfig{}, false, nil
		}
		return RepoConfig{}, false, err
	}

	repoConfigCache.mu.RLock()
	cached, ok := repoConfigCache.entries[path]
	repoConfigCache.mu.RUnlock()
	if ok && cached.ModTime.Equal(stat.ModTime()) && cached.Size == stat.Size() {
		return cached.Config, true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RepoConfig{}, false, err
	}
	var cfg RepoConfig
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return RepoConfig{}, false, err
		}
	}

	repoConfigCache.mu.Lock()
	repoConfigCache.entries[path] = repoConfigCacheEntry{
		ModTime: stat.ModTime(),
		Size:    stat.Size(),
		Config:  cfg,
	}
	repoConfigCache.mu.Unlock()
	return cfg, true, nil
}

func WriteRepoConfig(root string, cfg RepoConfig) error {
	path := RepoConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(encoded, '\n'), 0o644)
}

func ApplyRepoOverrides(cfg *Config, root string) error {
	if cfg == nil {
		return nil
	}
	repoCfg, ok, err := LoadRepoConfig(root)
	if err != nil || !ok {
		return err
	}
	if repoCfg.MinSignificance != nil {
		cfg.MinSignificance = *repoCfg.MinSignificance
	}
	if repoCfg.AutoOrganize != nil {
		cfg.AutoOrganize = *repoCfg.AutoOrganize
	}
	if repoCfg.Interactive != nil {
		cfg.Interactive = *repoCfg.Interactive
	}
	if len(repoCfg.ExcludedPaths) > 0 {
		cfg.ExcludedPaths = append(append([]string{}, cfg.ExcludedPaths...), repoCfg.ExcludedPaths...)
	}
	if repoCfg.MaxSearchResults != nil && *repoCfg.MaxSearchResults > 0 {
		cfg.MaxSearchResults = *repoCfg.MaxSearchResults
	}
	if repoCfg.UseAI != nil {
		cfg.UseAI = *repoCfg.UseAI
	}
	if repoCfg.AIModel != nil {
		if model := strings.TrimSpace(*repoCfg.AIModel); model != "" {
			cfg.AIModel = model
		}
	}
	if repoCfg.EmbeddingProvider != nil {
		if provider := strings.TrimSpace(*repoCfg.EmbeddingProvider); provider != "" {
			cfg.EmbeddingProvider = provider
		}
	}
	if repoCfg.EmbeddingModel != nil {
		if model := strings.TrimSpace(*repoCfg.EmbeddingModel); model != "" {
			cfg.EmbeddingModel = model
		}
	}
	return nil
}
