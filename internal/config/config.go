package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ConfigDir              string   `toml:"config_dir"`
	DataDir                string   `toml:"data_dir"`
	CacheDir               string   `toml:"cache_dir"`
	MinSignificance        float64  `toml:"min_significance"`
	AutoOrganize           bool     `toml:"auto_organize"`
	Interactive            bool     `toml:"interactive"`
	PromptTimeoutSeconds   int      `toml:"prompt_timeout_seconds"`
	DiffMaxChars           int      `toml:"diff_max_chars"`
	ExcludedPaths          []string `toml:"excluded_paths"`
	MaxSearchResults       int      `toml:"max_search_results"`
	Tokenizer              string   `toml:"tokenizer"`
	UseAI                  bool     `toml:"use_ai"`
	AIProvider             string   `toml:"ai_provider"`
	AIModel                string   `toml:"ai_model"`
	AIBaseURL              string   `toml:"ai_base_url"`
	AIAPIKey               string   `toml:"ai_api_key"`
	AITimeoutSeconds       int      `toml:"ai_timeout_seconds"`
	AIMaxInputTokens       int      `toml:"ai_max_input_tokens"`
	EmbeddingProvider      string   `toml:"embedding_provider"`
	EmbeddingModel         string   `toml:"embedding_model"`
	EmbeddingMinSimilarity float64  `toml:"embedding_min_similarity"`
}

const appDirName = "saga"

func Default() (Config, error) {
	configHome, dataHome, cacheHome, err := xdgHomes()
	if err != nil {
		return Config{}, err
	}

	return Config{
		ConfigDir:              filepath.Join(configHome, appDirName),
		DataDir:                filepath.Join(dataHome, appDirName),
		CacheDir:               filepath.Join(cacheHome, appDirName),
		MinSignificance:        0.3,
		AutoOrganize:           true,
		Interactive:            true,
		PromptTimeoutSeconds:   30,
		DiffMaxChars:           5000,
		ExcludedPaths:          []string{"node_modules", "venv", "__pycache__", ".git"},
		MaxSearchResults:       10,
		Tokenizer:              "cl100k_base",
		UseAI:                  false,
		AIProvider:             "auto",
		AIModel:                "tinyllama",
		AIBaseURL:              "http://localhost:11434/v1",
		AITimeoutSeconds:       60,
		AIMaxInputTokens:       1500,
		EmbeddingProvider:      "auto",
		EmbeddingModel:         "nomic-embed-text",
		EmbeddingMinSimilarity: 0.5,
	}, nil
}

// Load reads config.toml from the config dir on top of Default. A non-empty
// dataDir (from --data-dir) wins over SAGA_DATA_DIR and the file.
func Load(dataDir string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	path := cfg.Path()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.DataDir = resolveDataDir(cfg, dataDir)
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Path() string {
	return filepath.Join(c.ConfigDir, "config.toml")
}

func (c Config) RepoDBPath(repoID string) string {
	return filepath.Join(c.DataDir, "repos", repoID, "index.db")
}

func (c Config) Save() error {
	if err := os.MkdirAll(c.ConfigDir, 0o755); err != nil {
		return err
	}
	return writeConfigFile(c.Path(), c)
}

func writeConfigFile(path string, cfg Config) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func xdgHomes() (string, string, string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	dataHome := os.Getenv("XDG_DATA_HOME")
	cacheHome := os.Getenv("XDG_CACHE_HOME")

	if configHome != "" && dataHome != "" && cacheHome != "" {
		return configHome, dataHome, cacheHome, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", "", err
	}

	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	return configHome, dataHome, cacheHome, nil
}

func resolveDataDir(cfg Config, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	if env := strings.TrimSpace(os.Getenv("SAGA_DATA_DIR")); env != "" {
		return env
	}
	if strings.TrimSpace(cfg.DataDir) != "" {
		return cfg.DataDir
	}
	return filepath.Join(".", appDirName)
}
