package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setXDG(t *testing.T, base string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "cache"))
	t.Setenv("SAGA_DATA_DIR", "")
}

func TestLoadSave(t *testing.T) {
	tmpDir := t.TempDir()
	setXDG(t, tmpDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load default failed: %v", err)
	}
	if cfg.MinSignificance != 0.3 {
		t.Errorf("Expected default min_significance 0.3, got %v", cfg.MinSignificance)
	}
	if !cfg.AutoOrganize {
		t.Errorf("Expected auto_organize default true")
	}
	if cfg.DiffMaxChars != 5000 {
		t.Errorf("Expected diff_max_chars 5000, got %d", cfg.DiffMaxChars)
	}
	if cfg.PromptTimeoutSeconds != 30 {
		t.Errorf("Expected prompt timeout 30, got %d", cfg.PromptTimeoutSeconds)
	}
	if cfg.AIModel != "tinyllama" {
		t.Errorf("Expected ai_model tinyllama, got %s", cfg.AIModel)
	}
	if len(cfg.ExcludedPaths) != 4 {
		t.Errorf("Expected 4 excluded paths, got %v", cfg.ExcludedPaths)
	}
	if cfg.DataDir != filepath.Join(tmpDir, "data", "saga") {
		t.Errorf("unexpected data dir %s", cfg.DataDir)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("expected data dir to be created: %v", err)
	}

	cfg.MinSignificance = 0.5
	cfg.UseAI = true
	cfg.AIModel = "llama3"
	cfg.ExcludedPaths = []string{"dist"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg2, err := Load("")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if cfg2.MinSignificance != 0.5 {
		t.Errorf("Expected min_significance 0.5, got %v", cfg2.MinSignificance)
	}
	if !cfg2.UseAI || cfg2.AIModel != "llama3" {
		t.Errorf("Expected ai settings to persist, got use_ai=%v model=%s", cfg2.UseAI, cfg2.AIModel)
	}
	if len(cfg2.ExcludedPaths) != 1 || cfg2.ExcludedPaths[0] != "dist" {
		t.Errorf("Expected excluded paths [dist], got %v", cfg2.ExcludedPaths)
	}
}

func TestDataDirOverrideOrder(t *testing.T) {
	tmpDir := t.TempDir()
	setXDG(t, tmpDir)

	envDir := filepath.Join(tmpDir, "env-data")
	t.Setenv("SAGA_DATA_DIR", envDir)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != envDir {
		t.Errorf("expected env data dir %s, got %s", envDir, cfg.DataDir)
	}

	flagDir := filepath.Join(tmpDir, "flag-data")
	cfg, err = Load(flagDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != flagDir {
		t.Errorf("expected flag data dir %s, got %s", flagDir, cfg.DataDir)
	}
	if got := cfg.RepoDBPath("r_1234"); got != filepath.Join(flagDir, "repos", "r_1234", "index.db") {
		t.Errorf("unexpected db path %s", got)
	}
}

func TestApplyRepoOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	setXDG(t, tmpDir)

	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(tmpDir, "repo")
	if err := ApplyRepoOverrides(&cfg, root); err != nil {
		t.Fatalf("missing repo config should not fail: %v", err)
	}
	if cfg.MinSignificance != 0.3 {
		t.Fatalf("unexpected change without repo config")
	}

	threshold := 0.6
	organize := false
	model := "  qwen2  "
	if err := WriteRepoConfig(root, RepoConfig{
		MinSignificance: &threshold,
		AutoOrganize:    &organize,
		ExcludedPaths:   []string{"vendor"},
		AIModel:         &model,
	}); err != nil {
		t.Fatalf("write repo config: %v", err)
	}

	if err := ApplyRepoOverrides(&cfg, root); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}
	if cfg.MinSignificance != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.MinSignificance)
	}
	if cfg.AutoOrganize {
		t.Errorf("expected auto_organize false")
	}
	if cfg.AIModel != "qwen2" {
		t.Errorf("expected trimmed model qwen2, got %q", cfg.AIModel)
	}
	if len(cfg.ExcludedPaths) != 5 || cfg.ExcludedPaths[4] != "vendor" {
		t.Errorf("expected vendor appended to excluded paths, got %v", cfg.ExcludedPaths)
	}
}

func TestLoadRepoConfigInvalidJSON(t *testing.T) {
	root := t.TempDir()
	path := RepoConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadRepoConfig(root); err == nil {
		t.Fatal("expected invalid json error")
	}
}
