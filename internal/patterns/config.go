package patterns

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"sagashark/internal/config"
)

const (
	FileName        = "patterns.json"
	ExampleFileName = "patterns.example.json"
)

// Entry is one key/value pair of an ordered mapping.
type Entry struct {
	Key   string
	Value string
}

type Framework struct {
	Name  string
	Paths []Entry
}

type DebugPattern struct {
	Pattern     string
	Description string
}

// Config holds the pattern categories. Mappings are slices so that
// defaults keep their precedence order after overrides are merged in.
type Config struct {
	ErrorPatterns         []string
	VerificationSteps     []Entry
	FrameworkPatterns     []Framework
	DebugPatterns         []DebugPattern
	InvestigationPatterns []Entry
	ProjectSpecific       []Entry
}

func Path(root string) string {
	return filepath.Join(root, config.RepoDirName, FileName)
}

// Load merges <root>/.sagashark/patterns.json over the defaults. A missing
// file yields the defaults; a broken one is logged and ignored.
func Load(root string, logger *slog.Logger) Config {
	cfg := Default()
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if !os.IsNotExist(err) && logger != nil {
			logger.Warn("read patterns override", "path", Path(root), "err", err)
		}
		return cfg
	}
	merged, err := Merge(cfg, data)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid patterns override, using defaults", "path", Path(root), "err", err)
		}
		return Default()
	}
	return merged
}

// Merge applies a JSON override: lists extend, mappings update in place or
// append new keys, framework entries replace by name.
func Merge(cfg Config, data []byte) (Config, error) {
	if !gjson.ValidBytes(data) {
		return cfg, fmt.Errorf("patterns override is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return cfg, fmt.Errorf("patterns override must be a JSON object")
	}

	doc.Get("error_patterns").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			cfg.ErrorPatterns = append(cfg.ErrorPatterns, s)
		}
		return true
	})
	cfg.VerificationSteps = mergeEntries(cfg.VerificationSteps, doc.Get("verification_steps"))
	cfg.InvestigationPatterns = mergeEntries(cfg.InvestigationPatterns, doc.Get("investigation_patterns"))
	cfg.ProjectSpecific = mergeEntries(cfg.ProjectSpecific, doc.Get("project_specific"))

	doc.Get("framework_patterns").ForEach(func(name, paths gjson.Result) bool {
		fw := Framework{Name: name.String(), Paths: mergeEntries(nil, paths)}
		for i := range cfg.FrameworkPatterns {
			if cfg.FrameworkPatterns[i].Name == fw.Name {
				cfg.FrameworkPatterns[i] = fw
				return true
			}
		}
		cfg.FrameworkPatterns = append(cfg.FrameworkPatterns, fw)
		return true
	})

	doc.Get("debug_patterns").ForEach(func(_, v gjson.Result) bool {
		var dp DebugPattern
		switch {
		case v.IsArray():
			pair := v.Array()
			if len(pair) > 0 {
				dp.Pattern = pair[0].String()
			}
			if len(pair) > 1 {
				dp.Description = pair[1].String()
			}
		case v.IsObject():
			dp.Pattern = v.Get("pattern").String()
			dp.Description = v.Get("description").String()
		}
		if dp.Pattern != "" {
			cfg.DebugPatterns = append(cfg.DebugPatterns, dp)
		}
		return true
	})
	return cfg, nil
}

func mergeEntries(entries []Entry, obj gjson.Result) []Entry {
	if !obj.IsObject() {
		return entries
	}
	out := append([]Entry(nil), entries...)
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		for i := range out {
			if out[i].Key == key {
				out[i].Value = v.String()
				return true
			}
		}
		out = append(out, Entry{Key: key, Value: v.String()})
		return true
	})
	return out
}

// Lookup returns the value stored under key.
func Lookup(entries []Entry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

type exampleFile struct {
	Comment           string                       `json:"_comment"`
	ErrorPatterns     []string                     `json:"error_patterns"`
	VerificationSteps map[string]string            `json:"verification_steps"`
	FrameworkPatterns map[string]map[string]string `json:"framework_patterns"`
	ProjectSpecific   map[string]string            `json:"project_specific"`
}

// WriteExample drops a commented starting point next to patterns.json.
func WriteExample(root string) (string, error) {
	example := exampleFile{
		Comment:           "Customize these patterns for your project. This file extends the default patterns.",
		ErrorPatterns:     []string{},
		VerificationSteps: map[string]string{".custom": "Run custom verification command"},
		FrameworkPatterns: map[string]map[string]string{
			"your_framework": {"pattern/": "Verification step for this pattern"},
		},
		ProjectSpecific: map[string]string{
			"test_command":   "npm test",
			"build_command":  "npm run build",
			"deploy_command": "npm run deploy",
		},
	}
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, config.RepoDirName, ExampleFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
