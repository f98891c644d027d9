package saga

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Type string

const (
	TypeGeneral      Type = "general"
	TypeDebugging    Type = "debugging"
	TypeFeature      Type = "feature"
	TypeArchitecture Type = "architecture"
	TypeOptimization Type = "optimization"
	TypeIncident     Type = "incident"
)

var Types = []Type{TypeGeneral, TypeDebugging, TypeFeature, TypeArchitecture, TypeOptimization, TypeIncident}

// ParseType accepts a saga type name; "critical" is an alias of incident.
func ParseType(value string) (Type, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "critical" {
		return TypeIncident, true
	}
	for _, t := range Types {
		if string(t) == value {
			return t, true
		}
	}
	return TypeGeneral, false
}

type Status string

const (
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusDeprecated Status = "deprecated"
)

const (
	DefaultBranch = "main"
	MaxTags       = 10
	timeLayout    = "2006-01-02T15:04:05"
)

var (
	ErrNoFrontmatter         = errors.New("missing frontmatter")
	ErrIncompleteFrontmatter = errors.New("incomplete frontmatter")
)

type Saga struct {
	ID           string
	Title        string
	Content      string
	Type         Type
	Timestamp    time.Time
	Branch       string
	Tags         []string
	FilesChanged []string
	Status       Status
	CommitID     string
}

// New builds an unsaved saga with defaults applied and its ID derived from
// title and timestamp.
func New(title, content string, typ Type, ts time.Time) *Saga {
	if ts.IsZero() {
		ts = time.Now()
	}
	s := &Saga{
		Title:     title,
		Content:   content,
		Type:      typ,
		Timestamp: ts.Truncate(time.Second),
		Branch:    DefaultBranch,
		Status:    StatusActive,
	}
	s.normalize()
	return s
}

func (s *Saga) normalize() {
	if strings.TrimSpace(s.Title) == "" {
		s.Title = "Untitled"
	}
	if s.Type == "" {
		s.Type = TypeGeneral
	}
	if strings.TrimSpace(s.Branch) == "" {
		s.Branch = DefaultBranch
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	s.Tags = NormalizeTags(s.Tags)
	if len(s.FilesChanged) == 0 {
		s.FilesChanged = nil
	}
	if s.ID == "" {
		s.ID = GenerateID(s.Title, s.Timestamp)
	}
}

// GenerateID hashes title and timestamp. Identical pairs collide.
func GenerateID(title string, ts time.Time) string {
	sum := sha256.Sum256([]byte(title + ts.Format(timeLayout)))
	return "saga-" + hex.EncodeToString(sum[:])[:8]
}

// NormalizeTags drops blanks and duplicates, keeps insertion order and caps
// the list at MaxTags. Comparison is case-sensitive.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

type frontmatter struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Type         string   `yaml:"type"`
	Timestamp    string   `yaml:"timestamp"`
	Branch       string   `yaml:"branch"`
	Status       string   `yaml:"status"`
	Tags         []string `yaml:"tags"`
	FilesChanged []string `yaml:"files_changed"`
	Commit       string   `yaml:"commit,omitempty"`
}

func (s *Saga) Markdown() (string, error) {
	fm := frontmatter{
		ID:           s.ID,
		Title:        s.Title,
		Type:         string(s.Type),
		Timestamp:    s.Timestamp.Format(time.RFC3339),
		Branch:       s.Branch,
		Status:       string(s.Status),
		Tags:         nonNil(s.Tags),
		FilesChanged: nonNil(s.FilesChanged),
		Commit:       s.CommitID,
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	return fmt.Sprintf("---\n%s---\n\n%s", buf.String(), s.Content), nil
}

// Parse reads a saga back from its markdown form.
func Parse(text string) (*Saga, error) {
	raw, body, err := splitFrontmatter(text)
	if err != nil {
		return nil, err
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	ts, err := parseTimestamp(fm.Timestamp)
	if err != nil {
		return nil, err
	}
	s := &Saga{
		ID:           strings.TrimSpace(fm.ID),
		Title:        fm.Title,
		Content:      body,
		Type:         Type(strings.TrimSpace(fm.Type)),
		Timestamp:    ts,
		Branch:       fm.Branch,
		Tags:         fm.Tags,
		FilesChanged: fm.FilesChanged,
		Status:       Status(strings.TrimSpace(fm.Status)),
		CommitID:     fm.Commit,
	}
	s.normalize()
	return s, nil
}

func ReadFile(path string) (*Saga, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Preview joins the first non-empty content lines, capped at 200 chars.
func (s *Saga) Preview(maxLines int) string {
	if maxLines <= 0 {
		maxLines = 3
	}
	lines := strings.Split(s.Content, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	var parts []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	preview := strings.Join(parts, " ")
	runes := []rune(preview)
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return preview
}

func splitFrontmatter(content string) (string, string, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(content, "---") {
		return "", "", ErrNoFrontmatter
	}
	rest := content[3:]
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "---") {
		return "", strings.TrimSpace(rest[3:]), nil
	}
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", ErrIncompleteFrontmatter
	}
	return rest[:idx], strings.TrimSpace(rest[idx+4:]), nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().Truncate(time.Second), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
