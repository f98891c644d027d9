package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SessionFileName is the transient context file consumed by the next capture.
const SessionFileName = ".saga_context.json"

// Session describes the coding session that produced the next commit.
type Session struct {
	Tool                string    `json:"tool"`
	SessionID           string    `json:"session_id,omitempty"`
	DurationSeconds     float64   `json:"duration_seconds,omitempty"`
	ConversationSummary string    `json:"conversation_summary,omitempty"`
	FilesTouched        []string  `json:"files_touched,omitempty"`
	CommandsRun         []string  `json:"commands_run,omitempty"`
	ErrorsEncountered   []string  `json:"errors_encountered,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

func SessionPath(root string) string {
	return filepath.Join(root, SessionFileName)
}

// LoadSession returns nil without error when no session file exists.
func LoadSession(root string) (*Session, error) {
	data, err := os.ReadFile(SessionPath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", SessionFileName, err)
	}
	if strings.TrimSpace(s.Tool) == "" {
		s.Tool = "unknown"
	}
	return &s, nil
}

func SaveSession(root string, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := SessionPath(root) + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, SessionPath(root))
}

func ClearSession(root string) error {
	err := os.Remove(SessionPath(root))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Duration is nil when the session never recorded one.
func (s *Session) Duration() *time.Duration {
	if s == nil || s.DurationSeconds <= 0 {
		return nil
	}
	d := time.Duration(s.DurationSeconds * float64(time.Second))
	return &d
}

// Hours is the session duration in hours, or zero.
func (s *Session) Hours() float64 {
	if d := s.Duration(); d != nil {
		return d.Hours()
	}
	return 0
}

// Summary flattens the session into one line for model prompts.
func (s *Session) Summary() string {
	if s == nil {
		return ""
	}
	var parts []string
	if s.Tool != "" {
		parts = append(parts, "Tool: "+s.Tool)
	}
	if s.Duration() != nil {
		parts = append(parts, fmt.Sprintf("Duration: %.1f hours", s.Hours()))
	}
	if s.ConversationSummary != "" {
		parts = append(parts, "Summary: "+s.ConversationSummary)
	}
	if len(s.ErrorsEncountered) > 0 {
		errs := s.ErrorsEncountered
		if len(errs) > 3 {
			errs = errs[:3]
		}
		parts = append(parts, "Errors: "+strings.Join(errs, ", "))
	}
	return strings.Join(parts, " | ")
}
