package token

import (
	"strings"
	"testing"
)

func newCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := New("cl100k_base")
	if err != nil {
		t.Fatalf("Failed to create tokenizer: %v", err)
	}
	return c
}

func TestCountAndTruncate(t *testing.T) {
	c := newCounter(t)

	if count := c.Count("Hello world"); count != 2 {
		t.Errorf("Expected 2 tokens for 'Hello world', got %d", count)
	}
	if count := c.Count(""); count != 0 {
		t.Errorf("Expected 0 tokens for empty string, got %d", count)
	}

	longText := strings.Repeat("token ", 50)
	if count := c.Count(longText); count <= 10 {
		t.Errorf("Expected > 10 tokens, got %d", count)
	}
	truncated, kept := c.Truncate(longText, 10)
	if kept != 10 {
		t.Errorf("Truncated count %d, want 10", kept)
	}
	if len(truncated) >= len(longText) {
		t.Errorf("Truncated text length %d >= original %d", len(truncated), len(longText))
	}

	short, count := c.Truncate("short", 100)
	if short != "short" || count != c.Count("short") {
		t.Errorf("Truncate changed short string: %q (%d)", short, count)
	}
	if uni, _ := c.Truncate("Test 🌍", 10); uni != "Test 🌍" {
		t.Errorf("Truncate failed on short unicode string")
	}
}

func TestEmptyEncodingDefaults(t *testing.T) {
	if _, err := New(""); err != nil {
		t.Fatalf("expected default encoding: %v", err)
	}
}

func TestFitDiff(t *testing.T) {
	c := newCounter(t)
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "+\tcount := count + 1")
	}
	diff := strings.Join(lines, "\n")
	fixed := "fix: off by one in counter"

	fitted := c.FitDiff(fixed, diff, 100)
	if c.Count(fixed)+c.Count(fitted) > 100 {
		t.Fatalf("fitted diff exceeds budget: %d tokens", c.Count(fixed)+c.Count(fitted))
	}
	if !strings.HasPrefix(diff, fitted) || strings.HasSuffix(fitted, "\n") {
		t.Fatalf("expected a line-aligned prefix, got %q", fitted)
	}
	if got := c.FitDiff(fixed, "+x", 100); got != "+x" {
		t.Fatalf("expected small diff untouched, got %q", got)
	}
	if got := c.FitDiff(strings.Repeat("word ", 200), diff, 10); got != "" {
		t.Fatalf("expected empty diff when fixed text fills the budget, got %q", got)
	}
	if got := c.FitDiff(fixed, diff, 0); got != diff {
		t.Fatal("expected zero budget to disable trimming")
	}
}
