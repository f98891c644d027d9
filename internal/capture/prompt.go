package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"sagashark/internal/significance"
)

const DefaultPromptTimeout = 30 * time.Second

var promptKeywords = []string{"fix", "fixed", "resolve", "resolved", "debug", "finally", "hours", "critical", "bug", "issue"}

// Notes are the developer's own answers gathered at capture time.
type Notes struct {
	RootCause      string `json:"root_cause,omitempty"`
	FailedAttempts string `json:"failed_attempts,omitempty"`
	WhyItWorks     string `json:"why_it_works,omitempty"`
	Lesson         string `json:"lesson,omitempty"`
	TimeSpent      string `json:"time_spent,omitempty"`
}

func (n Notes) Empty() bool {
	return n == Notes{}
}

// Markdown renders the answered questions as a block placed above the
// generated content. Unanswered questions are left out.
func (n Notes) Markdown() string {
	if n.Empty() {
		return ""
	}
	var d doc
	d.add("## 🧑‍💻 Developer Notes", "")
	for _, item := range []struct{ label, value string }{
		{"🎯 Root Cause", n.RootCause},
		{"✅ Why This Fix Works", n.WhyItWorks},
		{"❌ What Didn't Work", n.FailedAttempts},
		{"📝 Key Takeaway", n.Lesson},
		{"⏱️ Time Spent", n.TimeSpent},
	} {
		if v := strings.TrimSpace(item.value); v != "" {
			d.addf("**%s**: %s", item.label, v)
		}
	}
	d.add("", "---", "")
	return d.String()
}

// Prompter asks the developer for notes. Implementations must return
// whatever was answered when interrupted.
type Prompter interface {
	Ask(ctx context.Context) Notes
}

// ShouldPrompt is true for high scores and for messages that read like a
// debugging story.
func ShouldPrompt(score significance.Result, message string) bool {
	if score.Score >= 0.6 {
		return true
	}
	lower := strings.ToLower(message)
	for _, k := range promptKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalPrompter reads one line per question, waiting at most timeout for
// each. A timeout skips the question; EOF or cancellation ends the session.
type TerminalPrompter struct {
	in      io.Reader
	out     io.Writer
	timeout time.Duration

	start sync.Once
	lines chan string
}

func NewTerminalPrompter(in io.Reader, out io.Writer, timeout time.Duration) *TerminalPrompter {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	return &TerminalPrompter{in: in, out: out, timeout: timeout}
}

// readLines starts the one reader goroutine every Ask shares, so a timed
// out question never strands a reader on in. The goroutine ends at EOF; a
// blocked Read cannot be interrupted, so callers close in to release it.
func (p *TerminalPrompter) readLines() <-chan string {
	p.start.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- strings.TrimSpace(scanner.Text())
			}
		}()
	})
	return p.lines
}

func (p *TerminalPrompter) Ask(ctx context.Context) Notes {
	lines := p.readLines()

	fmt.Fprintln(p.out, "\n🎯 This looks like a significant fix. A few quick questions (Enter to skip):")
	var notes Notes
	questions := []struct {
		prompt string
		dst    *string
	}{
		{"❓ What was the ROOT CAUSE? (not symptoms)", &notes.RootCause},
		{"❌ What did you try that DIDN'T work? (or press Enter to skip)", &notes.FailedAttempts},
		{"✅ WHY does this fix work?", &notes.WhyItWorks},
		{"📝 Key lesson for next time?", &notes.Lesson},
		{"⏱️  How long did this take? (e.g., '2h', '30m', or Enter to skip)", &notes.TimeSpent},
	}
	for _, q := range questions {
		fmt.Fprintf(p.out, "\n%s\n> ", q.prompt)
		timer := time.NewTimer(p.timeout)
		select {
		case line, ok := <-lines:
			timer.Stop()
			if !ok {
				fmt.Fprintln(p.out, "\n(Skipped)")
				return notes
			}
			*q.dst = line
		case <-timer.C:
			fmt.Fprintln(p.out, "\n(Timeout - skipping)")
		case <-ctx.Done():
			timer.Stop()
			fmt.Fprintln(p.out, "\n(Skipped)")
			return notes
		}
	}
	return notes
}
