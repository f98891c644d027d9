package app

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"sagashark/internal/capture"
)

func runSession(args []string, g globalFlags, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: saga session start|end|show [options]")
		return 2
	}
	sub := strings.ToLower(args[0])
	fs := flag.NewFlagSet("session "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	tool := fs.String("tool", "", "Tool driving the session (claude, cursor, ...)")
	summary := fs.String("summary", "", "What the session was about")
	duration := fs.String("duration", "", "Override the measured duration (e.g. 2h30m)")
	var commands, errs, files stringList
	fs.Var(&commands, "command", "Command that was run (repeatable)")
	fs.Var(&errs, "error", "Error that was hit (repeatable)")
	fs.Var(&files, "file", "File that was touched (repeatable)")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	e, err := loadEnv(g, out, errOut)
	if err != nil {
		return envError(errOut, err)
	}
	current, err := capture.LoadSession(e.root)
	if err != nil {
		fmt.Fprintf(errOut, "session error: %v\n", err)
		return 1
	}

	switch sub {
	case "start":
		if current != nil {
			e.logger.Warn("replacing unfinished session", "session_id", current.SessionID)
		}
		s := &capture.Session{
			Tool:                strings.TrimSpace(*tool),
			SessionID:           uuid.NewString(),
			ConversationSummary: strings.TrimSpace(*summary),
			CommandsRun:         commands,
			ErrorsEncountered:   errs,
			FilesTouched:        files,
			Timestamp:           time.Now(),
		}
		if s.Tool == "" {
			s.Tool = "unknown"
		}
		if err := capture.SaveSession(e.root, s); err != nil {
			fmt.Fprintf(errOut, "session error: %v\n", err)
			return 1
		}
		if *jsonOut {
			return writeJSON(out, errOut, s)
		}
		fmt.Fprintf(out, "Session %s started (tool: %s)\n", s.SessionID, s.Tool)
		return 0

	case "end":
		if current == nil {
			fmt.Fprintln(errOut, "session error: no active session (run `saga session start`)")
			return 1
		}
		if t := strings.TrimSpace(*tool); t != "" {
			current.Tool = t
		}
		if s := strings.TrimSpace(*summary); s != "" {
			current.ConversationSummary = s
		}
		current.CommandsRun = append(current.CommandsRun, commands...)
		current.ErrorsEncountered = append(current.ErrorsEncountered, errs...)
		current.FilesTouched = append(current.FilesTouched, files...)
		if *duration != "" {
			d, err := time.ParseDuration(*duration)
			if err != nil || d <= 0 {
				fmt.Fprintf(errOut, "session error: invalid --duration %q\n", *duration)
				return 2
			}
			current.DurationSeconds = d.Seconds()
		} else if !current.Timestamp.IsZero() {
			current.DurationSeconds = time.Since(current.Timestamp).Seconds()
		}
		if err := capture.SaveSession(e.root, current); err != nil {
			fmt.Fprintf(errOut, "session error: %v\n", err)
			return 1
		}
		if *jsonOut {
			return writeJSON(out, errOut, current)
		}
		fmt.Fprintf(out, "Session ended after %.1f hours; it will be attached to the next captured saga\n", current.Hours())
		return 0

	case "show":
		if *jsonOut {
			return writeJSON(out, errOut, current)
		}
		if current == nil {
			fmt.Fprintln(out, "No active session")
			return 0
		}
		fmt.Fprintf(out, "Session %s\n", current.SessionID)
		fmt.Fprintf(out, "  tool: %s\n", current.Tool)
		if !current.Timestamp.IsZero() {
			fmt.Fprintf(out, "  started: %s\n", humanize.Time(current.Timestamp))
		}
		if current.Duration() != nil {
			fmt.Fprintf(out, "  duration: %.1f hours\n", current.Hours())
		}
		if current.ConversationSummary != "" {
			fmt.Fprintf(out, "  summary: %s\n", current.ConversationSummary)
		}
		writeList(out, "commands", current.CommandsRun)
		writeList(out, "errors", current.ErrorsEncountered)
		writeList(out, "files", current.FilesTouched)
		return 0

	default:
		fmt.Fprintf(errOut, "unknown session command: %s\n", sub)
		return 2
	}
}

func writeList(out io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(out, "  %s:\n", label)
	for _, v := range values {
		fmt.Fprintf(out, "    - %s\n", v)
	}
}
