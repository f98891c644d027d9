package enhance

import (
	"fmt"
	"strings"

	"sagashark/internal/saga"
)

var typeGuidance = map[saga.Type]string{
	saga.TypeDebugging: "Describe a debugging session: the symptoms, how it was investigated, what failed, the root cause, the fix, how to verify it and the lessons.",
	saga.TypeFeature:   "Describe a feature implementation: what it does, the requirements, the approach, key decisions, testing and future considerations.",
	saga.TypeIncident:  "Describe a critical incident: an executive summary, the timeline, impact, root causes, immediate and long-term fixes and postmortem findings.",
}

func systemPrompt(typ saga.Type) string {
	return "You write concise engineering narratives (sagas) from git commits so that a future developer can understand what happened. " +
		typeGuidance[typ] +
		" Base every statement on the commit message, files, diff and session notes. When something cannot be inferred, say so in one short sentence. " +
		"Answer with a single JSON object."
}

func fixedPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saga type: %s\n\n", req.Type)
	fmt.Fprintf(&b, "Commit message:\n%s\n\n", strings.TrimSpace(req.CommitMessage))
	if len(req.FilesChanged) > 0 {
		fmt.Fprintf(&b, "Files changed: %s\n", strings.Join(req.FilesChanged, ", "))
	} else {
		b.WriteString("Files changed: none\n")
	}
	if s := strings.TrimSpace(req.SessionContext); s != "" {
		fmt.Fprintf(&b, "\nSession context: %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}
