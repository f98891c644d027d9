package capture

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"sagashark/internal/enhance"
	"sagashark/internal/patterns"
	"sagashark/internal/saga"
	"sagashark/internal/significance"
)

const (
	maxListedFiles      = 20
	maxCommands         = 10
	maxSessionErrors    = 5
	excerptScanLines    = 30
	enhancedDiffLines   = 50
	keyChangesThreshold = 10
	maxTitleLength      = 80
)

var (
	symptomPattern = regexp.MustCompile(`(?i)(error|exception|crash|fail)[^\n]*`)
	titlePrefix    = regexp.MustCompile(`(?i)^(fix|feat|chore|docs|test|refactor|style|perf|build|ci)(\([^)]+\))?:\s*`)
)

// Builder renders saga markdown from a scored commit.
type Builder struct {
	patterns *patterns.Extractor
}

func NewBuilder(p *patterns.Extractor) *Builder {
	return &Builder{patterns: p}
}

// Build never fails. An enhancement without usable fields, or for a type
// with no typed layout, falls back to the heuristic layout.
func (b *Builder) Build(ctx significance.CommitContext, score significance.Result, session *Session, enh *enhance.Result) string {
	typ := score.SuggestedType
	if enh != nil && enh.Usable() && enhance.Supports(typ) {
		return b.buildEnhanced(ctx, score, session, enh)
	}
	return b.buildBasic(ctx, score, session)
}

type doc struct {
	lines []string
}

func (d *doc) add(lines ...string) {
	d.lines = append(d.lines, lines...)
}

func (d *doc) addf(format string, args ...any) {
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// section adds a heading and body only when body has content.
func (d *doc) section(heading, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	d.add(heading, "", strings.TrimSpace(body), "")
}

func (d *doc) String() string {
	return strings.Join(d.lines, "\n")
}

func (b *Builder) buildBasic(ctx significance.CommitContext, score significance.Result, session *Session) string {
	typ := score.SuggestedType
	lowerMsg := strings.ToLower(ctx.Message)
	var d doc

	d.addf("**Timestamp**: %s", ctx.Timestamp.Format("2006-01-02 15:04:05"))
	d.addf("**Branch**: %s", ctx.Branch)
	d.addf("**Significance Score**: %s", score.Display())
	d.addf("**Factors**: %s", strings.Join(score.FactorStrings(), ", "))
	d.add("", "---", "")

	if session != nil {
		d.add("## 🔧 Development Session")
		d.addf("**Tool**: %s", session.Tool)
		if session.Duration() != nil {
			d.addf("**Duration**: %.1f hours", session.Hours())
		}
		if session.ConversationSummary != "" {
			d.addf("**Summary**: %s", session.ConversationSummary)
		}
		d.add("")
	}

	d.add("## 📋 The Problem")
	if strings.Contains(lowerMsg, "fix") || strings.Contains(lowerMsg, "bug") {
		d.add("### Symptoms")
		symptoms := symptomPattern.FindAllString(ctx.Message, -1)
		if len(symptoms) == 0 {
			symptoms = []string{firstLine(ctx.Message)}
		}
		for _, s := range symptoms {
			d.add("- " + strings.TrimSpace(s))
		}
	} else {
		d.add(ctx.Message)
	}
	d.add("")

	if typ == saga.TypeDebugging {
		d.add("## 🔍 Investigation")
	} else {
		d.add("## 💡 Implementation")
	}
	if session != nil && len(session.CommandsRun) > 0 {
		cmds := session.CommandsRun
		if len(cmds) > maxCommands {
			cmds = cmds[:maxCommands]
		}
		d.add("### Commands Executed", "```bash")
		d.add(cmds...)
		d.add("```", "")
	}

	d.add("### Files Modified")
	for i, file := range ctx.FilesChanged {
		if i == maxListedFiles {
			d.addf("- ... and %d more files", len(ctx.FilesChanged)-maxListedFiles)
			break
		}
		d.addf("- `%s` (%s)", file, FileType(file))
	}
	d.add("")

	if ctx.LinesAdded > keyChangesThreshold || ctx.LinesDeleted > keyChangesThreshold {
		d.add("### Key Changes")
		d.addf("- **Lines added**: %d", ctx.LinesAdded)
		d.addf("- **Lines deleted**: %d", ctx.LinesDeleted)
		d.add("")
		if excerpt := diffExcerpt(ctx.DiffContent); len(excerpt) > 0 {
			d.add("#### Code Diff (excerpt)", "```diff")
			d.add(excerpt...)
			d.add("```", "")
		}
	}

	var errs patterns.Errors
	if b.patterns != nil {
		errs = b.patterns.ExtractErrors(ctx.Message, ctx.DiffContent)
	}
	var sessionErrs []string
	if session != nil {
		sessionErrs = session.ErrorsEncountered
		if len(sessionErrs) > maxSessionErrors {
			sessionErrs = sessionErrs[:maxSessionErrors]
		}
	}
	if !errs.Empty() || len(sessionErrs) > 0 {
		d.add("## ⚠️ Errors Found")
		var found []string
		found = append(found, errs.FromMessage...)
		found = append(found, errs.FromDiff...)
		found = append(found, sessionErrs...)
		for _, e := range found {
			d.add("- " + e)
		}
		for _, trace := range errs.StackTraces {
			d.add("", "```", trace, "```")
		}
		d.add("")
	}

	if b.patterns != nil {
		if notes := b.patterns.ExtractInvestigation(ctx.DiffContent, patterns.DefaultMaxContexts); len(notes) > 0 {
			d.add("## 🔎 Investigation Notes")
			for _, n := range notes {
				d.addf("### %s (%s)", n.Description, n.Category)
				d.add("```diff", n.Excerpt, "```", "")
			}
		}
	}

	if strings.Contains(lowerMsg, "fix") || strings.Contains(lowerMsg, "resolve") {
		d.add("## ✅ Resolution", ctx.Message, "")
	}

	if typ == saga.TypeDebugging {
		d.add("## 📝 Lessons Learned", "- [To be filled in during review]", "")
	}

	if typ == saga.TypeDebugging || typ == saga.TypeFeature {
		d.add("## 🧪 Verification")
		steps := b.verificationSteps(ctx.FilesChanged)
		if len(steps) == 0 {
			steps = []string{"[Add verification steps]"}
		}
		for _, s := range steps {
			d.add("- " + s)
		}
		d.add("")
	}

	footer(&d, ctx, session)
	return d.String()
}

func (b *Builder) buildEnhanced(ctx significance.CommitContext, score significance.Result, session *Session, enh *enhance.Result) string {
	typ := score.SuggestedType
	var d doc
	d.add("# "+Title(ctx.Message), "")
	d.addf("**Date**: %s", ctx.Timestamp.Format("2006-01-02"))
	d.addf("**Type**: %s", titleCase(string(typ)))
	d.addf("**Branch**: %s", ctx.Branch)
	d.addf("**Significance Score**: %s", score.Display())
	d.add("", "---", "")

	switch {
	case enh.Debugging != nil:
		r := enh.Debugging
		if strings.TrimSpace(r.Symptoms) != "" {
			d.add("## 📋 The Problem", "", "### Symptoms", strings.TrimSpace(r.Symptoms), "")
		}
		d.section("## 🔍 Investigation", r.InvestigationSteps)
		d.section("## ❌ Failed Attempts", r.FailedAttempts)
		d.section("## 💡 Root Cause", r.RootCause)
		if strings.TrimSpace(r.Solution) != "" {
			d.add("## ✅ Solution", "", strings.TrimSpace(r.Solution))
			if ctx.DiffContent != "" {
				lines := strings.Split(ctx.DiffContent, "\n")
				if len(lines) > enhancedDiffLines {
					lines = lines[:enhancedDiffLines]
				}
				d.add("", "### Code Changes", "```diff")
				d.add(lines...)
				d.add("```")
			}
			d.add("")
		}
		d.section("## 🧪 Verification", b.orVerificationSteps(r.Verification, ctx.FilesChanged))
		d.section("## 📝 Lessons Learned", r.Lessons)
	case enh.Feature != nil:
		r := enh.Feature
		d.section("## 📋 Feature Overview", r.FeatureDescription)
		d.section("## 📝 Requirements", r.Requirements)
		d.section("## 🏗️ Implementation", r.ImplementationApproach)
		d.section("## 🎯 Key Decisions", r.KeyDecisions)
		d.section("## 🧪 Testing", b.orVerificationSteps(r.TestingApproach, ctx.FilesChanged))
		d.section("## 🔮 Future Considerations", r.FutureConsiderations)
	case enh.Incident != nil:
		r := enh.Incident
		d.section("## 📊 Executive Summary", r.IncidentSummary)
		d.section("## 🕐 Timeline", r.Timeline)
		d.section("## 💥 Impact Assessment", r.Impact)
		d.section("## 🔍 Root Causes", r.RootCauses)
		d.section("## 🚨 Immediate Actions", r.ImmediateFix)
		d.section("## 📋 Long-term Fixes", r.LongTermFix)
		d.section("## 📝 Postmortem", r.Postmortem)
	}

	footer(&d, ctx, session)
	return d.String()
}

func (b *Builder) verificationSteps(files []string) []string {
	if b.patterns == nil {
		return nil
	}
	return b.patterns.VerificationSteps(files)
}

// orVerificationSteps keeps an AI answer and otherwise lists the steps
// suggested by the changed files.
func (b *Builder) orVerificationSteps(answer string, files []string) string {
	if strings.TrimSpace(answer) != "" {
		return answer
	}
	steps := b.verificationSteps(files)
	for i, s := range steps {
		steps[i] = "- " + s
	}
	return strings.Join(steps, "\n")
}

func footer(d *doc, ctx significance.CommitContext, session *Session) {
	d.add("---", "")
	d.addf("**Files Changed**: %d", len(ctx.FilesChanged))
	d.addf("**Lines Added**: %d", ctx.LinesAdded)
	d.addf("**Lines Deleted**: %d", ctx.LinesDeleted)
	if session != nil && session.Tool != "" {
		d.addf("**Development Tool**: %s", session.Tool)
	}
}

// diffExcerpt keeps added, removed and hunk lines from the head of a diff.
func diffExcerpt(diff string) []string {
	if diff == "" {
		return nil
	}
	lines := strings.Split(diff, "\n")
	if len(lines) > excerptScanLines {
		lines = lines[:excerptScanLines]
	}
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "@@") {
			out = append(out, line)
		}
	}
	return out
}

// Title is the commit subject without a conventional prefix, capitalized and
// capped at 80 characters.
func Title(message string) string {
	subject := titlePrefix.ReplaceAllString(firstLine(message), "")
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(subject)
	subject = string(unicode.ToUpper(r)) + subject[size:]
	if utf8.RuneCountInString(subject) > maxTitleLength {
		runes := []rune(subject)
		subject = string(runes[:maxTitleLength-3]) + "..."
	}
	return subject
}

type tagRule struct {
	tag      string
	keywords []string
}

var tagRules = []tagRule{
	{"bugfix", []string{"fix", "bug", "issue", "error"}},
	{"feature", []string{"feature", "add", "new", "implement"}},
	{"performance", []string{"performance", "optimize", "speed", "faster"}},
	{"security", []string{"security", "vulnerability", "auth", "permission"}},
	{"database", []string{"database", "migration", "schema", "query"}},
	{"api", []string{"api", "endpoint", "rest", "graphql"}},
	{"ui", []string{"ui", "ux", "frontend", "css", "style"}},
	{"testing", []string{"test", "spec", "coverage", "jest", "pytest"}},
	{"documentation", []string{"docs", "readme", "documentation"}},
	{"configuration", []string{"config", "env", "settings", "setup"}},
}

// Tags derives tags from the saga type, message keywords and file names.
func Tags(ctx significance.CommitContext, typ saga.Type) []string {
	tags := []string{string(typ)}
	lower := strings.ToLower(ctx.Message)
	for _, rule := range tagRules {
		for _, k := range rule.keywords {
			if strings.Contains(lower, k) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	for _, file := range ctx.FilesChanged {
		lowerFile := strings.ToLower(file)
		switch {
		case strings.Contains(lowerFile, "test"):
			tags = append(tags, "testing")
		case strings.HasSuffix(lowerFile, ".md"):
			tags = append(tags, "documentation")
		case strings.Contains(lowerFile, "migration"):
			tags = append(tags, "database")
		}
	}
	return saga.NormalizeTags(tags)
}

var fileTypes = map[string]string{
	".py": "Python", ".js": "JavaScript", ".ts": "TypeScript", ".jsx": "React",
	".tsx": "React TypeScript", ".php": "PHP", ".rb": "Ruby", ".go": "Go",
	".rs": "Rust", ".java": "Java", ".c": "C", ".cpp": "C++", ".cs": "C#",
	".swift": "Swift", ".kt": "Kotlin", ".scala": "Scala", ".sql": "SQL",
	".html": "HTML", ".css": "CSS", ".scss": "SCSS", ".json": "JSON",
	".yaml": "YAML", ".yml": "YAML", ".xml": "XML", ".md": "Markdown",
	".txt": "Text", ".sh": "Shell", ".bash": "Bash", ".dockerfile": "Docker",
	".gitignore": "Git", ".env": "Environment",
}

// FileType names the language or format of path by extension.
func FileType(path string) string {
	if t, ok := fileTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "File"
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
