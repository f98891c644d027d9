package patterns

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
)

const (
	maxMessageErrors     = 5
	maxDiffErrors        = 5
	maxStackTraces       = 2
	minStackTraceChars   = 50
	maxStackTraceChars   = 500
	DefaultMaxContexts   = 3
	maxExcerptLines      = 10
	maxVerificationSteps = 5
)

const fullSuiteStep = "Run the full test suite"

var (
	pythonTracePattern = regexp.MustCompile(`Traceback \(most recent call last\):\n(?:[+\- ]?[ \t]+[^\n]*\n?)+(?:[+\- ]?\w+(?:Error|Exception)[^\n]*)?`)
	frameTracePattern  = regexp.MustCompile(`(?:[+\- ]?[ \t]*at [\w$.<>/]+ ?\([^)\n]*:\d+(?::\d+)?\)[^\n]*\n?){2,}`)
	hunkHeaderPattern  = regexp.MustCompile(`(?m)^@@[^\n]*@@[^\n]*$`)
)

// fileFramePattern matches a run of File "...", line N frames, each
// optionally followed by its indented source line, without the Traceback
// header.
var fileFramePattern = regexp.MustCompile(`(?:[+\- ]?[ \t]*File "[^"\n]+", line \d+[^\n]*\n?(?:[+\- ]?[ \t]{2,}[^F \t\n][^\n]*\n?)?){2,}`)

var categoryDescriptions = map[string]string{
	"conditionals":     "Modified conditional logic",
	"error_handling":   "Changed error handling",
	"function_changes": "Changed function definitions",
	"todo_comments":    "Added TODO or FIXME markers",
	"assertions":       "Updated assertions or tests",
}

type Errors struct {
	FromMessage []string `json:"from_message"`
	FromDiff    []string `json:"from_diff"`
	StackTraces []string `json:"stack_traces"`
}

func (e Errors) Empty() bool {
	return len(e.FromMessage) == 0 && len(e.FromDiff) == 0 && len(e.StackTraces) == 0
}

// Investigation is one diff hunk tagged with what kind of change it shows.
type Investigation struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Excerpt     string `json:"excerpt"`
}

type namedPattern struct {
	category    string
	description string
	re          *regexp.Regexp
}

// Extractor mines commit text using a compiled Config.
type Extractor struct {
	cfg        Config
	errorRes   []*regexp.Regexp
	hunkChecks []namedPattern
}

// NewExtractor compiles cfg. Patterns that do not compile are logged and
// skipped.
func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	e := &Extractor{cfg: cfg}
	warn := func(kind, expr string, err error) {
		if logger != nil {
			logger.Warn("skip invalid pattern", "kind", kind, "pattern", expr, "err", err)
		}
	}
	for _, expr := range cfg.ErrorPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			warn("error_patterns", expr, err)
			continue
		}
		e.errorRes = append(e.errorRes, re)
	}
	for _, dp := range cfg.DebugPatterns {
		re, err := regexp.Compile(dp.Pattern)
		if err != nil {
			warn("debug_patterns", dp.Pattern, err)
			continue
		}
		e.hunkChecks = append(e.hunkChecks, namedPattern{category: "debug_statements", description: dp.Description, re: re})
	}
	for _, entry := range cfg.InvestigationPatterns {
		re, err := regexp.Compile(entry.Value)
		if err != nil {
			warn("investigation_patterns", entry.Value, err)
			continue
		}
		desc, ok := categoryDescriptions[entry.Key]
		if !ok {
			desc = "Changes to " + strings.ReplaceAll(entry.Key, "_", " ")
		}
		e.hunkChecks = append(e.hunkChecks, namedPattern{category: entry.Key, description: desc, re: re})
	}
	return e
}

func (e *Extractor) Config() Config {
	return e.cfg
}

func (e *Extractor) ExtractErrors(message, diff string) Errors {
	var out Errors
	seen := map[string]bool{}
	out.FromMessage = e.collectErrors(message, seen, maxMessageErrors)
	out.FromDiff = e.collectErrors(diff, seen, maxDiffErrors)
	out.StackTraces = extractStackTraces(diff)
	return out
}

func (e *Extractor) collectErrors(text string, seen map[string]bool, limit int) []string {
	var out []string
	if text == "" {
		return out
	}
	for _, re := range e.errorRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			found := m[0]
			if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
				found = m[1]
			}
			found = strings.TrimSpace(found)
			if found == "" || seen[found] {
				continue
			}
			seen[found] = true
			out = append(out, found)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func extractStackTraces(diff string) []string {
	var out []string
	var taken [][]int
	for _, re := range []*regexp.Regexp{pythonTracePattern, frameTracePattern, fileFramePattern} {
		for _, loc := range re.FindAllStringIndex(diff, -1) {
			if overlaps(taken, loc) {
				continue
			}
			taken = append(taken, loc)
			m := strings.TrimSpace(diff[loc[0]:loc[1]])
			if len(m) < minStackTraceChars {
				continue
			}
			if len(m) > maxStackTraceChars {
				m = strings.ToValidUTF8(m[:maxStackTraceChars], "")
			}
			out = append(out, m)
			if len(out) == maxStackTraces {
				return out
			}
		}
	}
	return out
}

func overlaps(spans [][]int, loc []int) bool {
	for _, sp := range spans {
		if loc[0] < sp[1] && sp[0] < loc[1] {
			return true
		}
	}
	return false
}

// SplitHunks returns the body lines of each "@@ ... @@" hunk.
func SplitHunks(diff string) [][]string {
	locs := hunkHeaderPattern.FindAllStringIndex(diff, -1)
	hunks := make([][]string, 0, len(locs))
	for i, loc := range locs {
		end := len(diff)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.Trim(diff[loc[1]:end], "\n")
		var lines []string
		for _, line := range strings.Split(body, "\n") {
			if strings.HasPrefix(line, "diff --git") {
				break
			}
			lines = append(lines, line)
		}
		hunks = append(hunks, lines)
	}
	return hunks
}

// ExtractInvestigation tags up to maxContexts hunks, scanning at most twice
// that many. Debug statements win over the generic categories.
func (e *Extractor) ExtractInvestigation(diff string, maxContexts int) []Investigation {
	if maxContexts <= 0 {
		maxContexts = DefaultMaxContexts
	}
	hunks := SplitHunks(diff)
	if len(hunks) > 2*maxContexts {
		hunks = hunks[:2*maxContexts]
	}
	var out []Investigation
	for _, lines := range hunks {
		for _, check := range e.hunkChecks {
			excerpt := matchExcerpt(lines, check.re)
			if excerpt == "" {
				continue
			}
			out = append(out, Investigation{Category: check.category, Description: check.description, Excerpt: excerpt})
			break
		}
		if len(out) == maxContexts {
			break
		}
	}
	return out
}

func matchExcerpt(lines []string, re *regexp.Regexp) string {
	var picked []int
	seen := map[int]bool{}
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		for j := i - 1; j <= i+1; j++ {
			if j < 0 || j >= len(lines) || seen[j] {
				continue
			}
			seen[j] = true
			picked = append(picked, j)
		}
	}
	if len(picked) == 0 {
		return ""
	}
	var excerpt []string
	kept := map[string]bool{}
	for _, idx := range picked {
		line := strings.TrimRight(lines[idx], " \t\r")
		if kept[line] || strings.TrimSpace(line) == "" {
			continue
		}
		kept[line] = true
		excerpt = append(excerpt, line)
		if len(excerpt) == maxExcerptLines {
			break
		}
	}
	return strings.Join(excerpt, "\n")
}

// DetectFramework sniffs marker paths in the changed files.
func DetectFramework(files []string) string {
	joined := strings.ToLower(strings.Join(files, " "))
	switch {
	case strings.Contains(joined, "artisan") || strings.Contains(joined, "app/http"):
		return "laravel"
	case strings.Contains(joined, "manage.py") || strings.Contains(joined, "django"):
		return "django"
	case strings.Contains(joined, "package.json"):
		if strings.Contains(joined, "react") || strings.Contains(joined, ".jsx") || strings.Contains(joined, ".tsx") {
			return "react"
		}
		if strings.Contains(joined, "vue") {
			return "vue"
		}
	}
	return ""
}

var substringKeys = map[string]bool{"migration": true, "schema": true, "dockerfile": true, "readme": true}

// VerificationSteps suggests how to verify a change from the files it
// touched. Each pattern or extension contributes at most once.
func (e *Extractor) VerificationSteps(files []string) []string {
	framework := DetectFramework(files)
	var fwPaths []Entry
	for _, fw := range e.cfg.FrameworkPatterns {
		if fw.Name == framework {
			fwPaths = fw.Paths
		}
	}

	used := map[string]bool{}
	var steps []string
	needsSuite := false
	for _, file := range files {
		lower := strings.ToLower(file)
		if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
			needsSuite = true
		}
		if len(steps) >= maxVerificationSteps {
			continue
		}
		key, step := matchFramework(lower, fwPaths)
		if key == "" {
			key, step = e.matchVerification(lower)
		}
		if key == "" || used[key] {
			continue
		}
		used[key] = true
		steps = append(steps, step)
	}

	if needsSuite {
		suite := fullSuiteStep
		if cmd, ok := Lookup(e.cfg.ProjectSpecific, "test_command"); ok && strings.TrimSpace(cmd) != "" {
			suite = fmt.Sprintf("%s: `%s`", fullSuiteStep, strings.TrimSpace(cmd))
		}
		steps = append([]string{suite}, steps...)
	}
	return steps
}

func matchFramework(lower string, paths []Entry) (string, string) {
	for _, p := range paths {
		if strings.Contains(lower, strings.ToLower(p.Key)) {
			return "fw:" + p.Key, p.Value
		}
	}
	return "", ""
}

func (e *Extractor) matchVerification(lower string) (string, string) {
	base := path.Base(lower)
	for _, entry := range e.cfg.VerificationSteps {
		key := strings.ToLower(entry.Key)
		if substringKeys[key] && strings.Contains(lower, key) {
			return entry.Key, entry.Value
		}
	}
	for _, entry := range e.cfg.VerificationSteps {
		key := strings.ToLower(entry.Key)
		if substringKeys[key] {
			continue
		}
		if strings.HasPrefix(key, ".") {
			if strings.HasSuffix(base, key) {
				return entry.Key, entry.Value
			}
			continue
		}
		if strings.Contains(base, key) {
			return entry.Key, entry.Value
		}
	}
	return "", ""
}
