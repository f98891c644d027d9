package significance

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"sagashark/internal/saga"
)

const DefaultThreshold = 0.3

// CommitContext is the scoring input built from one commit.
type CommitContext struct {
	CommitID        string
	Message         string
	FilesChanged    []string
	LinesAdded      int
	LinesDeleted    int
	Branch          string
	Author          string
	Timestamp       time.Time
	DiffContent     string
	IsMerge         bool
	IsRevert        bool
	SessionDuration *time.Duration
}

type Factor struct {
	Description  string  `json:"description"`
	Contribution float64 `json:"contribution"`
}

func (f Factor) String() string {
	if f.Contribution < 0 {
		return fmt.Sprintf("%s (%.2f)", f.Description, f.Contribution)
	}
	return fmt.Sprintf("%s (+%.2f)", f.Description, f.Contribution)
}

type Result struct {
	Score         float64   `json:"score"`
	IsSignificant bool      `json:"is_significant"`
	Factors       []Factor  `json:"factors"`
	SuggestedType saga.Type `json:"suggested_type"`
}

// Display renders the score with two decimals. Scores below zero are shown
// as they are.
func (r Result) Display() string {
	return fmt.Sprintf("%.2f", r.Score)
}

func (r Result) FactorStrings() []string {
	out := make([]string, 0, len(r.Factors))
	for _, f := range r.Factors {
		out = append(out, f.String())
	}
	return out
}

var (
	breakthroughKeywords = []string{"finally", "fixed", "resolved", "solved", "found", "breakthrough", "root cause", "discovered", "working"}
	majorKeywords        = []string{"critical", "major", "important", "security", "performance", "migration", "refactor", "architecture", "breaking"}
	struggleKeywords     = []string{"debug", "investigation", "hours", "attempt", "trying", "issue", "problem", "error", "bug", "crash"}
	trivialKeywords      = []string{"typo", "spacing", "comment", "formatting", "style", "whitespace", "rename", "todo", "wip", "minor"}
	criticalFiles        = []string{"database", "migration", "auth", "security", "payment", "config", "env", "docker", "requirements", "package.json", ".yml", ".yaml", "nginx", "apache"}
)

var conventionalPattern = regexp.MustCompile(`^(feat|fix|docs|style|refactor|test|chore|perf|build|ci)(\([^)]*\))?:`)

var infraPatterns = compileAll(
	`(?i)\.env`, `(?i)docker`, `(?i)nginx`, `(?i)apache`, `(?i)\.conf$`,
	`(?i)requirements\.txt`, `(?i)package\.json`, `(?i)composer\.json`,
	`(?i)migration`, `(?i)schema`, `(?i)database`,
)

var errorPatterns = compileAll(
	`(?i)\b\d{3}\s+error\b`, `(?i)HTTP\s+\d{3}`, `(?i)error\s+code`, `(?i)exception`,
	`(?i)crash`, `(?i)timeout`, `(?i)memory\s+leak`, `(?i)race\s+condition`,
)

var conventionalTypes = map[string]saga.Type{
	"feat":     saga.TypeFeature,
	"fix":      saga.TypeDebugging,
	"perf":     saga.TypeOptimization,
	"refactor": saga.TypeArchitecture,
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

type Scorer struct {
	Threshold float64
}

func NewScorer(threshold float64) *Scorer {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Scorer{Threshold: threshold}
}

// Score runs every heuristic in a fixed order. It never fails.
func (s *Scorer) Score(ctx CommitContext) Result {
	lower := strings.ToLower(ctx.Message)
	var factors []Factor
	total := 0.0
	add := func(description string, value float64) {
		if value == 0 {
			return
		}
		total += value
		factors = append(factors, Factor{Description: description, Contribution: value})
	}

	add("Breakthrough moment", scoreBreakthrough(lower))
	add("Conventional commit", scoreConventional(lower))
	add("Major work", scoreMajor(lower))
	add("Investigation/debugging", scoreStruggle(lower))
	add("Critical files modified", scoreCriticalFiles(ctx.FilesChanged))
	add("Large changes", scoreMagnitude(ctx.LinesAdded, ctx.LinesDeleted))
	add("Long session", scoreSession(ctx.SessionDuration))
	add("Infrastructure changes", scoreInfrastructure(ctx.FilesChanged))
	add("Trivial changes", scoreTrivial(lower))
	add("Error fix pattern", scoreErrorPatterns(ctx.Message))
	add("Feature branch", scoreBranch(ctx.Branch))

	score := total
	if score > 1.0 {
		score = 1.0
	}
	return Result{
		Score:         score,
		IsSignificant: score >= s.Threshold,
		Factors:       factors,
		SuggestedType: SuggestType(ctx.Message),
	}
}

func scoreBreakthrough(lower string) float64 {
	if !containsAny(lower, breakthroughKeywords) {
		return 0
	}
	if strings.Contains(lower, "finally") || strings.Contains(lower, "hours") {
		return 0.4
	}
	return 0.3
}

func scoreConventional(lower string) float64 {
	m := conventionalPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	switch m[1] {
	case "feat", "fix", "refactor", "perf":
		return 0.4
	default:
		return 0.35
	}
}

func scoreMajor(lower string) float64 {
	if !containsAny(lower, majorKeywords) {
		return 0
	}
	if strings.Contains(lower, "critical") || strings.Contains(lower, "security") {
		return 0.35
	}
	return 0.25
}

func scoreStruggle(lower string) float64 {
	matches := 0
	for _, k := range struggleKeywords {
		if strings.Contains(lower, k) {
			matches++
		}
	}
	switch {
	case matches >= 2:
		return 0.3
	case matches == 1:
		return 0.15
	}
	return 0
}

func scoreCriticalFiles(files []string) float64 {
	for _, f := range files {
		if containsAny(strings.ToLower(f), criticalFiles) {
			return 0.25
		}
	}
	return 0
}

func scoreMagnitude(added, deleted int) float64 {
	switch total := added + deleted; {
	case total > 500:
		return 0.3
	case total > 100:
		return 0.2
	case total > 50:
		return 0.1
	}
	return 0
}

func scoreSession(d *time.Duration) float64 {
	if d == nil {
		return 0
	}
	switch hours := d.Hours(); {
	case hours > 4:
		return 0.35
	case hours > 2:
		return 0.25
	case hours > 1:
		return 0.15
	}
	return 0
}

func scoreInfrastructure(files []string) float64 {
	for _, f := range files {
		for _, re := range infraPatterns {
			if re.MatchString(f) {
				return 0.2
			}
		}
	}
	return 0
}

// scoreTrivial only penalizes when no breakthrough or major keyword offsets it.
func scoreTrivial(lower string) float64 {
	if !containsAny(lower, trivialKeywords) {
		return 0
	}
	if containsAny(lower, breakthroughKeywords) || containsAny(lower, majorKeywords) {
		return 0
	}
	return -0.3
}

func scoreErrorPatterns(message string) float64 {
	for _, re := range errorPatterns {
		if re.MatchString(message) {
			return 0.25
		}
	}
	return 0
}

func scoreBranch(branch string) float64 {
	lower := strings.ToLower(branch)
	switch {
	case strings.Contains(lower, "hotfix"), strings.Contains(lower, "critical"):
		return 0.2
	case strings.Contains(lower, "feature"), strings.Contains(lower, "fix"), strings.Contains(lower, "bug"):
		return 0.1
	}
	return 0
}

// SuggestType prefers the conventional-commit prefix and falls back to
// keywords in the message.
func SuggestType(message string) saga.Type {
	lower := strings.ToLower(message)
	if m := conventionalPattern.FindStringSubmatch(lower); m != nil {
		if t, ok := conventionalTypes[m[1]]; ok {
			return t
		}
		return saga.TypeGeneral
	}
	switch {
	case containsAny(lower, []string{"fix", "bug", "error", "crash", "issue"}):
		return saga.TypeDebugging
	case containsAny(lower, []string{"feature", "add", "implement", "new"}):
		return saga.TypeFeature
	case containsAny(lower, []string{"refactor", "architecture", "design"}):
		return saga.TypeArchitecture
	case containsAny(lower, []string{"performance", "optimize", "speed"}):
		return saga.TypeOptimization
	}
	return saga.TypeGeneral
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
