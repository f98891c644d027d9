package significance

import (
	"math"
	"strings"
	"testing"
	"time"

	"sagashark/internal/saga"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreScenarios(t *testing.T) {
	scorer := NewScorer(DefaultThreshold)
	cases := []struct {
		name        string
		ctx         CommitContext
		score       float64
		significant bool
		typ         saga.Type
		factors     int
	}{
		{
			name:        "empty",
			ctx:         CommitContext{},
			score:       0,
			significant: false,
			typ:         saga.TypeGeneral,
			factors:     0,
		},
		{
			name:        "conventional fix",
			ctx:         CommitContext{Message: "fix: resolve null pointer in session handler"},
			score:       0.4,
			significant: true,
			typ:         saga.TypeDebugging,
			factors:     1,
		},
		{
			name:        "typo",
			ctx:         CommitContext{Message: "typo"},
			score:       -0.3,
			significant: false,
			typ:         saga.TypeGeneral,
			factors:     1,
		},
		{
			name:        "large wip",
			ctx:         CommitContext{Message: "WIP", LinesAdded: 600, LinesDeleted: 50},
			score:       0,
			significant: false,
			typ:         saga.TypeGeneral,
			factors:     2,
		},
		{
			name: "capped",
			ctx: CommitContext{
				Message:      "fix: finally resolved critical security crash after hours of debug",
				FilesChanged: []string{"docker-compose.yml"},
				LinesAdded:   700,
				Branch:       "hotfix/login",
			},
			score:       1.0,
			significant: true,
			typ:         saga.TypeDebugging,
			factors:     9,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := scorer.Score(tc.ctx)
			if !approx(res.Score, tc.score) {
				t.Errorf("score = %v, want %v (factors %v)", res.Score, tc.score, res.FactorStrings())
			}
			if res.IsSignificant != tc.significant {
				t.Errorf("significant = %v, want %v", res.IsSignificant, tc.significant)
			}
			if res.SuggestedType != tc.typ {
				t.Errorf("type = %s, want %s", res.SuggestedType, tc.typ)
			}
			if len(res.Factors) != tc.factors {
				t.Errorf("factors = %v, want %d entries", res.FactorStrings(), tc.factors)
			}
			if res.Score > 1.0 {
				t.Errorf("score above upper bound: %v", res.Score)
			}
		})
	}
}

func TestFactorOrderAndFormatting(t *testing.T) {
	d := 3 * time.Hour
	res := NewScorer(DefaultThreshold).Score(CommitContext{
		Message:         "feat: add export",
		FilesChanged:    []string{"db/migrations/001.sql"},
		LinesAdded:      120,
		SessionDuration: &d,
		Branch:          "feature/export",
	})
	got := strings.Join(res.FactorStrings(), ", ")
	want := "Conventional commit (+0.40), Critical files modified (+0.25), Large changes (+0.20), Long session (+0.25), Infrastructure changes (+0.20), Feature branch (+0.10)"
	if got != want {
		t.Fatalf("factors:\n got %s\nwant %s", got, want)
	}
	if res.Score != 1.0 || res.SuggestedType != saga.TypeFeature {
		t.Fatalf("unexpected result %+v", res)
	}

	trivial := NewScorer(DefaultThreshold).Score(CommitContext{Message: "fix typo"})
	if trivial.Display() != "-0.30" {
		t.Fatalf("unexpected display %s", trivial.Display())
	}
	if trivial.Factors[0].String() != "Trivial changes (-0.30)" {
		t.Fatalf("unexpected penalty factor %s", trivial.Factors[0])
	}
}

func TestTrivialOffsetByBreakthrough(t *testing.T) {
	res := NewScorer(DefaultThreshold).Score(CommitContext{Message: "finally fixed the formatting bug"})
	for _, f := range res.Factors {
		if f.Contribution < 0 {
			t.Fatalf("penalty should be offset, got %v", res.FactorStrings())
		}
	}
}

func TestForcedThreshold(t *testing.T) {
	res := NewScorer(0).Score(CommitContext{})
	if !res.IsSignificant {
		t.Fatal("zero threshold should accept a zero score")
	}
	if NewScorer(0).Score(CommitContext{Message: "typo"}).IsSignificant {
		t.Fatal("negative score stays below a zero threshold")
	}
}

func TestSuggestType(t *testing.T) {
	cases := map[string]saga.Type{
		"perf(db): cache lookups":     saga.TypeOptimization,
		"refactor: split handlers":    saga.TypeArchitecture,
		"docs: explain config":        saga.TypeGeneral,
		"Crash when saving":           saga.TypeDebugging,
		"Implement CSV export":        saga.TypeFeature,
		"Rework architecture of sync": saga.TypeArchitecture,
		"Optimize hot loop":           saga.TypeOptimization,
		"Bump version":                saga.TypeGeneral,
	}
	for msg, want := range cases {
		if got := SuggestType(msg); got != want {
			t.Errorf("SuggestType(%q) = %s, want %s", msg, got, want)
		}
	}
}
