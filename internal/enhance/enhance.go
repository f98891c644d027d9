package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"sagashark/internal/config"
	"sagashark/internal/embed"
	"sagashark/internal/saga"
	"sagashark/internal/token"
)

var (
	ErrDisabled        = errors.New("ai enhancement disabled")
	ErrUnsupportedType = errors.New("saga type has no ai template")
)

// Request is what the model sees about a commit.
type Request struct {
	Type           saga.Type
	CommitMessage  string
	FilesChanged   []string
	DiffContent    string
	SessionContext string
}

type Debugging struct {
	Symptoms           string `json:"symptoms" jsonschema:"description=What symptoms or errors were observed. Quote error messages."`
	InvestigationSteps string `json:"investigation_steps" jsonschema:"description=Timeline of investigation steps taken in phases"`
	FailedAttempts     string `json:"failed_attempts" jsonschema:"description=Solutions that were tried and did not work and why they failed"`
	RootCause          string `json:"root_cause" jsonschema:"description=The actual root cause discovered"`
	Solution           string `json:"solution" jsonschema:"description=The solution that fixed the issue"`
	Verification       string `json:"verification" jsonschema:"description=How to verify the fix works"`
	Lessons            string `json:"lessons" jsonschema:"description=Key lessons learned from this debugging session"`
}

type Feature struct {
	FeatureDescription     string `json:"feature_description" jsonschema:"description=What feature was implemented"`
	Requirements           string `json:"requirements" jsonschema:"description=What the requirements were"`
	ImplementationApproach string `json:"implementation_approach" jsonschema:"description=How it was implemented"`
	KeyDecisions           string `json:"key_decisions" jsonschema:"description=Architectural decisions that were made"`
	TestingApproach        string `json:"testing_approach" jsonschema:"description=How it was tested"`
	FutureConsiderations   string `json:"future_considerations" jsonschema:"description=What to consider for future enhancements"`
}

type Incident struct {
	IncidentSummary string `json:"incident_summary" jsonschema:"description=Executive summary of the incident"`
	Timeline        string `json:"timeline" jsonschema:"description=Timeline of discovery then escalation then resolution"`
	Impact          string `json:"impact" jsonschema:"description=User and system impact assessment"`
	RootCauses      string `json:"root_causes" jsonschema:"description=Primary and secondary root causes"`
	ImmediateFix    string `json:"immediate_fix" jsonschema:"description=What was done to resolve it immediately"`
	LongTermFix     string `json:"long_term_fix" jsonschema:"description=Long-term preventive measures"`
	Postmortem      string `json:"postmortem" jsonschema:"description=Key postmortem findings"`
}

// Result holds the narrative for exactly one saga type.
type Result struct {
	Type      saga.Type
	Debugging *Debugging
	Feature   *Feature
	Incident  *Incident
}

// Usable reports whether any narrative field came back non-empty.
func (r Result) Usable() bool {
	var fields []string
	switch {
	case r.Debugging != nil:
		d := r.Debugging
		fields = []string{d.Symptoms, d.InvestigationSteps, d.FailedAttempts, d.RootCause, d.Solution, d.Verification, d.Lessons}
	case r.Feature != nil:
		f := r.Feature
		fields = []string{f.FeatureDescription, f.Requirements, f.ImplementationApproach, f.KeyDecisions, f.TestingApproach, f.FutureConsiderations}
	case r.Incident != nil:
		i := r.Incident
		fields = []string{i.IncidentSummary, i.Timeline, i.Impact, i.RootCauses, i.ImmediateFix, i.LongTermFix, i.Postmortem}
	}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// Supports reports whether typ has a typed narrative.
func Supports(typ saga.Type) bool {
	switch typ {
	case saga.TypeDebugging, saga.TypeFeature, saga.TypeIncident:
		return true
	}
	return false
}

type Enhancer interface {
	Enhance(ctx context.Context, req Request) (Result, error)
}

type Status struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Enabled  bool   `json:"enabled"`
	Error    string `json:"error,omitempty"`
}

// Resolve decides once whether AI enhancement is available. Local Ollama
// endpoints are probed first so that a missing daemon disables the feature
// instead of failing every capture.
func Resolve(ctx context.Context, cfg config.Config, logger *slog.Logger) (Enhancer, Status) {
	provider := strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	model := strings.TrimSpace(cfg.AIModel)
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AIBaseURL), "/")
	if !cfg.UseAI {
		return nil, Status{Provider: "none", Error: "use_ai is off"}
	}
	if model == "" {
		return nil, Status{Provider: provider, Error: "ai_model is required"}
	}

	apiKey := strings.TrimSpace(cfg.AIAPIKey)
	switch provider {
	case "none", "off", "":
		return nil, Status{Provider: "none"}
	case "auto", "ollama":
		provider = "ollama"
		if baseURL == "" {
			baseURL = embed.OllamaURL() + "/v1"
		}
		if err := embed.ProbeOllama(ctx, strings.TrimSuffix(baseURL, "/v1"), model); err != nil {
			return nil, Status{Provider: provider, Model: model, BaseURL: baseURL, Error: err.Error()}
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
	case "openai":
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if apiKey == "" {
			return nil, Status{Provider: provider, Model: model, Error: "OPENAI_API_KEY is not set"}
		}
	default:
		return nil, Status{Provider: provider, Model: model, Error: fmt.Sprintf("unknown ai provider: %s", provider)}
	}

	counter, _ := token.New(cfg.Tokenizer)
	client := NewClient(ClientConfig{
		APIKey:         apiKey,
		BaseURL:        baseURL,
		Model:          model,
		Timeout:        time.Duration(cfg.AITimeoutSeconds) * time.Second,
		MaxInputTokens: cfg.AIMaxInputTokens,
		Counter:        counter,
		Logger:         logger,
	})
	return client, Status{Provider: provider, Model: model, BaseURL: baseURL, Enabled: true}
}
