package enhance

import (
	"strings"

	"sagashark/internal/saga"
)

const debuggingTemplate = `# [Bug Title]

**Date**: YYYY-MM-DD
**Issue Type**: Bug
**Severity**: [Critical/High/Medium/Low]
**Status**: Resolved

## 📋 The Problem

### Symptoms
- [What errors did users see?]
- [What behavior was unexpected?]

### Initial Discovery
[How was the issue discovered?]

## 🔍 Investigation Timeline

### Phase 1: Initial Investigation
[What did you check first?]

### Phase 2: Narrowing Down
[How did you narrow down the cause?]

### Phase 3: Discovery
[When did you find the real issue?]

## ❌ Failed Attempts

1. **Attempt**: [What you tried]
   **Why it failed**: [Explanation]

## ✅ Root Cause

[The actual root cause of the issue]

### Technical Details
[Detailed technical explanation]

## 💡 Solution

### Code Changes
` + "```diff" + `
[Key code changes]
` + "```" + `

### Configuration Changes
[Any config changes needed]

## 🧪 Verification

1. [How to verify step 1]
2. [How to verify step 2]

### Test Results
[Results of verification]

## 📝 Lessons Learned

1. [Key lesson 1]
2. [Key lesson 2]

### Best Practices
- [Best practice to follow]

---
**Time Spent**: [X hours]
**Complexity**: [Low/Medium/High]
`

const featureTemplate = `# [Feature Name]

**Date**: YYYY-MM-DD
**Type**: Feature
**Status**: Completed

## 📋 Feature Overview

[Brief description of the feature]

## 📝 Requirements

### User Stories
- As a [user], I want [feature] so that [benefit]

### Acceptance Criteria
- [ ] [Criterion 1]
- [ ] [Criterion 2]

## 🏗️ Implementation

### Architecture
[High-level design]

### Key Decisions
1. **Decision**: [What was decided]
   **Rationale**: [Why]

## 🧪 Testing

### Test Coverage
[What was tested and how]

## 📚 Documentation

[Docs that were added or updated]

## 🚀 Deployment

[How this was rolled out]

## 🔮 Future Enhancements

- [Possible follow-up]
`

const incidentTemplate = `# [Incident Title]

**Date**: YYYY-MM-DD
**Severity**: [P0/P1/P2]
**Status**: Resolved

## 📊 Executive Summary

[One paragraph summary for stakeholders]

## 🕐 Timeline of Events

- **HH:MM** - [Event]
- **HH:MM** - [Event]

## 💥 Impact Assessment

[Users and systems affected, duration, data loss]

## 🔍 Root Cause Analysis

### Primary Cause
[Main cause]

### Contributing Factors
[Secondary causes]

## 🚨 Immediate Actions

[What was done to stop the bleeding]

## 📋 Long-term Fixes

- [ ] [Preventive measure]

## 📝 Postmortem

### What went well
[...]

### What went wrong
[...]

### Action Items
- [ ] [Owner: action]

---
**Incident Commander**: [Name]
**Duration**: [Xh Ym]
`

// Template returns the blank markdown skeleton for typ. Types without their
// own skeleton use the debugging one.
func Template(typ saga.Type) string {
	switch typ {
	case saga.TypeFeature:
		return featureTemplate
	case saga.TypeIncident:
		return incidentTemplate
	default:
		return debuggingTemplate
	}
}

type section struct {
	name           string
	keywords       []string
	recommendation string
}

var requiredSections = map[saga.Type][]section{
	saga.TypeDebugging: {
		{"symptoms", []string{"symptom"}, "Add a 'Symptoms' section describing what errors or issues were observed"},
		{"investigation", []string{"investigation"}, "Add an 'Investigation' section with the timeline of debugging steps"},
		{"root cause", []string{"root cause"}, "Add a 'Root Cause' section explaining the actual problem"},
		{"solution", []string{"solution"}, "Add a 'Solution' section with the code changes that fixed the issue"},
		{"verification", []string{"verification"}, "Add a 'Verification' section explaining how to test the fix"},
		{"lessons", []string{"lessons", "lesson"}, "Add a 'Lessons Learned' section with key takeaways"},
	},
	saga.TypeFeature: {
		{"requirements", []string{"requirement"}, "Add a 'Requirements' section outlining what was needed"},
		{"implementation", []string{"implementation"}, "Add an 'Implementation' section with technical details"},
		{"testing", []string{"testing"}, "Add a 'Testing' section describing test coverage"},
		{"documentation", []string{"documentation"}, "Add a 'Documentation' section listing docs that changed"},
	},
	saga.TypeIncident: {
		{"timeline", []string{"timeline"}, "Add a 'Timeline' section with chronological events"},
		{"impact", []string{"impact"}, "Add an 'Impact' section assessing user/system effects"},
		{"root cause", []string{"root cause"}, "Add a 'Root Cause' section explaining the actual problem"},
		{"resolution", []string{"resolution", "immediate action", "fix"}, "Add a 'Resolution' section describing how the incident was resolved"},
		{"postmortem", []string{"postmortem"}, "Add a 'Postmortem' section with findings and action items"},
	},
}

// Validation scores how many of a type's expected sections a saga covers.
type Validation struct {
	Type            saga.Type `json:"type"`
	IsComplete      bool      `json:"is_complete"`
	Score           float64   `json:"completeness_score"`
	Present         []string  `json:"present_sections"`
	Missing         []string  `json:"missing_sections"`
	Recommendations []string  `json:"recommendations"`
}

// Validate checks content for the sections expected of typ using a
// case-insensitive keyword match. Types without expectations are complete.
func Validate(content string, typ saga.Type) Validation {
	v := Validation{Type: typ, Present: []string{}, Missing: []string{}, Recommendations: []string{}}
	sections := requiredSections[typ]
	if len(sections) == 0 {
		v.IsComplete = true
		v.Score = 1
		return v
	}
	lower := strings.ToLower(content)
	for _, s := range sections {
		if containsAny(lower, s.keywords) {
			v.Present = append(v.Present, s.name)
			continue
		}
		v.Missing = append(v.Missing, s.name)
		v.Recommendations = append(v.Recommendations, s.recommendation)
	}
	v.Score = float64(len(v.Present)) / float64(len(sections))
	v.IsComplete = len(v.Missing) == 0
	return v
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
