package domain

import (
	"sort"
	"strings"
)

// ConditionKind names one predicate from the closed trigger-condition set.
// Automation rules persist conditions as a JSON object keyed by kind; each
// kind carries typed parameters so that evaluation stays pure.
type ConditionKind string

const (
	ConditionSourceIs  ConditionKind = "source_is"
	ConditionProgramIs ConditionKind = "program_is"
	ConditionCityIs    ConditionKind = "city_is"
	ConditionHasEmail  ConditionKind = "has_email"
)

// LeadProfile is the subset of lead attributes visible to conditions.
type LeadProfile struct {
	Source   LeadSource
	Program  string
	City     string
	HasEmail bool
}

// Condition is one tagged-variant predicate of an automation rule.
// Invalid marks a condition whose stored kind or parameter could not be
// interpreted; such conditions fail closed (never match) rather than erroring.
type Condition struct {
	Kind    ConditionKind `json:"kind"`
	Value   string        `json:"value,omitempty"`
	Want    bool          `json:"want,omitempty"`
	Invalid bool          `json:"invalid,omitempty"`
}

// Matches evaluates the condition against the lead profile. Unrecognized or
// malformed conditions always report false.
func (c Condition) Matches(p LeadProfile) bool {
	if c.Invalid {
		return false
	}

	switch c.Kind {
	case ConditionSourceIs:
		return string(p.Source) == c.Value
	case ConditionProgramIs:
		return strings.EqualFold(p.Program, c.Value)
	case ConditionCityIs:
		return strings.EqualFold(p.City, c.Value)
	case ConditionHasEmail:
		return p.HasEmail == c.Want
	default:
		return false
	}
}

// ParseConditions decodes a stored trigger_condition object into typed
// conditions. Keys are sorted so that the resulting order is stable
// regardless of map iteration. Unknown keys and malformed values are kept as
// invalid conditions so callers can log them; they never cause an error.
func ParseConditions(raw map[string]any) []Condition {
	if len(raw) == 0 {
		return nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]Condition, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, parseCondition(ConditionKind(k), raw[k]))
	}
	return conditions
}

func parseCondition(kind ConditionKind, value any) Condition {
	switch kind {
	case ConditionSourceIs, ConditionProgramIs, ConditionCityIs:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return Condition{Kind: kind, Invalid: true}
		}
		return Condition{Kind: kind, Value: strings.TrimSpace(s)}
	case ConditionHasEmail:
		b, ok := value.(bool)
		if !ok {
			return Condition{Kind: kind, Invalid: true}
		}
		return Condition{Kind: kind, Want: b}
	default:
		return Condition{Kind: kind, Invalid: true}
	}
}

// KnownConditionKinds returns the supported condition kinds, sorted.
func KnownConditionKinds() []ConditionKind {
	return []ConditionKind{
		ConditionCityIs,
		ConditionHasEmail,
		ConditionProgramIs,
		ConditionSourceIs,
	}
}
