package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rule is one automation rule as seen by the rule engine: an immutable
// snapshot of the persisted lead_automation_rules row with its trigger
// condition already decoded. Rules are read-only to lead processing; only
// tenant staff create or edit them.
type Rule struct {
	ID             uuid.UUID   `json:"id"`
	SchoolID       *uuid.UUID  `json:"schoolId,omitempty"` // nil = applies to every tenant
	RuleName       string      `json:"ruleName"`
	Conditions     []Condition `json:"conditions,omitempty"`
	ScoreThreshold *int        `json:"scoreThreshold,omitempty"`
	DaysInactive   *int        `json:"daysInactive,omitempty"`
	FromStatus     *LeadStatus `json:"fromStatus,omitempty"`
	ToStatus       *LeadStatus `json:"toStatus,omitempty"`
	IsActive       bool        `json:"isActive"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// HasGates reports whether the rule constrains matching at all. A rule with
// no score threshold, no inactivity gate, and no conditions can never match:
// the rule service rejects such rules at creation and the engine treats any
// that slip through as always-false.
func (r Rule) HasGates() bool {
	return r.ScoreThreshold != nil || r.DaysInactive != nil || len(r.Conditions) > 0
}

// AppliesToTenant reports whether the rule is in scope for the given school.
func (r Rule) AppliesToTenant(schoolID uuid.UUID) bool {
	return r.SchoolID == nil || *r.SchoolID == schoolID
}
