// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"admissions_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the funnel.
type LeadCreated struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	SchoolID     uuid.UUID `json:"schoolId"`
	Source       string    `json:"source"`
	GuardianName string    `json:"guardianName"`
	Program      string    `json:"program,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published after the transition authority commits a
// status change and its audit entry.
type LeadStatusChanged struct {
	BaseEvent
	LeadID           uuid.UUID  `json:"leadId"`
	SchoolID         uuid.UUID  `json:"schoolId"`
	OldStatus        string     `json:"oldStatus"`
	NewStatus        string     `json:"newStatus"`
	IsAutomated      bool       `json:"isAutomated"`
	AutomationRuleID *uuid.UUID `json:"automationRuleId,omitempty"`
	AuditEntryID     uuid.UUID  `json:"auditEntryId"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// AutomationRuleChanged is published when a rule is created, updated, or
// deactivated. Consumers invalidate any cached rule snapshots for the tenant.
type AutomationRuleChanged struct {
	BaseEvent
	RuleID   uuid.UUID  `json:"ruleId"`
	SchoolID *uuid.UUID `json:"schoolId,omitempty"` // nil = global rule
}

func (e AutomationRuleChanged) EventName() string { return "leads.automation_rule.changed" }
