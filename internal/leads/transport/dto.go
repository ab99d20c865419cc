// Package transport defines the validated request and response shapes the
// lead services consume. These are invoked in-process by request-handling
// collaborators; no wire protocol is defined here.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	SchoolID          uuid.UUID `json:"schoolId" validate:"required"`
	Source            string    `json:"source" validate:"required,oneof=website phone walk_in referral social_media advertising event other"`
	GuardianFirstName string    `json:"guardianFirstName" validate:"required,min=1,max=100"`
	GuardianLastName  string    `json:"guardianLastName" validate:"required,min=1,max=100"`
	GuardianPhone     string    `json:"guardianPhone" validate:"required,min=5,max=20"`
	GuardianEmail     string    `json:"guardianEmail,omitempty" validate:"omitempty,email"`
	ChildFirstName    string    `json:"childFirstName" validate:"required,min=1,max=100"`
	ChildLastName     string    `json:"childLastName,omitempty" validate:"max=100"`
	Program           string    `json:"program,omitempty" validate:"max=100"`
	City              string    `json:"city,omitempty" validate:"max=100"`
}

type ChangeLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted interested toured waitlisted offer_sent confirmed enrolled lost not_interested approve_for_registration approved_for_registration invoice_sent registered declined"`
	Notes  string `json:"notes,omitempty" validate:"max=2000"`
}

type AddNoteRequest struct {
	Notes string `json:"notes" validate:"required,min=1,max=2000"`
}

type RecordInteractionRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=call email tour message"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

type CreateAutomationRuleRequest struct {
	SchoolID         *uuid.UUID     `json:"schoolId,omitempty"` // nil = global rule
	RuleName         string         `json:"ruleName" validate:"required,min=1,max=200"`
	TriggerCondition map[string]any `json:"triggerCondition,omitempty"`
	ScoreThreshold   *int           `json:"scoreThreshold,omitempty" validate:"omitempty,min=0,max=100"`
	DaysInactive     *int           `json:"daysInactive,omitempty" validate:"omitempty,min=1,max=3650"`
	FromStatus       *string        `json:"fromStatus,omitempty"`
	ToStatus         *string        `json:"toStatus,omitempty"`
	IsActive         *bool          `json:"isActive,omitempty"`
}

type UpdateAutomationRuleRequest struct {
	RuleName          *string        `json:"ruleName,omitempty" validate:"omitempty,min=1,max=200"`
	TriggerCondition  map[string]any `json:"triggerCondition,omitempty"`
	ScoreThreshold    *int           `json:"scoreThreshold,omitempty" validate:"omitempty,min=0,max=100"`
	ScoreThresholdSet bool           `json:"-"`
	DaysInactive      *int           `json:"daysInactive,omitempty" validate:"omitempty,min=1,max=3650"`
	DaysInactiveSet   bool           `json:"-"`
	FromStatus        *string        `json:"fromStatus,omitempty"`
	FromStatusSet     bool           `json:"-"`
	ToStatus          *string        `json:"toStatus,omitempty"`
	ToStatusSet       bool           `json:"-"`
	IsActive          *bool          `json:"isActive,omitempty"`
}

// Response DTOs

type LeadResponse struct {
	ID                uuid.UUID `json:"id"`
	SchoolID          uuid.UUID `json:"schoolId"`
	Status            string    `json:"status"`
	Source            string    `json:"source"`
	GuardianFirstName string    `json:"guardianFirstName"`
	GuardianLastName  string    `json:"guardianLastName"`
	GuardianPhone     string    `json:"guardianPhone"`
	GuardianEmail     *string   `json:"guardianEmail,omitempty"`
	ChildFirstName    string    `json:"childFirstName"`
	ChildLastName     string    `json:"childLastName,omitempty"`
	Program           string    `json:"program,omitempty"`
	City              string    `json:"city,omitempty"`
	Score             int       `json:"score"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type AuditEntryResponse struct {
	ID               uuid.UUID  `json:"id"`
	LeadID           uuid.UUID  `json:"leadId"`
	UserID           *uuid.UUID `json:"userId,omitempty"`
	ActionType       string     `json:"actionType"`
	AutomationRuleID *uuid.UUID `json:"automationRuleId,omitempty"`
	IsAutomated      bool       `json:"isAutomated"`
	OldStatus        *string    `json:"oldStatus,omitempty"`
	NewStatus        *string    `json:"newStatus,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type AutomationRuleResponse struct {
	ID               uuid.UUID      `json:"id"`
	SchoolID         *uuid.UUID     `json:"schoolId,omitempty"`
	RuleName         string         `json:"ruleName"`
	TriggerCondition map[string]any `json:"triggerCondition,omitempty"`
	ScoreThreshold   *int           `json:"scoreThreshold,omitempty"`
	DaysInactive     *int           `json:"daysInactive,omitempty"`
	FromStatus       *string        `json:"fromStatus,omitempty"`
	ToStatus         *string        `json:"toStatus,omitempty"`
	IsActive         bool           `json:"isActive"`
	CreatedAt        time.Time      `json:"createdAt"`
}
