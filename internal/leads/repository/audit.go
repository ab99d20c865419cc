package repository

import (
	"context"
	"time"

	"admissions_backend/internal/leads/domain"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

// ActionType constants for audit entries.
const (
	ActionStatusChange      = "status_change"
	ActionNoteAdded         = "note_added"
	ActionInteractionLogged = "interaction_logged"
)

// AuditEntry is one immutable fact about a lead. Entries are only ever
// appended; there is deliberately no update or delete path in this package.
type AuditEntry struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	UserID           *uuid.UUID
	ActionType       string
	AutomationRuleID *uuid.UUID
	IsAutomated      bool
	OldStatus        *domain.LeadStatus
	NewStatus        *domain.LeadStatus
	Notes            *string
	CreatedAt        time.Time
}

type RecordAuditEntryParams struct {
	LeadID           uuid.UUID
	UserID           *uuid.UUID
	ActionType       string
	AutomationRuleID *uuid.UUID
	IsAutomated      bool
	OldStatus        *domain.LeadStatus
	NewStatus        *domain.LeadStatus
	Notes            *string
}

// validateAuditParams enforces the provenance invariant: an automated entry
// must reference the rule that caused it and must have no human actor.
func validateAuditParams(params RecordAuditEntryParams) error {
	if params.ActionType == "" {
		return apperr.Validation("audit entry requires an action type")
	}
	if params.IsAutomated {
		if params.AutomationRuleID == nil {
			return apperr.Validation("automated audit entry requires an automation rule id")
		}
		if params.UserID != nil {
			return apperr.Validation("automated audit entry must not have a human actor")
		}
	}
	return nil
}

const insertAuditEntryQuery = `
	INSERT INTO lead_audit_log (
		lead_id, user_id, action_type, automation_rule_id, is_automated,
		old_status, new_status, notes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, lead_id, user_id, action_type, automation_rule_id, is_automated,
		old_status, new_status, notes, created_at`

func insertAuditEntry(ctx context.Context, q rowQuerier, params RecordAuditEntryParams) (AuditEntry, error) {
	var entry AuditEntry
	err := q.QueryRow(ctx, insertAuditEntryQuery,
		params.LeadID, params.UserID, params.ActionType, params.AutomationRuleID, params.IsAutomated,
		params.OldStatus, params.NewStatus, params.Notes,
	).Scan(
		&entry.ID, &entry.LeadID, &entry.UserID, &entry.ActionType, &entry.AutomationRuleID,
		&entry.IsAutomated, &entry.OldStatus, &entry.NewStatus, &entry.Notes, &entry.CreatedAt,
	)
	if err != nil {
		return AuditEntry{}, err
	}
	return entry, nil
}

// RecordAuditEntry appends one audit entry. Status-change entries are written
// by CommitStatusChange inside its transaction; this method serves the
// non-transition action types (notes, logged interactions).
func (r *Repository) RecordAuditEntry(ctx context.Context, params RecordAuditEntryParams) (AuditEntry, error) {
	if err := validateAuditParams(params); err != nil {
		return AuditEntry{}, err
	}
	return insertAuditEntry(ctx, r.pool, params)
}

const auditHistoryQuery = `
	SELECT id, lead_id, user_id, action_type, automation_rule_id, is_automated,
		old_status, new_status, notes, created_at
	FROM lead_audit_log
	WHERE lead_id = $1
	ORDER BY created_at ASC, id ASC`

// History returns the audit trail of a lead, oldest first. The ordering is
// total (created_at with id as tie-break) so repeated reads are stable.
func (r *Repository) History(ctx context.Context, leadID uuid.UUID) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, auditHistoryQuery, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.UserID, &entry.ActionType, &entry.AutomationRuleID,
			&entry.IsAutomated, &entry.OldStatus, &entry.NewStatus, &entry.Notes, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
