package repository

import (
	"context"
	"errors"

	"admissions_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CommitStatusChangeParams struct {
	LeadID           uuid.UUID
	SchoolID         uuid.UUID
	ExpectedStatus   domain.LeadStatus
	NewStatus        domain.LeadStatus
	ActorUserID      *uuid.UUID
	AutomationRuleID *uuid.UUID
	IsAutomated      bool
	Notes            *string
}

const commitStatusChangeQuery = `
	UPDATE leads
	SET status = $4, updated_at = now()
	WHERE id = $1 AND school_id = $2 AND status = $3
	RETURNING ` + leadColumns

// CommitStatusChange persists a status transition and its audit entry as a
// single atomic unit. The UPDATE carries an optimistic compare-and-swap on
// the expected prior status; a concurrent writer that got there first makes
// the commit fail with ErrStatusConflict and nothing is written.
func (r *Repository) CommitStatusChange(ctx context.Context, params CommitStatusChangeParams) (Lead, AuditEntry, error) {
	oldStatus := params.ExpectedStatus
	newStatus := params.NewStatus
	auditParams := RecordAuditEntryParams{
		LeadID:           params.LeadID,
		UserID:           params.ActorUserID,
		ActionType:       ActionStatusChange,
		AutomationRuleID: params.AutomationRuleID,
		IsAutomated:      params.IsAutomated,
		OldStatus:        &oldStatus,
		NewStatus:        &newStatus,
		Notes:            params.Notes,
	}
	if err := validateAuditParams(auditParams); err != nil {
		return Lead{}, AuditEntry{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, AuditEntry{}, err
	}
	defer tx.Rollback(ctx)

	lead, err := scanLead(tx.QueryRow(ctx, commitStatusChangeQuery,
		params.LeadID, params.SchoolID, params.ExpectedStatus, params.NewStatus,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, AuditEntry{}, r.classifyCommitMiss(ctx, params.LeadID, params.SchoolID)
	}
	if err != nil {
		return Lead{}, AuditEntry{}, err
	}

	entry, err := insertAuditEntry(ctx, tx, auditParams)
	if err != nil {
		return Lead{}, AuditEntry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, AuditEntry{}, err
	}

	return lead, entry, nil
}

// classifyCommitMiss distinguishes a missing lead from a lost CAS race.
func (r *Repository) classifyCommitMiss(ctx context.Context, leadID, schoolID uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1 AND school_id = $2)`,
		leadID, schoolID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
