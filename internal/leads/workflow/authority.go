// Package workflow contains the transition authority: the single component
// permitted to change a lead's persisted status. Every committed change
// writes exactly one audit entry, atomically with the status update.
package workflow

import (
	"context"
	"errors"

	"admissions_backend/internal/events"
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	// ErrUnknownStatus is returned when the requested status is outside the
	// vocabulary. Always a caller bug; never retried.
	ErrUnknownStatus = errors.New("unknown lead status")
	// ErrInvalidCause is returned when the cause was not built through
	// HumanCause or AutomatedCause.
	ErrInvalidCause = errors.New("transition cause is not valid")
	// ErrLeadNotFound is returned when the lead does not exist in the tenant scope.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrTransitionConflict is returned when a concurrent writer changed the
	// lead's status between read and commit. Retryable.
	ErrTransitionConflict = errors.New("transition lost concurrent update race")
)

// Cause records the provenance of a transition: a human actor with optional
// notes, or the automation rule that proposed it. The zero value is invalid.
type Cause struct {
	userID    *uuid.UUID
	ruleID    *uuid.UUID
	notes     *string
	automated bool
	valid     bool
}

// HumanCause builds the cause for a transition performed by a staff member.
func HumanCause(userID uuid.UUID, notes string) Cause {
	c := Cause{userID: &userID, valid: true}
	if notes != "" {
		c.notes = &notes
	}
	return c
}

// AutomatedCause builds the cause for a transition proposed by an automation rule.
func AutomatedCause(ruleID uuid.UUID) Cause {
	return Cause{ruleID: &ruleID, automated: true, valid: true}
}

// IsAutomated reports whether the cause is an automation rule.
func (c Cause) IsAutomated() bool { return c.automated }

// TransitionStore is the persistence surface the authority needs. The pgx
// repository satisfies it; tests substitute fakes.
type TransitionStore interface {
	GetByID(ctx context.Context, id uuid.UUID, schoolID uuid.UUID) (repository.Lead, error)
	CommitStatusChange(ctx context.Context, params repository.CommitStatusChangeParams) (repository.Lead, repository.AuditEntry, error)
}

type Authority struct {
	store TransitionStore
	bus   events.Bus
	log   *logger.Logger
}

func NewAuthority(store TransitionStore, bus events.Bus, log *logger.Logger) *Authority {
	return &Authority{
		store: store,
		bus:   bus,
		log:   log,
	}
}

// ApplyTransition validates and commits a status change for the lead.
//
// A request for the lead's current status succeeds without writing anything:
// redundant calls must not pollute the audit log. Otherwise the new status
// and one audit entry are committed atomically; on a lost optimistic-lock
// race the caller gets ErrTransitionConflict and may retry against the fresh
// state.
func (a *Authority) ApplyTransition(ctx context.Context, leadID, schoolID uuid.UUID, newStatus domain.LeadStatus, cause Cause) (repository.Lead, error) {
	if !cause.valid {
		return repository.Lead{}, apperr.Wrap(apperr.KindValidation, "transition cause is not valid", ErrInvalidCause)
	}
	if !domain.IsKnownStatus(newStatus) {
		return repository.Lead{}, apperr.Wrap(apperr.KindValidation, "unknown lead status: "+string(newStatus), ErrUnknownStatus)
	}

	lead, err := a.store.GetByID(ctx, leadID, schoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.Wrap(apperr.KindNotFound, "lead not found", ErrLeadNotFound)
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}

	if lead.Status == newStatus {
		return lead, nil
	}

	updated, entry, err := a.store.CommitStatusChange(ctx, repository.CommitStatusChangeParams{
		LeadID:           leadID,
		SchoolID:         schoolID,
		ExpectedStatus:   lead.Status,
		NewStatus:        newStatus,
		ActorUserID:      cause.userID,
		AutomationRuleID: cause.ruleID,
		IsAutomated:      cause.automated,
		Notes:            cause.notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return repository.Lead{}, apperr.Wrap(apperr.KindConflict, "lead status changed concurrently", ErrTransitionConflict)
		case errors.Is(err, repository.ErrNotFound):
			return repository.Lead{}, apperr.Wrap(apperr.KindNotFound, "lead not found", ErrLeadNotFound)
		case apperr.Is(err, apperr.KindValidation):
			return repository.Lead{}, err
		default:
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "commit status change", err)
		}
	}

	if a.log != nil {
		a.log.StatusTransition(lead.ID.String(), string(lead.Status), string(newStatus), cause.automated)
	}

	if a.bus != nil {
		a.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           updated.ID,
			SchoolID:         updated.SchoolID,
			OldStatus:        string(lead.Status),
			NewStatus:        string(updated.Status),
			IsAutomated:      cause.automated,
			AutomationRuleID: cause.ruleID,
			AuditEntryID:     entry.ID,
		})
	}

	return updated, nil
}
