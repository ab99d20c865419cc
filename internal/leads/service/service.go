// Package service exposes the lead lifecycle operations consumed in-process
// by request-handling and scheduling collaborators.
package service

import (
	"context"
	"errors"
	"time"

	"admissions_backend/internal/events"
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/transport"
	"admissions_backend/internal/leads/workflow"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/phone"
	"admissions_backend/platform/validator"

	"github.com/google/uuid"
)

type LeadService struct {
	repo      *repository.Repository
	authority *workflow.Authority
	bus       events.Bus
	val       *validator.Validator
}

func NewLeadService(repo *repository.Repository, authority *workflow.Authority, bus events.Bus, val *validator.Validator) *LeadService {
	return &LeadService{
		repo:      repo,
		authority: authority,
		bus:       bus,
		val:       val,
	}
}

// Create registers a new lead in status "new". The guardian phone is
// normalized to E.164 before persisting.
func (s *LeadService) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindValidation, "invalid create lead request", err)
	}

	params := repository.CreateLeadParams{
		SchoolID:          req.SchoolID,
		Status:            domain.StatusNew,
		Source:            domain.LeadSource(req.Source),
		GuardianFirstName: req.GuardianFirstName,
		GuardianLastName:  req.GuardianLastName,
		GuardianPhone:     phone.NormalizeE164(req.GuardianPhone),
		ChildFirstName:    req.ChildFirstName,
		ChildLastName:     req.ChildLastName,
		Program:           req.Program,
		City:              req.City,
	}
	if req.GuardianEmail != "" {
		params.GuardianEmail = &req.GuardianEmail
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "create lead", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       lead.ID,
			SchoolID:     lead.SchoolID,
			Source:       string(lead.Source),
			GuardianName: lead.GuardianFirstName + " " + lead.GuardianLastName,
			Program:      lead.Program,
		})
	}

	return toLeadResponse(lead), nil
}

func (s *LeadService) GetByID(ctx context.Context, schoolID, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID, schoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}
	return toLeadResponse(lead), nil
}

func (s *LeadService) List(ctx context.Context, schoolID uuid.UUID) ([]transport.LeadResponse, error) {
	leads, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list leads", err)
	}

	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, toLeadResponse(lead))
	}
	return out, nil
}

// ChangeStatus routes a staff-initiated status change through the transition
// authority.
func (s *LeadService) ChangeStatus(ctx context.Context, schoolID, leadID, actorUserID uuid.UUID, req transport.ChangeLeadStatusRequest) (transport.LeadResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindValidation, "invalid status change request", err)
	}

	lead, err := s.authority.ApplyTransition(ctx, leadID, schoolID, domain.LeadStatus(req.Status), workflow.HumanCause(actorUserID, req.Notes))
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

// History returns the lead's audit trail, oldest first.
func (s *LeadService) History(ctx context.Context, schoolID, leadID uuid.UUID) ([]transport.AuditEntryResponse, error) {
	if _, err := s.repo.GetByID(ctx, leadID, schoolID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}

	entries, err := s.repo.History(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load audit history", err)
	}

	out := make([]transport.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAuditEntryResponse(entry))
	}
	return out, nil
}

// AddNote appends a free-text note to the lead's audit trail.
func (s *LeadService) AddNote(ctx context.Context, schoolID, leadID, actorUserID uuid.UUID, req transport.AddNoteRequest) (transport.AuditEntryResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.AuditEntryResponse{}, apperr.Wrap(apperr.KindValidation, "invalid note request", err)
	}
	if _, err := s.repo.GetByID(ctx, leadID, schoolID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AuditEntryResponse{}, apperr.NotFound("lead not found")
		}
		return transport.AuditEntryResponse{}, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}

	notes := req.Notes
	entry, err := s.repo.RecordAuditEntry(ctx, repository.RecordAuditEntryParams{
		LeadID:     leadID,
		UserID:     &actorUserID,
		ActionType: repository.ActionNoteAdded,
		Notes:      &notes,
	})
	if err != nil {
		return transport.AuditEntryResponse{}, err
	}
	return toAuditEntryResponse(entry), nil
}

// RecordInteraction stores a guardian touchpoint and mirrors it into the
// audit trail. Interactions reset the inactivity clock used by automation
// rules with a days-inactive gate.
func (s *LeadService) RecordInteraction(ctx context.Context, schoolID, leadID, actorUserID uuid.UUID, req transport.RecordInteractionRequest) (transport.AuditEntryResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.AuditEntryResponse{}, apperr.Wrap(apperr.KindValidation, "invalid interaction request", err)
	}
	if _, err := s.repo.GetByID(ctx, leadID, schoolID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AuditEntryResponse{}, apperr.NotFound("lead not found")
		}
		return transport.AuditEntryResponse{}, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}

	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}

	if _, err := s.repo.RecordInteraction(ctx, repository.RecordInteractionParams{
		LeadID:     leadID,
		Kind:       req.Kind,
		Notes:      notes,
		OccurredAt: occurredAt,
	}); err != nil {
		return transport.AuditEntryResponse{}, apperr.Wrap(apperr.KindInternal, "record interaction", err)
	}

	entry, err := s.repo.RecordAuditEntry(ctx, repository.RecordAuditEntryParams{
		LeadID:     leadID,
		UserID:     &actorUserID,
		ActionType: repository.ActionInteractionLogged,
		Notes:      notes,
	})
	if err != nil {
		return transport.AuditEntryResponse{}, err
	}
	return toAuditEntryResponse(entry), nil
}
