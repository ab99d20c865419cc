package service

import (
	"context"
	"errors"

	"admissions_backend/internal/events"
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/transport"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/google/uuid"
)

// RuleStore is the persistence surface the rule service needs. The pgx
// repository satisfies it; tests substitute fakes.
type RuleStore interface {
	CreateRule(ctx context.Context, params repository.CreateRuleParams) (domain.Rule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, params repository.UpdateRuleParams) (domain.Rule, error)
	GetRule(ctx context.Context, id uuid.UUID) (domain.Rule, error)
	ListRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error)
}

// RuleService manages automation rule configuration. Rules are read-only to
// the scan worker; only this service mutates them, and every mutation
// publishes AutomationRuleChanged so cached snapshots get invalidated.
type RuleService struct {
	repo RuleStore
	bus  events.Bus
	val  *validator.Validator
	log  *logger.Logger
}

func NewRuleService(repo RuleStore, bus events.Bus, val *validator.Validator, log *logger.Logger) *RuleService {
	return &RuleService{
		repo: repo,
		bus:  bus,
		val:  val,
		log:  log,
	}
}

func (s *RuleService) Create(ctx context.Context, req transport.CreateAutomationRuleRequest) (transport.AutomationRuleResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindValidation, "invalid rule request", err)
	}

	fromStatus, err := optionalStatus(req.FromStatus)
	if err != nil {
		return transport.AutomationRuleResponse{}, err
	}
	toStatus, err := optionalStatus(req.ToStatus)
	if err != nil {
		return transport.AutomationRuleResponse{}, err
	}

	conditions := domain.ParseConditions(req.TriggerCondition)
	s.warnUnknownConditions(conditions)

	// A rule with no gates would otherwise sit in the table matching nothing
	// (the engine treats it as always-false); reject it up front.
	if req.ScoreThreshold == nil && req.DaysInactive == nil && len(conditions) == 0 {
		return transport.AutomationRuleResponse{}, apperr.Validation("rule requires at least one of scoreThreshold, daysInactive, or triggerCondition")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule, err := s.repo.CreateRule(ctx, repository.CreateRuleParams{
		SchoolID:         req.SchoolID,
		RuleName:         req.RuleName,
		TriggerCondition: req.TriggerCondition,
		ScoreThreshold:   req.ScoreThreshold,
		DaysInactive:     req.DaysInactive,
		FromStatus:       fromStatus,
		ToStatus:         toStatus,
		IsActive:         isActive,
	})
	if err != nil {
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindInternal, "create automation rule", err)
	}

	s.publishChanged(ctx, rule)
	return toRuleResponse(rule), nil
}

func (s *RuleService) Update(ctx context.Context, ruleID uuid.UUID, req transport.UpdateAutomationRuleRequest) (transport.AutomationRuleResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindValidation, "invalid rule request", err)
	}

	params := repository.UpdateRuleParams{
		RuleName:          req.RuleName,
		TriggerCondition:  req.TriggerCondition,
		ScoreThreshold:    req.ScoreThreshold,
		ScoreThresholdSet: req.ScoreThresholdSet,
		DaysInactive:      req.DaysInactive,
		DaysInactiveSet:   req.DaysInactiveSet,
		IsActive:          req.IsActive,
	}

	if req.FromStatusSet {
		fromStatus, err := optionalStatus(req.FromStatus)
		if err != nil {
			return transport.AutomationRuleResponse{}, err
		}
		params.FromStatus = fromStatus
		params.FromStatusSet = true
	}
	if req.ToStatusSet {
		toStatus, err := optionalStatus(req.ToStatus)
		if err != nil {
			return transport.AutomationRuleResponse{}, err
		}
		params.ToStatus = toStatus
		params.ToStatusSet = true
	}

	current, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return transport.AutomationRuleResponse{}, apperr.NotFound("automation rule not found")
		}
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindInternal, "load automation rule", err)
	}

	// A gate-removing update must be rejected before anything is written;
	// validate the merged gate set first.
	merged := mergeGates(current, params)
	s.warnUnknownConditions(merged.Conditions)
	if !merged.HasGates() {
		return transport.AutomationRuleResponse{}, apperr.Validation("rule update would leave no matching gates")
	}

	rule, err := s.repo.UpdateRule(ctx, ruleID, params)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return transport.AutomationRuleResponse{}, apperr.NotFound("automation rule not found")
		}
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindInternal, "update automation rule", err)
	}

	s.publishChanged(ctx, rule)
	return toRuleResponse(rule), nil
}

// mergeGates projects the rule's gate set as it would look after the partial
// update is applied.
func mergeGates(current domain.Rule, params repository.UpdateRuleParams) domain.Rule {
	merged := domain.Rule{
		Conditions:     current.Conditions,
		ScoreThreshold: current.ScoreThreshold,
		DaysInactive:   current.DaysInactive,
	}
	if params.TriggerCondition != nil {
		merged.Conditions = domain.ParseConditions(params.TriggerCondition)
	}
	if params.ScoreThresholdSet {
		merged.ScoreThreshold = params.ScoreThreshold
	}
	if params.DaysInactiveSet {
		merged.DaysInactive = params.DaysInactive
	}
	return merged
}

// Deactivate disables a rule without deleting it.
func (s *RuleService) Deactivate(ctx context.Context, ruleID uuid.UUID) (transport.AutomationRuleResponse, error) {
	inactive := false
	rule, err := s.repo.UpdateRule(ctx, ruleID, repository.UpdateRuleParams{IsActive: &inactive})
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return transport.AutomationRuleResponse{}, apperr.NotFound("automation rule not found")
		}
		return transport.AutomationRuleResponse{}, apperr.Wrap(apperr.KindInternal, "deactivate automation rule", err)
	}

	s.publishChanged(ctx, rule)
	return toRuleResponse(rule), nil
}

func (s *RuleService) List(ctx context.Context, schoolID uuid.UUID) ([]transport.AutomationRuleResponse, error) {
	rules, err := s.repo.ListRulesForSchool(ctx, schoolID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list automation rules", err)
	}

	out := make([]transport.AutomationRuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	return out, nil
}

func (s *RuleService) publishChanged(ctx context.Context, rule domain.Rule) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.AutomationRuleChanged{
		BaseEvent: events.NewBaseEvent(),
		RuleID:    rule.ID,
		SchoolID:  rule.SchoolID,
	})
}

func (s *RuleService) warnUnknownConditions(conditions []domain.Condition) {
	if s.log == nil {
		return
	}
	for _, c := range conditions {
		if c.Invalid {
			s.log.Warn("trigger condition will never match", "kind", string(c.Kind))
		}
	}
}

func optionalStatus(raw *string) (*domain.LeadStatus, error) {
	if raw == nil {
		return nil, nil
	}
	status := domain.LeadStatus(*raw)
	if !domain.IsKnownStatus(status) {
		return nil, apperr.Validation("unknown lead status: " + *raw)
	}
	return &status, nil
}
