package service

import (
	"context"
	"testing"
	"time"

	"admissions_backend/internal/events"
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/transport"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/validator"

	"github.com/google/uuid"
)

type fakeRuleStore struct {
	rules   map[uuid.UUID]domain.Rule
	creates int
	updates int
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[uuid.UUID]domain.Rule)}
}

func (f *fakeRuleStore) CreateRule(_ context.Context, params repository.CreateRuleParams) (domain.Rule, error) {
	f.creates++
	rule := domain.Rule{
		ID:             uuid.New(),
		SchoolID:       params.SchoolID,
		RuleName:       params.RuleName,
		Conditions:     domain.ParseConditions(params.TriggerCondition),
		ScoreThreshold: params.ScoreThreshold,
		DaysInactive:   params.DaysInactive,
		FromStatus:     params.FromStatus,
		ToStatus:       params.ToStatus,
		IsActive:       params.IsActive,
		CreatedAt:      time.Now(),
	}
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRuleStore) UpdateRule(_ context.Context, id uuid.UUID, params repository.UpdateRuleParams) (domain.Rule, error) {
	f.updates++
	rule, ok := f.rules[id]
	if !ok {
		return domain.Rule{}, repository.ErrRuleNotFound
	}
	if params.RuleName != nil {
		rule.RuleName = *params.RuleName
	}
	if params.TriggerCondition != nil {
		rule.Conditions = domain.ParseConditions(params.TriggerCondition)
	}
	if params.ScoreThresholdSet {
		rule.ScoreThreshold = params.ScoreThreshold
	}
	if params.DaysInactiveSet {
		rule.DaysInactive = params.DaysInactive
	}
	if params.FromStatusSet {
		rule.FromStatus = params.FromStatus
	}
	if params.ToStatusSet {
		rule.ToStatus = params.ToStatus
	}
	if params.IsActive != nil {
		rule.IsActive = *params.IsActive
	}
	f.rules[id] = rule
	return rule, nil
}

func (f *fakeRuleStore) GetRule(_ context.Context, id uuid.UUID) (domain.Rule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return domain.Rule{}, repository.ErrRuleNotFound
	}
	return rule, nil
}

func (f *fakeRuleStore) ListRulesForSchool(_ context.Context, schoolID uuid.UUID) ([]domain.Rule, error) {
	out := make([]domain.Rule, 0)
	for _, rule := range f.rules {
		if rule.AppliesToTenant(schoolID) {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(_ string, _ events.Handler) {}

func newTestRuleService(store *fakeRuleStore, bus *fakeBus) *RuleService {
	return NewRuleService(store, bus, validator.New(), nil)
}

func seedRule(store *fakeRuleStore, schoolID uuid.UUID) domain.Rule {
	threshold := 50
	to := domain.StatusInterested
	rule := domain.Rule{
		ID:             uuid.New(),
		SchoolID:       &schoolID,
		RuleName:       "hot leads",
		ScoreThreshold: &threshold,
		ToStatus:       &to,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	store.rules[rule.ID] = rule
	return rule
}

func TestCreateRejectsRuleWithoutGates(t *testing.T) {
	store := newFakeRuleStore()
	bus := &fakeBus{}
	svc := newTestRuleService(store, bus)
	schoolID := uuid.New()

	_, err := svc.Create(context.Background(), transport.CreateAutomationRuleRequest{
		SchoolID: &schoolID,
		RuleName: "matches nothing",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for gateless rule, got %v", err)
	}
	if store.creates != 0 {
		t.Fatal("expected no rule to be persisted")
	}
	if len(bus.published) != 0 {
		t.Fatal("expected no event for a rejected rule")
	}
}

func TestCreatePublishesAutomationRuleChanged(t *testing.T) {
	store := newFakeRuleStore()
	bus := &fakeBus{}
	svc := newTestRuleService(store, bus)
	schoolID := uuid.New()
	threshold := 50
	to := "interested"

	resp, err := svc.Create(context.Background(), transport.CreateAutomationRuleRequest{
		SchoolID:       &schoolID,
		RuleName:       "hot leads",
		ScoreThreshold: &threshold,
		ToStatus:       &to,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsActive {
		t.Fatal("expected new rules to default to active")
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	changed, ok := bus.published[0].(events.AutomationRuleChanged)
	if !ok {
		t.Fatalf("expected AutomationRuleChanged, got %T", bus.published[0])
	}
	if changed.RuleID != resp.ID {
		t.Fatal("expected the event to reference the created rule")
	}
}

func TestUpdateRejectsGateRemovalBeforeWriting(t *testing.T) {
	store := newFakeRuleStore()
	bus := &fakeBus{}
	svc := newTestRuleService(store, bus)
	rule := seedRule(store, uuid.New())

	// The only gate is the score threshold; clearing it must fail without
	// persisting anything or publishing an invalidation.
	_, err := svc.Update(context.Background(), rule.ID, transport.UpdateAutomationRuleRequest{
		ScoreThreshold:    nil,
		ScoreThresholdSet: true,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.updates != 0 {
		t.Fatal("expected the rejected update to never reach the store")
	}
	if len(bus.published) != 0 {
		t.Fatal("expected no event for a rejected update")
	}

	stored := store.rules[rule.ID]
	if stored.ScoreThreshold == nil || *stored.ScoreThreshold != 50 {
		t.Fatal("expected the stored rule to keep its gate")
	}
}

func TestUpdateAllowsSwappingGates(t *testing.T) {
	store := newFakeRuleStore()
	bus := &fakeBus{}
	svc := newTestRuleService(store, bus)
	rule := seedRule(store, uuid.New())
	days := 14

	resp, err := svc.Update(context.Background(), rule.ID, transport.UpdateAutomationRuleRequest{
		ScoreThreshold:    nil,
		ScoreThresholdSet: true,
		DaysInactive:      &days,
		DaysInactiveSet:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ScoreThreshold != nil {
		t.Fatal("expected the score threshold to be cleared")
	}
	if resp.DaysInactive == nil || *resp.DaysInactive != 14 {
		t.Fatal("expected the inactivity gate to replace the threshold")
	}
	if store.updates != 1 {
		t.Fatalf("expected one store update, got %d", store.updates)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one invalidation event, got %d", len(bus.published))
	}
}

func TestUpdateUnknownRuleMapsToNotFound(t *testing.T) {
	store := newFakeRuleStore()
	svc := newTestRuleService(store, &fakeBus{})
	days := 14

	_, err := svc.Update(context.Background(), uuid.New(), transport.UpdateAutomationRuleRequest{
		DaysInactive:    &days,
		DaysInactiveSet: true,
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeactivateKeepsGatesUntouched(t *testing.T) {
	store := newFakeRuleStore()
	bus := &fakeBus{}
	svc := newTestRuleService(store, bus)
	rule := seedRule(store, uuid.New())

	resp, err := svc.Deactivate(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.IsActive {
		t.Fatal("expected the rule to be inactive")
	}
	if resp.ScoreThreshold == nil || *resp.ScoreThreshold != 50 {
		t.Fatal("expected deactivation to leave the gates alone")
	}
	if len(bus.published) != 1 {
		t.Fatal("expected deactivation to publish an invalidation event")
	}
}

func TestOptionalStatusValidatesVocabulary(t *testing.T) {
	status, err := optionalStatus(nil)
	if err != nil || status != nil {
		t.Fatalf("expected nil input to pass through, got %v %v", status, err)
	}

	raw := "contacted"
	status, err = optionalStatus(&raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status == nil || *status != domain.StatusContacted {
		t.Fatalf("expected contacted, got %v", status)
	}

	bad := "archived"
	_, err = optionalStatus(&bad)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestToRuleResponseReEncodesConditions(t *testing.T) {
	schoolID := uuid.New()
	threshold := 50
	from := domain.StatusContacted
	to := domain.StatusInterested

	rule := domain.Rule{
		ID:             uuid.New(),
		SchoolID:       &schoolID,
		RuleName:       "website toddlers",
		ScoreThreshold: &threshold,
		FromStatus:     &from,
		ToStatus:       &to,
		IsActive:       true,
		Conditions: []domain.Condition{
			{Kind: domain.ConditionSourceIs, Value: "website"},
			{Kind: domain.ConditionHasEmail, Want: true},
		},
	}

	resp := toRuleResponse(rule)
	if resp.FromStatus == nil || *resp.FromStatus != "contacted" {
		t.Fatalf("expected from status contacted, got %v", resp.FromStatus)
	}
	if resp.ToStatus == nil || *resp.ToStatus != "interested" {
		t.Fatalf("expected to status interested, got %v", resp.ToStatus)
	}

	if got := resp.TriggerCondition["source_is"]; got != "website" {
		t.Fatalf("expected source_is to re-encode as string, got %v", got)
	}
	if got := resp.TriggerCondition["has_email"]; got != true {
		t.Fatalf("expected has_email to re-encode as bool, got %v", got)
	}
}
