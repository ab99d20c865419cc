package scanner

import (
	"context"
	"testing"
	"time"

	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/workflow"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeLeadLister struct {
	leads []repository.Lead
	calls int
}

func (f *fakeLeadLister) ListBySchool(_ context.Context, _ uuid.UUID) ([]repository.Lead, error) {
	f.calls++
	return f.leads, nil
}

type fakeInteractionReader struct {
	last map[uuid.UUID]*time.Time
	err  error
}

func (f *fakeInteractionReader) LastInteractionTime(_ context.Context, leadID uuid.UUID) (*time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.last[leadID], nil
}

type fakeRuleSource struct {
	rules []domain.Rule
}

func (f *fakeRuleSource) ActiveRulesForSchool(_ context.Context, _ uuid.UUID) ([]domain.Rule, error) {
	return f.rules, nil
}

type appliedTransition struct {
	leadID uuid.UUID
	status domain.LeadStatus
	cause  workflow.Cause
}

type fakeApplier struct {
	applied  []appliedTransition
	failures []error
}

func (f *fakeApplier) ApplyTransition(_ context.Context, leadID, _ uuid.UUID, newStatus domain.LeadStatus, cause workflow.Cause) (repository.Lead, error) {
	f.applied = append(f.applied, appliedTransition{leadID: leadID, status: newStatus, cause: cause})
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return repository.Lead{}, err
		}
	}
	return repository.Lead{ID: leadID, Status: newStatus}, nil
}

var scanNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func scanLeadFixture(schoolID uuid.UUID, status domain.LeadStatus, score int) repository.Lead {
	return repository.Lead{
		ID:        uuid.New(),
		SchoolID:  schoolID,
		Status:    status,
		Source:    domain.SourceWebsite,
		Score:     score,
		CreatedAt: scanNow.AddDate(0, 0, -60),
	}
}

func scanRuleFixture(schoolID uuid.UUID, threshold int, to domain.LeadStatus) domain.Rule {
	return domain.Rule{
		ID:             uuid.New(),
		SchoolID:       &schoolID,
		RuleName:       "hot leads",
		ScoreThreshold: &threshold,
		ToStatus:       &to,
		IsActive:       true,
		CreatedAt:      scanNow.Add(-time.Hour),
	}
}

func newTestScanner(leads *fakeLeadLister, interactions *fakeInteractionReader, rules *fakeRuleSource, applier *fakeApplier) *Scanner {
	return NewScanner(leads, interactions, rules, applier, 1000, 4, nil).
		WithClock(func() time.Time { return scanNow })
}

func TestScanTenantAppliesMatchedTransitions(t *testing.T) {
	schoolID := uuid.New()
	rule := scanRuleFixture(schoolID, 50, domain.StatusInterested)

	hot := scanLeadFixture(schoolID, domain.StatusContacted, 80)
	cold := scanLeadFixture(schoolID, domain.StatusContacted, 10)

	leads := &fakeLeadLister{leads: []repository.Lead{hot, cold}}
	applier := &fakeApplier{}
	scanner := newTestScanner(leads, &fakeInteractionReader{}, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Leads != 2 || result.Matched != 1 || result.Applied != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(applier.applied) != 1 {
		t.Fatalf("expected one applied transition, got %d", len(applier.applied))
	}
	applied := applier.applied[0]
	if applied.leadID != hot.ID {
		t.Fatal("expected the hot lead to be transitioned")
	}
	if applied.status != domain.StatusInterested {
		t.Fatalf("expected target status interested, got %q", applied.status)
	}
	if !applied.cause.IsAutomated() {
		t.Fatal("expected the transition to carry an automated cause")
	}
}

func TestScanTenantSkipsLeadListingWithoutRules(t *testing.T) {
	schoolID := uuid.New()
	leads := &fakeLeadLister{leads: []repository.Lead{scanLeadFixture(schoolID, domain.StatusNew, 90)}}
	scanner := newTestScanner(leads, &fakeInteractionReader{}, &fakeRuleSource{}, &fakeApplier{})

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Leads != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if leads.calls != 0 {
		t.Fatal("expected no lead listing when the tenant has no active rules")
	}
}

func TestScanTenantCountsStatusPreservingMatchesAsUnchanged(t *testing.T) {
	schoolID := uuid.New()
	threshold := 50
	rule := domain.Rule{
		ID:             uuid.New(),
		SchoolID:       &schoolID,
		RuleName:       "flag hot leads",
		ScoreThreshold: &threshold,
		IsActive:       true,
		CreatedAt:      scanNow.Add(-time.Hour),
	}

	leads := &fakeLeadLister{leads: []repository.Lead{scanLeadFixture(schoolID, domain.StatusContacted, 80)}}
	applier := &fakeApplier{}
	scanner := newTestScanner(leads, &fakeInteractionReader{}, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched != 1 || result.Unchanged != 1 || result.Applied != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(applier.applied) != 0 {
		t.Fatal("expected no commit for a status-preserving match")
	}
}

func TestScanTenantSurrendersOnConflict(t *testing.T) {
	schoolID := uuid.New()
	rule := scanRuleFixture(schoolID, 50, domain.StatusInterested)
	leads := &fakeLeadLister{leads: []repository.Lead{scanLeadFixture(schoolID, domain.StatusContacted, 80)}}

	applier := &fakeApplier{failures: []error{apperr.Conflict("lead status changed concurrently")}}
	scanner := newTestScanner(leads, &fakeInteractionReader{}, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || result.Applied != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("expected a conflict to not be retried within the scan, got %d attempts", len(applier.applied))
	}
}

func TestScanTenantRetriesTransientFailures(t *testing.T) {
	schoolID := uuid.New()
	rule := scanRuleFixture(schoolID, 50, domain.StatusInterested)
	leads := &fakeLeadLister{leads: []repository.Lead{scanLeadFixture(schoolID, domain.StatusContacted, 80)}}

	applier := &fakeApplier{failures: []error{apperr.Internal("storage hiccup"), nil}}
	scanner := newTestScanner(leads, &fakeInteractionReader{}, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("expected one retry after a transient failure, got %d attempts", len(applier.applied))
	}
}

func TestScanTenantUsesLastInteractionForInactivityGate(t *testing.T) {
	schoolID := uuid.New()
	days := 14
	to := domain.StatusLost
	rule := domain.Rule{
		ID:           uuid.New(),
		SchoolID:     &schoolID,
		RuleName:     "stale leads",
		DaysInactive: &days,
		ToStatus:     &to,
		IsActive:     true,
		CreatedAt:    scanNow.Add(-time.Hour),
	}

	stale := scanLeadFixture(schoolID, domain.StatusContacted, 0)
	active := scanLeadFixture(schoolID, domain.StatusContacted, 0)

	recent := scanNow.Add(-24 * time.Hour)
	interactions := &fakeInteractionReader{last: map[uuid.UUID]*time.Time{active.ID: &recent}}

	leads := &fakeLeadLister{leads: []repository.Lead{stale, active}}
	applier := &fakeApplier{}
	scanner := newTestScanner(leads, interactions, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if applier.applied[0].leadID != stale.ID {
		t.Fatal("expected only the stale lead to be transitioned")
	}
}

func TestScanTenantSkipsLeadWhenInteractionLookupFails(t *testing.T) {
	schoolID := uuid.New()
	rule := scanRuleFixture(schoolID, 50, domain.StatusInterested)
	leads := &fakeLeadLister{leads: []repository.Lead{scanLeadFixture(schoolID, domain.StatusContacted, 80)}}

	interactions := &fakeInteractionReader{err: context.DeadlineExceeded}
	applier := &fakeApplier{}
	scanner := newTestScanner(leads, interactions, &fakeRuleSource{rules: []domain.Rule{rule}}, applier)

	result, err := scanner.ScanTenant(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("expected a per-lead lookup failure to not fail the scan, got %v", err)
	}
	if result.Matched != 0 || len(applier.applied) != 0 {
		t.Fatalf("expected the lead to be skipped, got %+v", result)
	}
}
