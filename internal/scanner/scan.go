// Package scanner runs the periodic automation scan: it evaluates every
// tenant's leads against the tenant's active rule snapshot and routes each
// proposed transition through the transition authority.
package scanner

import (
	"context"
	"fmt"
	"time"

	"admissions_backend/internal/leads/automation"
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/workflow"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// LeadLister lists the leads of one tenant.
type LeadLister interface {
	ListBySchool(ctx context.Context, schoolID uuid.UUID) ([]repository.Lead, error)
}

// InteractionReader supplies the inactivity anchor for the days-inactive gate.
type InteractionReader interface {
	LastInteractionTime(ctx context.Context, leadID uuid.UUID) (*time.Time, error)
}

// RuleSource supplies the active rule snapshot for a tenant. Satisfied by
// the rule cache and, directly, by the repository.
type RuleSource interface {
	ActiveRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error)
}

// TransitionApplier commits proposed transitions. Satisfied by the workflow
// authority.
type TransitionApplier interface {
	ApplyTransition(ctx context.Context, leadID, schoolID uuid.UUID, newStatus domain.LeadStatus, cause workflow.Cause) (repository.Lead, error)
}

// Clock supplies the scan's single time reading, injected for testability.
// Every lead in one scan is evaluated against the same instant.
type Clock func() time.Time

type Scanner struct {
	leads           LeadLister
	interactions    InteractionReader
	rules           RuleSource
	applier         TransitionApplier
	limiter         *rate.Limiter
	evalConcurrency int
	clock           Clock
	log             *logger.Logger
}

func NewScanner(leads LeadLister, interactions InteractionReader, rules RuleSource, applier TransitionApplier, ratePerSecond float64, evalConcurrency int, log *logger.Logger) *Scanner {
	if ratePerSecond <= 0 {
		ratePerSecond = 25
	}
	if evalConcurrency < 1 {
		evalConcurrency = 8
	}
	return &Scanner{
		leads:           leads,
		interactions:    interactions,
		rules:           rules,
		applier:         applier,
		limiter:         rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		evalConcurrency: evalConcurrency,
		clock:           time.Now,
		log:             log,
	}
}

// WithClock overrides the scanner's clock. Test hook.
func (s *Scanner) WithClock(clock Clock) *Scanner {
	s.clock = clock
	return s
}

// ScanResult summarizes one tenant scan for logging.
type ScanResult struct {
	Leads     int
	Matched   int
	Applied   int
	Unchanged int
	Failed    int
}

type proposal struct {
	lead repository.Lead
	rule domain.Rule
}

// ScanTenant evaluates the tenant's leads against its active rule snapshot.
// Evaluation runs in parallel across leads; the resulting transitions are
// committed serially through the authority, rate limited, with backoff on
// transient failures. A conflict after retries is surrendered: the next scan
// re-evaluates against the fresh state.
func (s *Scanner) ScanTenant(ctx context.Context, schoolID uuid.UUID) (ScanResult, error) {
	var result ScanResult

	rules, err := s.rules.ActiveRulesForSchool(ctx, schoolID)
	if err != nil {
		return result, fmt.Errorf("load rule snapshot: %w", err)
	}
	if len(rules) == 0 {
		return result, nil
	}

	leads, err := s.leads.ListBySchool(ctx, schoolID)
	if err != nil {
		return result, fmt.Errorf("list leads: %w", err)
	}
	result.Leads = len(leads)
	if len(leads) == 0 {
		return result, nil
	}

	now := s.clock()
	proposals := make([]*proposal, len(leads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.evalConcurrency)
	for i := range leads {
		g.Go(func() error {
			lead := leads[i]
			lastInteraction, err := s.interactions.LastInteractionTime(gctx, lead.ID)
			if err != nil {
				// Without the inactivity anchor the evaluation could
				// misfire; skip this lead and let the next scan retry.
				if s.log != nil {
					s.log.Warn("last interaction lookup failed", "error", err, "lead_id", lead.ID.String())
				}
				return nil
			}
			if rule := s.evaluate(lead, rules, now, lastInteraction); rule != nil {
				proposals[i] = &proposal{lead: lead, rule: *rule}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for _, p := range proposals {
		if p == nil {
			continue
		}
		result.Matched++

		target := automation.ProposedStatus(p.rule, p.lead)
		if target == p.lead.Status {
			result.Unchanged++
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}
		if err := s.applyWithRetry(ctx, p.lead, target, p.rule); err != nil {
			result.Failed++
			if s.log != nil {
				s.log.Error("automated transition failed",
					"error", err,
					"lead_id", p.lead.ID.String(),
					"rule_id", p.rule.ID.String(),
					"target_status", string(target),
				)
			}
			continue
		}
		result.Applied++
	}

	return result, nil
}

// evaluate shields the scan from a panicking condition predicate: a failure
// is logged and treated as "no rule matched" for this lead, never propagated.
func (s *Scanner) evaluate(lead repository.Lead, rules []domain.Rule, now time.Time, lastInteraction *time.Time) (matched *domain.Rule) {
	defer func() {
		if r := recover(); r != nil {
			matched = nil
			if s.log != nil {
				s.log.RuleEvaluationFailure(lead.ID.String(), "", fmt.Errorf("rule evaluation panic: %v", r))
			}
		}
	}()
	return automation.Evaluate(lead, rules, now, lastInteraction)
}

func (s *Scanner) applyWithRetry(ctx context.Context, lead repository.Lead, target domain.LeadStatus, rule domain.Rule) error {
	operation := func() error {
		_, err := s.applier.ApplyTransition(ctx, lead.ID, lead.SchoolID, target, workflow.AutomatedCause(rule.ID))
		if err == nil {
			return nil
		}
		if apperr.Is(err, apperr.KindConflict) {
			// The lead moved under us; the evaluation is stale. Give up and
			// let the next scan decide against the new status.
			return backoff.Permanent(err)
		}
		if !apperr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
