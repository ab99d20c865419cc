// Package automation implements the rule engine that proposes automated lead
// status transitions. Evaluation is pure: the same lead snapshot, rule set,
// clock reading, and interaction timestamp always produce the same match, so
// automated transitions are reproducible and testable.
package automation

import (
	"sort"
	"time"

	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
)

// Evaluate returns the first rule that matches the lead, or nil when none
// does. Rules are considered in a stable order (creation time, then rule ID
// as tie-break) so that first-match-wins is deterministic regardless of the
// order the snapshot arrived in.
//
// lastInteraction is the lead's most recent interaction timestamp; nil means
// no interaction was ever recorded, in which case the lead's creation time
// anchors the inactivity gate.
func Evaluate(lead repository.Lead, rules []domain.Rule, now time.Time, lastInteraction *time.Time) *domain.Rule {
	ordered := make([]domain.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	for i := range ordered {
		if matches(lead, ordered[i], now, lastInteraction) {
			rule := ordered[i]
			return &rule
		}
	}
	return nil
}

// ProposedStatus returns the status the matched rule prescribes. A rule
// without a destination is status-preserving; the transition authority
// treats the resulting same-status change as an idempotent no-op.
func ProposedStatus(rule domain.Rule, lead repository.Lead) domain.LeadStatus {
	if rule.ToStatus != nil {
		return *rule.ToStatus
	}
	return lead.Status
}

func matches(lead repository.Lead, rule domain.Rule, now time.Time, lastInteraction *time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if !rule.AppliesToTenant(lead.SchoolID) {
		return false
	}
	// A rule with no gates at all would match every lead; treat it as
	// always-false instead.
	if !rule.HasGates() {
		return false
	}
	if rule.FromStatus != nil && *rule.FromStatus != lead.Status {
		return false
	}
	if rule.ScoreThreshold != nil && lead.Score < *rule.ScoreThreshold {
		return false
	}
	if rule.DaysInactive != nil {
		anchor := lead.CreatedAt
		if lastInteraction != nil {
			anchor = *lastInteraction
		}
		cutoff := now.AddDate(0, 0, -*rule.DaysInactive)
		if anchor.After(cutoff) {
			return false
		}
	}

	profile := lead.Profile()
	for _, condition := range rule.Conditions {
		if !condition.Matches(profile) {
			return false
		}
	}
	return true
}
