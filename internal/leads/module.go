// Package leads provides the lead lifecycle bounded context module.
// This file wires the repositories, transition authority, rule cache, and
// services together and registers the module's event subscriptions.
package leads

import (
	"context"

	"admissions_backend/internal/events"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/rulecache"
	"admissions_backend/internal/leads/service"
	"admissions_backend/internal/leads/workflow"
	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the leads bounded context.
type Module struct {
	repo      *repository.Repository
	authority *workflow.Authority
	cache     *rulecache.Cache
	leads     *service.LeadService
	rules     *service.RuleService
}

// NewModule creates and initializes the leads module with all its
// dependencies. redisClient may be nil; the rule cache then degrades to
// direct repository reads.
func NewModule(pool *pgxpool.Pool, redisClient *redis.Client, eventBus events.Bus, val *validator.Validator, cfg config.RuleCacheConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	authority := workflow.NewAuthority(repo, eventBus, log)
	cache := rulecache.New(redisClient, repo, cfg.GetRuleCacheTTL(), log)

	m := &Module{
		repo:      repo,
		authority: authority,
		cache:     cache,
		leads:     service.NewLeadService(repo, authority, eventBus, val),
		rules:     service.NewRuleService(repo, eventBus, val, log),
	}

	// Rule edits invalidate the tenant's cached snapshot so the next scan
	// sees a fresh rule set.
	eventBus.Subscribe(events.AutomationRuleChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.AutomationRuleChanged)
		if !ok {
			return nil
		}
		if err := cache.Invalidate(ctx, e.SchoolID); err != nil {
			log.Warn("rule cache invalidation failed", "error", err, "rule_id", e.RuleID.String())
		}
		return nil
	}))

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// LeadService returns the lead lifecycle service for external use.
func (m *Module) LeadService() *service.LeadService {
	return m.leads
}

// RuleService returns the automation rule service for external use.
func (m *Module) RuleService() *service.RuleService {
	return m.rules
}

// Authority returns the transition authority for external use.
func (m *Module) Authority() *workflow.Authority {
	return m.authority
}

// Repository returns the leads repository for worker-side wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RuleCache returns the active rule snapshot cache.
func (m *Module) RuleCache() *rulecache.Cache {
	return m.cache
}
