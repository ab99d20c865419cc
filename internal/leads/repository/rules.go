package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"admissions_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, school_id, rule_name, trigger_condition, score_threshold,
	days_inactive, from_status, to_status, is_active, created_at`

type CreateRuleParams struct {
	SchoolID         *uuid.UUID
	RuleName         string
	TriggerCondition map[string]any
	ScoreThreshold   *int
	DaysInactive     *int
	FromStatus       *domain.LeadStatus
	ToStatus         *domain.LeadStatus
	IsActive         bool
}

func (r *Repository) CreateRule(ctx context.Context, params CreateRuleParams) (domain.Rule, error) {
	conditionJSON, err := json.Marshal(conditionObject(params.TriggerCondition))
	if err != nil {
		return domain.Rule{}, err
	}

	return scanRule(r.pool.QueryRow(ctx, `
		INSERT INTO lead_automation_rules (
			school_id, rule_name, trigger_condition, score_threshold,
			days_inactive, from_status, to_status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+ruleColumns,
		params.SchoolID, params.RuleName, conditionJSON, params.ScoreThreshold,
		params.DaysInactive, params.FromStatus, params.ToStatus, params.IsActive,
	))
}

type UpdateRuleParams struct {
	RuleName          *string
	TriggerCondition  map[string]any
	ScoreThreshold    *int
	ScoreThresholdSet bool
	DaysInactive      *int
	DaysInactiveSet   bool
	FromStatus        *domain.LeadStatus
	FromStatusSet     bool
	ToStatus          *domain.LeadStatus
	ToStatusSet       bool
	IsActive          *bool
}

const updateRuleQuery = `
	UPDATE lead_automation_rules
	SET rule_name = $2, trigger_condition = COALESCE($3, trigger_condition), score_threshold = $4,
		days_inactive = $5, from_status = $6, to_status = $7, is_active = $8
	WHERE id = $1
	RETURNING ` + ruleColumns

// UpdateRule applies a partial update. The stored trigger_condition JSONB is
// left untouched unless the caller supplies a replacement; re-encoding the
// parsed view would destroy unrecognized keys the operator originally wrote.
func (r *Repository) UpdateRule(ctx context.Context, id uuid.UUID, params UpdateRuleParams) (domain.Rule, error) {
	current, err := r.GetRule(ctx, id)
	if err != nil {
		return domain.Rule{}, err
	}

	name := current.RuleName
	if params.RuleName != nil {
		name = *params.RuleName
	}

	var conditionJSON []byte
	if params.TriggerCondition != nil {
		conditionJSON, err = json.Marshal(params.TriggerCondition)
		if err != nil {
			return domain.Rule{}, err
		}
	}

	scoreThreshold := current.ScoreThreshold
	if params.ScoreThresholdSet {
		scoreThreshold = params.ScoreThreshold
	}
	daysInactive := current.DaysInactive
	if params.DaysInactiveSet {
		daysInactive = params.DaysInactive
	}
	fromStatus := current.FromStatus
	if params.FromStatusSet {
		fromStatus = params.FromStatus
	}
	toStatus := current.ToStatus
	if params.ToStatusSet {
		toStatus = params.ToStatus
	}
	isActive := current.IsActive
	if params.IsActive != nil {
		isActive = *params.IsActive
	}

	rule, err := scanRule(r.pool.QueryRow(ctx, updateRuleQuery,
		id, name, conditionJSON, scoreThreshold, daysInactive, fromStatus, toStatus, isActive,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rule{}, ErrRuleNotFound
	}
	return rule, err
}

func (r *Repository) GetRule(ctx context.Context, id uuid.UUID) (domain.Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM lead_automation_rules
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rule{}, ErrRuleNotFound
	}
	return rule, err
}

const listRulesForSchoolQuery = `
	SELECT ` + ruleColumns + `
	FROM lead_automation_rules
	WHERE school_id = $1 OR school_id IS NULL
	ORDER BY created_at ASC, id ASC`

// ListRulesForSchool returns every rule visible to the tenant, including
// inactive ones, for administration screens.
func (r *Repository) ListRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error) {
	return r.queryRules(ctx, listRulesForSchoolQuery, schoolID)
}

const activeRulesForSchoolQuery = `
	SELECT ` + ruleColumns + `
	FROM lead_automation_rules
	WHERE is_active = true AND (school_id = $1 OR school_id IS NULL)
	ORDER BY created_at ASC, id ASC`

// ActiveRulesForSchool returns the tenant's active rules plus global rules,
// ordered by creation time so that first-match evaluation is deterministic.
// The result is a snapshot: later rule edits do not affect it.
func (r *Repository) ActiveRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error) {
	return r.queryRules(ctx, activeRulesForSchoolQuery, schoolID)
}

func (r *Repository) queryRules(ctx context.Context, query string, args ...any) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// TenantsWithActiveRules returns the school IDs that have at least one
// tenant-scoped active rule, plus every school when a global active rule
// exists. Used by the scan dispatcher to decide which tenants to enqueue.
func (r *Repository) TenantsWithActiveRules(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT school_id FROM lead_automation_rules
		WHERE is_active = true AND school_id IS NOT NULL
		UNION
		SELECT DISTINCT school_id FROM leads
		WHERE EXISTS (
			SELECT 1 FROM lead_automation_rules
			WHERE is_active = true AND school_id IS NULL
		)
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRule(s leadRowScanner) (domain.Rule, error) {
	var rule domain.Rule
	var rawCondition []byte
	var createdAt time.Time
	if err := s.Scan(
		&rule.ID, &rule.SchoolID, &rule.RuleName, &rawCondition, &rule.ScoreThreshold,
		&rule.DaysInactive, &rule.FromStatus, &rule.ToStatus, &rule.IsActive, &createdAt,
	); err != nil {
		return domain.Rule{}, err
	}
	rule.CreatedAt = createdAt

	if len(rawCondition) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(rawCondition, &raw); err == nil {
			rule.Conditions = domain.ParseConditions(raw)
		}
	}
	return rule, nil
}

// conditionObject normalizes a nil condition map to an empty JSON object so
// the column never stores SQL NULL.
func conditionObject(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	return raw
}
