package service

import (
	"admissions_backend/internal/leads/domain"
	"admissions_backend/internal/leads/repository"
	"admissions_backend/internal/leads/transport"
)

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                lead.ID,
		SchoolID:          lead.SchoolID,
		Status:            string(lead.Status),
		Source:            string(lead.Source),
		GuardianFirstName: lead.GuardianFirstName,
		GuardianLastName:  lead.GuardianLastName,
		GuardianPhone:     lead.GuardianPhone,
		GuardianEmail:     lead.GuardianEmail,
		ChildFirstName:    lead.ChildFirstName,
		ChildLastName:     lead.ChildLastName,
		Program:           lead.Program,
		City:              lead.City,
		Score:             lead.Score,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

func toAuditEntryResponse(entry repository.AuditEntry) transport.AuditEntryResponse {
	resp := transport.AuditEntryResponse{
		ID:               entry.ID,
		LeadID:           entry.LeadID,
		UserID:           entry.UserID,
		ActionType:       entry.ActionType,
		AutomationRuleID: entry.AutomationRuleID,
		IsAutomated:      entry.IsAutomated,
		Notes:            entry.Notes,
		CreatedAt:        entry.CreatedAt,
	}
	if entry.OldStatus != nil {
		old := string(*entry.OldStatus)
		resp.OldStatus = &old
	}
	if entry.NewStatus != nil {
		updated := string(*entry.NewStatus)
		resp.NewStatus = &updated
	}
	return resp
}

func toRuleResponse(rule domain.Rule) transport.AutomationRuleResponse {
	resp := transport.AutomationRuleResponse{
		ID:             rule.ID,
		SchoolID:       rule.SchoolID,
		RuleName:       rule.RuleName,
		ScoreThreshold: rule.ScoreThreshold,
		DaysInactive:   rule.DaysInactive,
		IsActive:       rule.IsActive,
		CreatedAt:      rule.CreatedAt,
	}
	if rule.FromStatus != nil {
		from := string(*rule.FromStatus)
		resp.FromStatus = &from
	}
	if rule.ToStatus != nil {
		to := string(*rule.ToStatus)
		resp.ToStatus = &to
	}
	if len(rule.Conditions) > 0 {
		obj := make(map[string]any, len(rule.Conditions))
		for _, c := range rule.Conditions {
			if c.Kind == domain.ConditionHasEmail {
				obj[string(c.Kind)] = c.Want
			} else {
				obj[string(c.Kind)] = c.Value
			}
		}
		resp.TriggerCondition = obj
	}
	return resp
}
