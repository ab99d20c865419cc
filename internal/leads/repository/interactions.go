package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction kinds. An interaction is any touchpoint with the guardian that
// resets the lead's inactivity clock for automation rules.
const (
	InteractionCall    = "call"
	InteractionEmail   = "email"
	InteractionTour    = "tour"
	InteractionMessage = "message"
)

type Interaction struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Kind       string
	Notes      *string
	OccurredAt time.Time
	CreatedAt  time.Time
}

type RecordInteractionParams struct {
	LeadID     uuid.UUID
	Kind       string
	Notes      *string
	OccurredAt time.Time
}

func (r *Repository) RecordInteraction(ctx context.Context, params RecordInteractionParams) (Interaction, error) {
	var interaction Interaction
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_interactions (lead_id, kind, notes, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, kind, notes, occurred_at, created_at`,
		params.LeadID, params.Kind, params.Notes, params.OccurredAt,
	).Scan(
		&interaction.ID, &interaction.LeadID, &interaction.Kind, &interaction.Notes,
		&interaction.OccurredAt, &interaction.CreatedAt,
	)
	if err != nil {
		return Interaction{}, err
	}
	return interaction, nil
}

// LastInteractionTime returns the most recent interaction timestamp for the
// lead, or nil when no interaction has been recorded. Consumed by the
// days-inactive gate of the rule engine.
func (r *Repository) LastInteractionTime(ctx context.Context, leadID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(occurred_at) FROM lead_interactions WHERE lead_id = $1`,
		leadID,
	).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}
