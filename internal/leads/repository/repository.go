// Package repository provides pgx-backed persistence for leads, automation
// rules, the audit log, and interaction facts. Every lead query is scoped to
// the owning school.
package repository

import (
	"context"
	"errors"
	"time"

	"admissions_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lead does not exist within the tenant scope.
	ErrNotFound = errors.New("lead not found")
	// ErrRuleNotFound is returned when an automation rule does not exist.
	ErrRuleNotFound = errors.New("automation rule not found")
	// ErrStatusConflict is returned when a status commit loses an optimistic
	// concurrency race: the lead's status no longer matches the expected one.
	ErrStatusConflict = errors.New("lead status changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx so that audit inserts
// can run either standalone or inside the transition transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Lead struct {
	ID                uuid.UUID
	SchoolID          uuid.UUID
	Status            domain.LeadStatus
	Source            domain.LeadSource
	GuardianFirstName string
	GuardianLastName  string
	GuardianPhone     string
	GuardianEmail     *string
	ChildFirstName    string
	ChildLastName     string
	Program           string
	City              string
	Score             int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile returns the attribute view trigger conditions evaluate against.
func (l Lead) Profile() domain.LeadProfile {
	return domain.LeadProfile{
		Source:   l.Source,
		Program:  l.Program,
		City:     l.City,
		HasEmail: l.GuardianEmail != nil && *l.GuardianEmail != "",
	}
}

const leadColumns = `id, school_id, status, source, guardian_first_name, guardian_last_name,
	guardian_phone, guardian_email, child_first_name, child_last_name, program, city, score,
	created_at, updated_at`

type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s leadRowScanner) (Lead, error) {
	var lead Lead
	err := s.Scan(
		&lead.ID, &lead.SchoolID, &lead.Status, &lead.Source,
		&lead.GuardianFirstName, &lead.GuardianLastName, &lead.GuardianPhone, &lead.GuardianEmail,
		&lead.ChildFirstName, &lead.ChildLastName, &lead.Program, &lead.City, &lead.Score,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

type CreateLeadParams struct {
	SchoolID          uuid.UUID
	Status            domain.LeadStatus
	Source            domain.LeadSource
	GuardianFirstName string
	GuardianLastName  string
	GuardianPhone     string
	GuardianEmail     *string
	ChildFirstName    string
	ChildLastName     string
	Program           string
	City              string
	Score             int
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			school_id, status, source, guardian_first_name, guardian_last_name,
			guardian_phone, guardian_email, child_first_name, child_last_name,
			program, city, score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+leadColumns,
		params.SchoolID, params.Status, params.Source,
		params.GuardianFirstName, params.GuardianLastName, params.GuardianPhone, params.GuardianEmail,
		params.ChildFirstName, params.ChildLastName, params.Program, params.City, params.Score,
	)
	return scanLead(row)
}

const getLeadByIDQuery = `
	SELECT ` + leadColumns + `
	FROM leads
	WHERE id = $1 AND school_id = $2`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, schoolID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, getLeadByIDQuery, id, schoolID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

const listLeadsBySchoolQuery = `
	SELECT ` + leadColumns + `
	FROM leads
	WHERE school_id = $1
	ORDER BY created_at ASC, id ASC`

func (r *Repository) ListBySchool(ctx context.Context, schoolID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, listLeadsBySchoolQuery, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// SetScore updates the lead's automation score. Scores are maintained by an
// external scoring collaborator; the workflow core only reads them.
func (r *Repository) SetScore(ctx context.Context, id uuid.UUID, schoolID uuid.UUID, score int) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET score = $3, updated_at = now()
		WHERE id = $1 AND school_id = $2
		RETURNING `+leadColumns,
		id, schoolID, score,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}
