package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	ApplyURL    string    `json:"apply_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type JobInput struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ApplyURL    string `json:"apply_url"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns job postings newest first, optionally filtered by a
// case-insensitive title/company substring and an exact location.
func (r *Repository) List(ctx context.Context, query, location string) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, company, location, description, apply_url, created_at, updated_at
		FROM jobs
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR company ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR location = $2)
		ORDER BY created_at DESC
	`, query, location)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	listings := make([]Job, 0)
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.ApplyURL, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		listings = append(listings, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return listings, nil
}

func (r *Repository) Create(ctx context.Context, input JobInput) (Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Job{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	j := Job{
		ID:          id.String(),
		Title:       input.Title,
		Company:     input.Company,
		Location:    input.Location,
		Description: input.Description,
		ApplyURL:    input.ApplyURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, company, location, description, apply_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, j.ID, j.Title, j.Company, j.Location, j.Description, j.ApplyURL, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}

	return j, nil
}

func (r *Repository) Update(ctx context.Context, id string, input JobInput) (Job, error) {
	now := time.Now().UTC()

	var j Job
	err := r.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET title = $2, company = $3, location = $4, description = $5, apply_url = $6, updated_at = $7
		WHERE id = $1
		RETURNING id, title, company, location, description, apply_url, created_at, updated_at
	`, id, input.Title, input.Company, input.Location, input.Description, input.ApplyURL, now).
		Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.ApplyURL, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, sql.ErrNoRows
		}
		return Job{}, fmt.Errorf("update job: %w", err)
	}

	return j, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("count deleted jobs: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
