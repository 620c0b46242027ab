// Package repo provides the PostgreSQL-backed job store. Jobs are kept as
// one JSON document per row, so a single save is atomic at job granularity.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"previz/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id         TEXT PRIMARY KEY,
    doc        JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`
	_, err := r.pool.Exec(ctx, query)
	return err
}

// Create inserts a new job document.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	query := `
INSERT INTO generation_jobs (id, doc, created_at, updated_at)
VALUES ($1, $2, $3, $4);
`
	_, err = r.pool.Exec(ctx, query, job.ID, doc, job.CreatedAt, job.UpdatedAt)
	return err
}

// Save replaces the whole job document in one statement.
func (r *JobRepositoryPG) Save(ctx context.Context, job *domain.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	query := `
UPDATE generation_jobs
SET doc = $2, updated_at = $3
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, job.ID, doc, job.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get fetches a job by id.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT doc FROM generation_jobs WHERE id = $1;
`
	var doc []byte
	if err := r.pool.QueryRow(ctx, query, jobID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Delete removes a job document.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	query := `
DELETE FROM generation_jobs WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all jobs, newest first.
func (r *JobRepositoryPG) List(ctx context.Context) ([]*domain.Job, error) {
	query := `
SELECT doc FROM generation_jobs ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var job domain.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
