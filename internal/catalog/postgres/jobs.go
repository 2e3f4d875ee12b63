package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/errs"
)

func (s *Store) CreateJob(ctx context.Context, j *catalog.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, collection_id, document_id, status, progress, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.CollectionID, j.DocumentID, j.Status, j.Progress, j.ErrorMessage, j.CreatedAt, j.CompletedAt)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*catalog.Job, error) {
	var j catalog.Job
	err := s.pool.QueryRow(ctx, `
		SELECT id, collection_id, document_id, status, progress, error_message, created_at, completed_at
		FROM jobs WHERE id = $1`, id).Scan(
		&j.ID, &j.CollectionID, &j.DocumentID, &j.Status, &j.Progress, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &j, nil
}

// UpdateJobProgress sets status/progress/error as a single row update. The
// durable store is the sole source of truth for job state (§4.5); callers
// (C4) are responsible for only ever increasing progress.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, status catalog.JobStatus, progress int, errMsg string) error {
	var completedAtExpr string
	if status == catalog.JobCompleted || status == catalog.JobFailed {
		completedAtExpr = "now()"
	} else {
		completedAtExpr = "completed_at"
	}
	query := fmt.Sprintf(`
		UPDATE jobs SET status = $2, progress = $3, error_message = $4, completed_at = %s
		WHERE id = $1`, completedAtExpr)
	result, err := s.pool.Exec(ctx, query, id, status, progress, errMsg)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SweepInterruptedJobs implements the §5 startup sweep: every non-terminal
// job is marked failed with "interrupted", idempotently (re-running finds
// nothing left to sweep).
func (s *Store) SweepInterruptedJobs(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, error_message = 'interrupted', completed_at = now()
		WHERE status IN ($2, $3)`,
		catalog.JobFailed, catalog.JobPending, catalog.JobProcessing)
	if err != nil {
		return 0, fmt.Errorf("sweeping interrupted jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}
