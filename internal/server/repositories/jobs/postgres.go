// Package jobs provides the PostgreSQL-backed repository for processing-job
// attempt records.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/dbx"
	"github.com/dkurganov/voicediary/internal/server/models"
)

// PostgresRepository implements job storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new job attempt record.
func (r *PostgresRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (id, entry_id, job_type, status, provider_job_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.EntryID, job.JobType, job.Status, job.ProviderJobID, job.ErrorMessage)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectByTypeAndStatus returns all jobs of jobType in the given status.
func (r *PostgresRepository) SelectByTypeAndStatus(ctx context.Context, jobType models.JobType, status models.Status) ([]*models.ProcessingJob, error) {
	query := `SELECT id, entry_id, job_type, status, provider_job_id, error_message, poll_failures, created_at, updated_at
		FROM processing_jobs WHERE job_type=$1 AND status=$2`
	rows, err := r.db.QueryContext(ctx, query, jobType, status)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.ProcessingJob
	for rows.Next() {
		var item models.ProcessingJob
		if err := rows.Scan(
			&item.ID, &item.EntryID, &item.JobType, &item.Status,
			&item.ProviderJobID, &item.ErrorMessage, &item.PollFailures,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkCompleted sets the job status to completed in one atomic write.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `UPDATE processing_jobs SET status = $2, updated_at = now() WHERE id = $1;`
	return r.execExpectingOneRow(ctx, query, id, models.StatusCompleted)
}

// MarkFailed sets the job status to failed and records the failure reason
// in one atomic write.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `UPDATE processing_jobs SET status = $2, error_message = $3, updated_at = now() WHERE id = $1;`
	return r.execExpectingOneRow(ctx, query, id, models.StatusFailed, errorMessage)
}

// IncrementPollFailures bumps the failed-poll counter atomically and returns
// the new value.
func (r *PostgresRepository) IncrementPollFailures(ctx context.Context, id string) (int, error) {
	query := `UPDATE processing_jobs SET poll_failures = poll_failures + 1, updated_at = now()
		WHERE id = $1 RETURNING poll_failures;`
	var n int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// DeleteByEntryID removes all job rows belonging to an entry.
func (r *PostgresRepository) DeleteByEntryID(ctx context.Context, entryID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE entry_id = $1;`, entryID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) execExpectingOneRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
