package jobs

import (
	"context"

	"github.com/dkurganov/voicediary/internal/server/models"
)

// Repository is the record-store surface for processing-job attempt records.
type Repository interface {
	Create(ctx context.Context, job *models.ProcessingJob) error

	// SelectByTypeAndStatus returns jobs of one type in one status, in store
	// scan order. The transcription reconciler uses it to find outstanding
	// remote jobs.
	SelectByTypeAndStatus(ctx context.Context, jobType models.JobType, status models.Status) ([]*models.ProcessingJob, error)

	// MarkCompleted transitions a job to completed.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed transitions a job to failed, preserving the provider's
	// failure reason.
	MarkFailed(ctx context.Context, id string, errorMessage string) error

	// IncrementPollFailures bumps the failed-poll counter and returns the
	// new value, so the caller can give up after a cap.
	IncrementPollFailures(ctx context.Context, id string) (int, error)

	// DeleteByEntryID removes all job rows for an entry. Used by entry
	// deletion; deleting zero rows is not an error.
	DeleteByEntryID(ctx context.Context, entryID string) error
}
