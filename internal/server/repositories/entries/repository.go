package entries

import (
	"context"

	"github.com/dkurganov/voicediary/internal/server/models"
)

// Repository is the record-store surface the pipeline and services need for
// entries. Every update is a single atomic row write.
type Repository interface {
	Create(ctx context.Context, entry *models.Entry) error
	GetByID(ctx context.Context, id string) (*models.Entry, error)

	// SelectByTranscriptionStatus returns entries whose transcription stage
	// is in the given status, in store scan order.
	SelectByTranscriptionStatus(ctx context.Context, status models.Status) ([]*models.Entry, error)

	// SelectAwaitingAnalysis returns entries with transcription completed
	// and analysis still pending.
	SelectAwaitingAnalysis(ctx context.Context) ([]*models.Entry, error)

	// UpdateTranscription commits a transcription stage transition. A nil
	// transcriptKey leaves the stored key untouched.
	UpdateTranscription(ctx context.Context, id string, status models.Status, transcriptKey *string) error

	// UpdateAnalysis commits an analysis stage transition. A nil summaryKey
	// leaves the stored key untouched.
	UpdateAnalysis(ctx context.Context, id string, status models.Status, summaryKey *string) error

	Delete(ctx context.Context, id string) error
}
