// Package pipeline contains the asynchronous entry-processing pipeline: the
// two stage drivers (transcription, analysis) and the scheduler that drives
// every entry toward a terminal state. All state lives in the record and
// blob stores, so a restart loses no work.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/blob"
	"github.com/dkurganov/voicediary/internal/server/models"
	"github.com/dkurganov/voicediary/internal/server/providers/transcription"
	"github.com/dkurganov/voicediary/internal/server/repositories/entries"
	"github.com/dkurganov/voicediary/internal/server/repositories/jobs"
)

// maxPollFailures caps consecutive failed status polls per job. At the
// default 30s tick this gives a broken provider integration about an hour
// before the entry is failed instead of being retried forever.
const maxPollFailures = 120

// TranscriptionStage moves an entry's transcription status from pending to
// completed or failed, with processing marking an outstanding remote job.
type TranscriptionStage struct {
	entries  entries.Repository
	jobs     jobs.Repository
	blob     blob.Store
	provider transcription.Provider
	logger   logging.Logger

	languageHint string
	audioURLTTL  time.Duration
}

// NewTranscriptionStage wires the stage to its stores and provider.
func NewTranscriptionStage(
	entriesRepo entries.Repository,
	jobsRepo jobs.Repository,
	blobStore blob.Store,
	provider transcription.Provider,
	languageHint string,
	audioURLTTL time.Duration,
	logger logging.Logger,
) *TranscriptionStage {
	return &TranscriptionStage{
		entries:      entriesRepo,
		jobs:         jobsRepo,
		blob:         blobStore,
		provider:     provider,
		languageHint: languageHint,
		audioURLTTL:  audioURLTTL,
		logger:       logger.With("stage", "transcription"),
	}
}

// Start submits the entry's audio to the provider and records the remote
// job. On submission failure the entry is marked failed directly and no job
// row is left outstanding; recovery is an external re-upload or re-run.
func (s *TranscriptionStage) Start(ctx context.Context, entry *models.Entry) error {
	if entry.TranscriptionStatus != models.StatusPending {
		return fmt.Errorf("%w: transcription of entry %s is %s", common.ErrInvalidTransition, entry.ID, entry.TranscriptionStatus)
	}

	audioURL, err := s.blob.SignedGetURL(ctx, entry.AudioKey, s.audioURLTTL)
	if err != nil {
		// Storage hiccup: leave the entry pending for the next tick.
		return fmt.Errorf("sign audio url for entry %s: %w", entry.ID, err)
	}

	providerJobID, err := s.provider.Submit(ctx, audioURL, s.languageHint)
	if err != nil {
		s.logger.Error(ctx, "submission rejected, failing entry", "entry_id", entry.ID, "error", err.Error())
		if updErr := s.entries.UpdateTranscription(ctx, entry.ID, models.StatusFailed, nil); updErr != nil {
			return fmt.Errorf("mark entry %s failed: %w", entry.ID, updErr)
		}
		return nil
	}

	job := &models.ProcessingJob{
		ID:            uuid.New().String(),
		EntryID:       entry.ID,
		JobType:       models.JobTypeTranscription,
		Status:        models.StatusProcessing,
		ProviderJobID: &providerJobID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// The remote job is orphaned; the entry stays pending and a fresh
		// submission happens next tick.
		return fmt.Errorf("create job for entry %s: %w", entry.ID, err)
	}

	if err := s.entries.UpdateTranscription(ctx, entry.ID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark entry %s processing: %w", entry.ID, err)
	}

	s.logger.Info(ctx, "transcription submitted", "entry_id", entry.ID, "provider_job_id", providerJobID)
	return nil
}

// Reconcile advances the transcription stage one step for every eligible
// entry: it submits pending entries, then polls outstanding remote jobs.
// One entry's failure never prevents the others from being processed.
func (s *TranscriptionStage) Reconcile(ctx context.Context) error {
	pending, err := s.entries.SelectByTranscriptionStatus(ctx, models.StatusPending)
	if err != nil {
		return fmt.Errorf("select pending entries: %w", err)
	}
	for _, entry := range pending {
		if err := s.Start(ctx, entry); err != nil {
			s.logger.Error(ctx, "start failed", "entry_id", entry.ID, "error", err.Error())
		}
	}

	outstanding, err := s.jobs.SelectByTypeAndStatus(ctx, models.JobTypeTranscription, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("select outstanding jobs: %w", err)
	}
	for _, job := range outstanding {
		if err := s.poll(ctx, job); err != nil {
			// Transient by assumption: the job stays processing and is
			// polled again next tick, until the failure cap is reached.
			s.logger.Warn(ctx, "poll failed, will retry", "job_id", job.ID, "entry_id", job.EntryID, "error", err.Error())
			s.recordPollFailure(ctx, job, err)
		}
	}
	return nil
}

func (s *TranscriptionStage) recordPollFailure(ctx context.Context, job *models.ProcessingJob, pollErr error) {
	n, err := s.jobs.IncrementPollFailures(ctx, job.ID)
	if err != nil {
		s.logger.Error(ctx, "record poll failure", "job_id", job.ID, "error", err.Error())
		return
	}
	if n < maxPollFailures {
		return
	}

	s.logger.Error(ctx, "poll retries exhausted, failing entry", "job_id", job.ID, "entry_id", job.EntryID, "failures", n)
	reason := fmt.Sprintf("poll retries exhausted: %v", pollErr)
	if err := s.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		s.logger.Error(ctx, "mark job failed", "job_id", job.ID, "error", err.Error())
		return
	}
	if err := s.entries.UpdateTranscription(ctx, job.EntryID, models.StatusFailed, nil); err != nil {
		s.logger.Error(ctx, "mark entry failed", "entry_id", job.EntryID, "error", err.Error())
	}
}

func (s *TranscriptionStage) poll(ctx context.Context, job *models.ProcessingJob) error {
	if job.ProviderJobID == nil {
		// Defect from a partial write; terminal for this attempt.
		if err := s.jobs.MarkFailed(ctx, job.ID, "job has no provider handle"); err != nil {
			return err
		}
		return s.entries.UpdateTranscription(ctx, job.EntryID, models.StatusFailed, nil)
	}

	state, err := s.provider.PollStatus(ctx, *job.ProviderJobID)
	if err != nil {
		return err
	}

	switch state.Status {
	case transcription.StateCompleted:
		return s.complete(ctx, job, state.ResultURL)
	case transcription.StateFailed:
		s.logger.Info(ctx, "provider reported failure", "job_id", job.ID, "entry_id", job.EntryID, "reason", state.FailureReason)
		if err := s.jobs.MarkFailed(ctx, job.ID, state.FailureReason); err != nil {
			return err
		}
		return s.entries.UpdateTranscription(ctx, job.EntryID, models.StatusFailed, nil)
	default:
		// Still queued or running remotely; nothing to write.
		return nil
	}
}

func (s *TranscriptionStage) complete(ctx context.Context, job *models.ProcessingJob, resultURL string) error {
	entry, err := s.entries.GetByID(ctx, job.EntryID)
	if err != nil {
		return fmt.Errorf("load entry %s: %w", job.EntryID, err)
	}
	if entry.TranscriptionStatus.Terminal() {
		// The entry already reached a terminal state (e.g. a previous tick
		// committed it but failed to close the job); just close the job.
		return s.jobs.MarkCompleted(ctx, job.ID)
	}

	result, err := s.provider.FetchResult(ctx, resultURL)
	if err != nil {
		return fmt.Errorf("fetch result for job %s: %w", job.ID, err)
	}

	transcript := models.Transcript{
		Text:       result.Text,
		Confidence: transcription.MeanConfidence(result.TokenConfidences),
	}
	payload, err := json.Marshal(transcript)
	if err != nil {
		return err
	}

	key, err := s.blob.Put(ctx, entry.UserID, "transcripts", payload, "application/json")
	if err != nil {
		return fmt.Errorf("store transcript for entry %s: %w", entry.ID, err)
	}

	if err := s.entries.UpdateTranscription(ctx, entry.ID, models.StatusCompleted, &key); err != nil {
		return fmt.Errorf("complete entry %s: %w", entry.ID, err)
	}
	if err := s.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	s.logger.Info(ctx, "transcription completed", "entry_id", entry.ID, "confidence", transcript.Confidence)
	return nil
}
