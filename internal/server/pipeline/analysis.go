package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/blob"
	"github.com/dkurganov/voicediary/internal/server/models"
	"github.com/dkurganov/voicediary/internal/server/providers/analysis"
	"github.com/dkurganov/voicediary/internal/server/repositories/entries"
	"github.com/dkurganov/voicediary/internal/server/repositories/settings"
)

// AnalysisStage moves an entry's analysis status from pending to completed
// or failed once transcription is done. The remote call is synchronous, so
// processing only marks "being handled within this tick" and fences the
// entry against re-selection.
type AnalysisStage struct {
	entries  entries.Repository
	settings settings.Repository
	blob     blob.Store
	provider analysis.Provider
	logger   logging.Logger
}

// NewAnalysisStage wires the stage to its stores and provider.
func NewAnalysisStage(
	entriesRepo entries.Repository,
	settingsRepo settings.Repository,
	blobStore blob.Store,
	provider analysis.Provider,
	logger logging.Logger,
) *AnalysisStage {
	return &AnalysisStage{
		entries:  entriesRepo,
		settings: settingsRepo,
		blob:     blobStore,
		provider: provider,
		logger:   logger.With("stage", "analysis"),
	}
}

// Reconcile analyzes every entry whose transcription is completed and whose
// analysis is still pending. One entry's failure never prevents the others
// from being processed.
func (s *AnalysisStage) Reconcile(ctx context.Context) error {
	eligible, err := s.entries.SelectAwaitingAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("select entries awaiting analysis: %w", err)
	}

	for _, entry := range eligible {
		if err := s.run(ctx, entry); err != nil {
			s.logger.Error(ctx, "analysis failed", "entry_id", entry.ID, "error", err.Error())
		}
	}
	return nil
}

func (s *AnalysisStage) run(ctx context.Context, entry *models.Entry) error {
	if entry.TranscriptionStatus != models.StatusCompleted || entry.TranscriptKey == nil {
		return fmt.Errorf("%w: entry %s not ready for analysis", common.ErrTranscriptMissing, entry.ID)
	}
	if entry.AnalysisStatus != models.StatusPending {
		return fmt.Errorf("%w: analysis of entry %s is %s", common.ErrInvalidTransition, entry.ID, entry.AnalysisStatus)
	}

	// Fence first so a concurrent tick cannot pick the entry up again.
	if err := s.entries.UpdateAnalysis(ctx, entry.ID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("fence entry %s: %w", entry.ID, err)
	}

	summaryKey, err := s.analyze(ctx, entry)
	if err != nil {
		// Terminal for this stage: the fence has been taken and transitions
		// never move backward. Recovery is an external re-run.
		if updErr := s.entries.UpdateAnalysis(ctx, entry.ID, models.StatusFailed, nil); updErr != nil {
			return errors.Join(err, updErr)
		}
		return err
	}

	if err := s.entries.UpdateAnalysis(ctx, entry.ID, models.StatusCompleted, &summaryKey); err != nil {
		return fmt.Errorf("complete entry %s: %w", entry.ID, err)
	}

	s.logger.Info(ctx, "analysis completed", "entry_id", entry.ID)
	return nil
}

func (s *AnalysisStage) analyze(ctx context.Context, entry *models.Entry) (string, error) {
	payload, err := s.blob.Get(ctx, *entry.TranscriptKey)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}
	var transcript models.Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}

	cfg, err := s.userSettings(ctx, entry.UserID)
	if err != nil {
		return "", err
	}

	result, err := s.provider.Analyze(ctx, transcript.Text, cfg.Topics, cfg.Tone)
	if err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	key, err := s.blob.Put(ctx, entry.UserID, "analyses", out, "application/json")
	if err != nil {
		return "", fmt.Errorf("store analysis: %w", err)
	}
	return key, nil
}

func (s *AnalysisStage) userSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	cfg, err := s.settings.GetByUserID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return models.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = models.DefaultTopics
	}
	if cfg.Tone == "" {
		cfg.Tone = models.DefaultTone
	}
	return cfg, nil
}
