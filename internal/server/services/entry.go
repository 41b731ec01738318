// Package services implements the application-facing operations on diary
// entries: upload, retrieval with decoded payloads, and deletion.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkurganov/voicediary/internal/dbx"
	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/blob"
	"github.com/dkurganov/voicediary/internal/server/models"
	"github.com/dkurganov/voicediary/internal/server/providers/analysis"
	"github.com/dkurganov/voicediary/internal/server/repositories/repomanager"
)

// EntryDetail is an entry together with its decoded payloads, when the
// corresponding stage has completed.
type EntryDetail struct {
	Entry      *models.Entry
	Transcript *models.Transcript
	Analysis   *analysis.Analysis
}

// EntryService owns the entry lifecycle outside the pipeline: creating an
// entry from an uploaded recording, reading it back, and deleting it.
type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blob        blob.Store
	logger      logging.Logger
}

// NewEntryService wires the service to its database, repositories and blob
// store.
func NewEntryService(db *sql.DB, rm repomanager.RepositoryManager, blobStore blob.Store, logger logging.Logger) *EntryService {
	return &EntryService{
		db:          db,
		repomanager: rm,
		blob:        blobStore,
		logger:      logger.With("component", "entry_service"),
	}
}

// CreateEntry stores the uploaded audio and inserts the entry with both
// stages pending. The scheduler picks it up on its next tick; nothing is
// processed inline.
func (s *EntryService) CreateEntry(ctx context.Context, userID string, occurredAt time.Time, audio []byte, contentType string) (*models.Entry, error) {
	if len(audio) == 0 {
		return nil, errors.New("empty audio payload")
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	audioKey, err := s.blob.Put(ctx, userID, "audio", audio, contentType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	entry := &models.Entry{
		ID:                  uuid.New().String(),
		UserID:              userID,
		OccurredAt:          occurredAt,
		AudioKey:            audioKey,
		TranscriptionStatus: models.StatusPending,
		AnalysisStatus:      models.StatusPending,
	}
	if err := s.repomanager.Entries(s.db).Create(ctx, entry); err != nil {
		// Best effort: don't leave the audio orphaned when the row insert
		// failed.
		if delErr := s.blob.Delete(ctx, audioKey); delErr != nil {
			s.logger.Warn(ctx, "orphaned audio cleanup failed", "key", audioKey, "error", delErr.Error())
		}
		return nil, fmt.Errorf("create entry: %w", err)
	}

	s.logger.Info(ctx, "entry created", "entry_id", entry.ID, "user_id", userID)
	return entry, nil
}

// GetEntry returns the entry and, for each completed stage, the decoded
// payload fetched from the blob store.
func (s *EntryService) GetEntry(ctx context.Context, id string) (*EntryDetail, error) {
	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &EntryDetail{Entry: entry}

	if entry.TranscriptionStatus == models.StatusCompleted && entry.TranscriptKey != nil {
		payload, err := s.blob.Get(ctx, *entry.TranscriptKey)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		var transcript models.Transcript
		if err := json.Unmarshal(payload, &transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		detail.Transcript = &transcript
	}

	if entry.AnalysisStatus == models.StatusCompleted && entry.SummaryKey != nil {
		payload, err := s.blob.Get(ctx, *entry.SummaryKey)
		if err != nil {
			return nil, fmt.Errorf("load analysis: %w", err)
		}
		var result analysis.Analysis
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		detail.Analysis = &result
	}

	return detail, nil
}

// AudioURL returns a short-lived presigned URL for the entry's original
// recording.
func (s *EntryService) AudioURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.blob.SignedGetURL(ctx, entry.AudioKey, ttl)
}

// DeleteEntry removes the entry and its job rows in one transaction, then
// deletes the blobs. Blob deletion failures are logged, not returned: the
// rows are already gone and the objects are unreachable.
func (s *EntryService) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Jobs(tx).DeleteByEntryID(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Entries(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}

	keys := []string{entry.AudioKey}
	if entry.TranscriptKey != nil {
		keys = append(keys, *entry.TranscriptKey)
	}
	if entry.SummaryKey != nil {
		keys = append(keys, *entry.SummaryKey)
	}
	for _, key := range keys {
		if err := s.blob.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "blob cleanup failed", "entry_id", id, "key", key, "error", err.Error())
		}
	}

	s.logger.Info(ctx, "entry deleted", "entry_id", id)
	return nil
}
