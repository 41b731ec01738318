// Package entries provides the PostgreSQL-backed repository for diary
// entries and their per-stage processing statuses.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/dbx"
	"github.com/dkurganov/voicediary/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, user_id, occurred_at, audio_key, transcript_key, summary_key,
		transcription_status, analysis_status, created_at, updated_at`

// Create inserts a new entry with both stage statuses as stored on the model
// (the upload path always passes pending/pending).
func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, user_id, occurred_at, audio_key, transcription_status, analysis_status)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.OccurredAt, entry.AudioKey, entry.TranscriptionStatus, entry.AnalysisStatus)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the entry with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)

	item, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	return item, nil
}

// SelectByTranscriptionStatus returns all entries whose transcription stage
// is in the given status.
func (r *PostgresRepository) SelectByTranscriptionStatus(ctx context.Context, status models.Status) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE transcription_status=$1`
	return r.selectEntries(ctx, query, status)
}

// SelectAwaitingAnalysis returns entries ready for the analysis stage:
// transcription completed, analysis still pending.
func (r *PostgresRepository) SelectAwaitingAnalysis(ctx context.Context) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE transcription_status=$1 AND analysis_status=$2`
	return r.selectEntries(ctx, query, models.StatusCompleted, models.StatusPending)
}

// UpdateTranscription writes the transcription status (and, when non-nil,
// the transcript key) in one atomic statement, bumping updated_at.
func (r *PostgresRepository) UpdateTranscription(ctx context.Context, id string, status models.Status, transcriptKey *string) error {
	query := `
		UPDATE entries
		SET transcription_status = $2,
			transcript_key = COALESCE($3, transcript_key),
			updated_at = now()
		WHERE id = $1;
	`
	return r.execExpectingOneRow(ctx, query, id, status, transcriptKey)
}

// UpdateAnalysis writes the analysis status (and, when non-nil, the summary
// key) in one atomic statement, bumping updated_at.
func (r *PostgresRepository) UpdateAnalysis(ctx context.Context, id string, status models.Status, summaryKey *string) error {
	query := `
		UPDATE entries
		SET analysis_status = $2,
			summary_key = COALESCE($3, summary_key),
			updated_at = now()
		WHERE id = $1;
	`
	return r.execExpectingOneRow(ctx, query, id, status, summaryKey)
}

// Delete removes the entry row. Associated processing_jobs rows go with it
// via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execExpectingOneRow(ctx, `DELETE FROM entries WHERE id = $1;`, id)
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

func (r *PostgresRepository) selectEntries(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		item, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanEntry(scan func(dest ...any) error) (*models.Entry, error) {
	var item models.Entry
	err := scan(
		&item.ID, &item.UserID, &item.OccurredAt, &item.AudioKey,
		&item.TranscriptKey, &item.SummaryKey,
		&item.TranscriptionStatus, &item.AnalysisStatus,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
