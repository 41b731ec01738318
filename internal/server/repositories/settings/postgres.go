// Package settings provides the PostgreSQL-backed repository for per-user
// analysis configuration (tracked topics and tone).
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/dbx"
	"github.com/dkurganov/voicediary/internal/server/models"
)

// PostgresRepository implements settings storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserID returns the user's settings. Topics are stored as a JSON
// array in a jsonb column.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	query := `SELECT user_id, topics, tone FROM user_settings WHERE user_id=$1`
	row := r.db.QueryRowContext(ctx, query, userID)

	var item models.UserSettings
	var topicsRaw []byte
	err := row.Scan(&item.UserID, &topicsRaw, &item.Tone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select settings: %w", err)
	}
	if err := json.Unmarshal(topicsRaw, &item.Topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	return &item, nil
}
