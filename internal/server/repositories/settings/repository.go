package settings

import (
	"context"

	"github.com/dkurganov/voicediary/internal/server/models"
)

// Repository reads per-user analysis configuration.
type Repository interface {
	// GetByUserID returns the stored settings for a user, or
	// common.ErrorNotFound when the user has none.
	GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error)
}
