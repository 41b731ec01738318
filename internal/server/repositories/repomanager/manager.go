package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurganov/voicediary/internal/dbx"
	"github.com/dkurganov/voicediary/internal/server/repositories/entries"
	"github.com/dkurganov/voicediary/internal/server/repositories/jobs"
	"github.com/dkurganov/voicediary/internal/server/repositories/settings"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes the schema migration hook.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
	Jobs(db dbx.DBTX) jobs.Repository
	Settings(db dbx.DBTX) settings.Repository
}
