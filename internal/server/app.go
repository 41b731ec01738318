// Package server initializes and runs the voice diary server: it opens the
// database, runs migrations, wires the blob store and providers into the
// pipeline, and drives the scheduler until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/blob"
	"github.com/dkurganov/voicediary/internal/server/config"
	"github.com/dkurganov/voicediary/internal/server/pipeline"
	"github.com/dkurganov/voicediary/internal/server/providers/analysis"
	"github.com/dkurganov/voicediary/internal/server/providers/transcription"
	"github.com/dkurganov/voicediary/internal/server/repositories/repomanager"
	"github.com/dkurganov/voicediary/internal/server/services"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	scheduler    *pipeline.Scheduler
	entryService *services.EntryService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("repository init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobStore := blob.NewS3Store(blob.Config{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	transcriber := transcription.NewHTTPProvider(cfg.TranscriptionAPIURL, cfg.TranscriptionAPIKey, cfg.ProviderTimeout)
	analyzer := analysis.NewClient(cfg.AnalysisAPIURL, cfg.AnalysisAPIKey, cfg.AnalysisModel, cfg.ProviderTimeout)

	transcriptionStage := pipeline.NewTranscriptionStage(
		rm.Entries(db), rm.Jobs(db), blobStore, transcriber,
		cfg.LanguageHint, cfg.AudioURLTTL, logger,
	)
	analysisStage := pipeline.NewAnalysisStage(
		rm.Entries(db), rm.Settings(db), blobStore, analyzer, logger,
	)
	scheduler := pipeline.NewScheduler(blobStore, transcriptionStage, analysisStage, logger)

	entryService := services.NewEntryService(db, rm, blobStore, logger)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		scheduler:    scheduler,
		entryService: entryService,
	}, nil
}

// EntryService exposes the entry operations for transports layered on top of
// the app.
func (app *App) EntryService() *services.EntryService {
	return app.entryService
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the scheduler and blocks until the context is cancelled or a
// termination signal arrives, then shuts down in order: no new ticks, wait
// for the in-flight tick, close the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.scheduler.Start(app.config.TickInterval)

	<-ctx.Done()

	app.logger.Info(ctx, "Shutting down...")
	app.scheduler.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err.Error())
	}
}
