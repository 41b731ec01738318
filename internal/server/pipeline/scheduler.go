package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/blob"
)

// Scheduler drives the pipeline on a fixed interval. It assumes it is the
// only active instance process-wide: entry selection and the processing
// fence are not protected by a distributed lock, so running two replicas
// concurrently is unsafe.
type Scheduler struct {
	blob          blob.Store
	transcription *TranscriptionStage
	analysis      *AnalysisStage
	logger        logging.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	// tickMu serializes ticks: an interval firing while a tick is still in
	// flight is skipped rather than queued.
	tickMu sync.Mutex
}

// NewScheduler constructs a scheduler over the two stage drivers.
func NewScheduler(blobStore blob.Store, t *TranscriptionStage, a *AnalysisStage, logger logging.Logger) *Scheduler {
	return &Scheduler{
		blob:          blobStore,
		transcription: t,
		analysis:      a,
		logger:        logger.With("component", "scheduler"),
	}
}

// Start begins the recurring tick loop. The first tick fires immediately,
// subsequent ticks every interval. Calling Start while running is a no-op
// that logs a warning.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn(context.Background(), "scheduler already running, ignoring start")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(interval, s.stop, s.done)
	s.logger.Info(context.Background(), "scheduler started", "interval", interval.String())
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tryTick()
	for {
		select {
		case <-ticker.C:
			s.tryTick()
		case <-stop:
			return
		}
	}
}

// Stop halts future ticks. A tick already in progress runs to completion;
// Stop blocks until the loop goroutine has exited. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info(context.Background(), "scheduler stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceRun triggers an out-of-cycle tick, e.g. from an operational
// endpoint. It is skipped when a tick is already in flight.
func (s *Scheduler) ForceRun(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.logger.Warn(ctx, "tick already in flight, skipping forced run")
		return
	}
	defer s.tickMu.Unlock()
	s.Tick(ctx)
}

func (s *Scheduler) tryTick() {
	if !s.tickMu.TryLock() {
		s.logger.Warn(context.Background(), "previous tick still running, skipping interval")
		return
	}
	defer s.tickMu.Unlock()
	s.Tick(context.Background())
}

// Tick runs one reconciliation pass: supporting infrastructure, then the
// transcription stage, then the analysis stage. Stage errors are logged,
// never propagated; a failure for one entry does not stop the others.
// Callers other than the scheduler loop must not invoke Tick concurrently.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()

	if err := s.blob.EnsureBucket(ctx); err != nil {
		s.logger.Error(ctx, "ensure bucket failed", "error", err.Error())
	}

	if err := s.transcription.Reconcile(ctx); err != nil {
		s.logger.Error(ctx, "transcription reconcile failed", "error", err.Error())
	}

	if err := s.analysis.Reconcile(ctx); err != nil {
		s.logger.Error(ctx, "analysis reconcile failed", "error", err.Error())
	}

	s.logger.Debug(ctx, "tick finished", "duration_ms", time.Since(start).Milliseconds())
}
