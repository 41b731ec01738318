package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dkurganov/voicediary/internal/common"
	"github.com/dkurganov/voicediary/internal/logging"
	"github.com/dkurganov/voicediary/internal/server/models"
	"github.com/dkurganov/voicediary/internal/server/providers/analysis"
	"github.com/dkurganov/voicediary/internal/server/providers/transcription"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// -------- record store fakes --------

type fakeEntriesRepo struct {
	mu     sync.Mutex
	items  map[string]*models.Entry
	writes int

	selectErr error
	updateErr error
}

func newFakeEntriesRepo(seed ...*models.Entry) *fakeEntriesRepo {
	r := &fakeEntriesRepo{items: map[string]*models.Entry{}}
	for _, e := range seed {
		c := *e
		r.items[e.ID] = &c
	}
	return r
}

func (r *fakeEntriesRepo) Create(ctx context.Context, entry *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *entry
	r.items[entry.ID] = &c
	return nil
}

func (r *fakeEntriesRepo) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (r *fakeEntriesRepo) SelectByTranscriptionStatus(ctx context.Context, status models.Status) ([]*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selectErr != nil {
		return nil, r.selectErr
	}
	var out []*models.Entry
	for _, e := range r.items {
		if e.TranscriptionStatus == status {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeEntriesRepo) SelectAwaitingAnalysis(ctx context.Context) ([]*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selectErr != nil {
		return nil, r.selectErr
	}
	var out []*models.Entry
	for _, e := range r.items {
		if e.TranscriptionStatus == models.StatusCompleted && e.AnalysisStatus == models.StatusPending {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeEntriesRepo) UpdateTranscription(ctx context.Context, id string, status models.Status, transcriptKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	e, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.writes++
	e.TranscriptionStatus = status
	if transcriptKey != nil {
		k := *transcriptKey
		e.TranscriptKey = &k
	}
	return nil
}

func (r *fakeEntriesRepo) UpdateAnalysis(ctx context.Context, id string, status models.Status, summaryKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	e, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.writes++
	e.AnalysisStatus = status
	if summaryKey != nil {
		k := *summaryKey
		e.SummaryKey = &k
	}
	return nil
}

func (r *fakeEntriesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeEntriesRepo) get(id string) models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

func (r *fakeEntriesRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeJobsRepo struct {
	mu     sync.Mutex
	items  map[string]*models.ProcessingJob
	writes int
}

func newFakeJobsRepo() *fakeJobsRepo {
	return &fakeJobsRepo{items: map[string]*models.ProcessingJob{}}
}

func (r *fakeJobsRepo) Create(ctx context.Context, job *models.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	c := *job
	r.items[job.ID] = &c
	return nil
}

func (r *fakeJobsRepo) SelectByTypeAndStatus(ctx context.Context, jobType models.JobType, status models.Status) ([]*models.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ProcessingJob
	for _, j := range r.items {
		if j.JobType == jobType && j.Status == status {
			c := *j
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeJobsRepo) MarkCompleted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.writes++
	j.Status = models.StatusCompleted
	return nil
}

func (r *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.writes++
	j.Status = models.StatusFailed
	j.ErrorMessage = &errorMessage
	return nil
}

func (r *fakeJobsRepo) IncrementPollFailures(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.items[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	r.writes++
	j.PollFailures++
	return j.PollFailures, nil
}

func (r *fakeJobsRepo) DeleteByEntryID(ctx context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.items {
		if j.EntryID == entryID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeJobsRepo) all() []models.ProcessingJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ProcessingJob
	for _, j := range r.items {
		out = append(out, *j)
	}
	return out
}

func (r *fakeJobsRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeSettingsRepo struct {
	settings map[string]*models.UserSettings
	err      error
}

func (r *fakeSettingsRepo) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.settings[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

// -------- blob store fake --------

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int

	ensureCalls int
	ensureErr   error
	putErr      error
	getErr      error
	signErr     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (b *fakeBlobStore) EnsureBucket(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureCalls++
	return b.ensureErr
}

func (b *fakeBlobStore) Put(ctx context.Context, userID, logicalPath string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	b.seq++
	key := fmt.Sprintf("users/%s/%s/%d", userID, logicalPath, b.seq)
	c := make([]byte, len(data))
	copy(c, data)
	b.objects[key] = c
	return key, nil
}

func (b *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return data, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobStore) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return "https://signed.example/" + key, nil
}

// -------- provider fakes --------

type pollScript struct {
	state *transcription.JobState
	err   error
}

type fakeTranscriber struct {
	mu sync.Mutex

	submitID    string
	submitErr   error
	submitCalls int
	submittedTo []string

	// polls is consumed one element per PollStatus call; the last element
	// repeats once the script is exhausted.
	polls     []pollScript
	pollCalls int

	result   *transcription.Result
	fetchErr error
}

func (f *fakeTranscriber) Submit(ctx context.Context, audioURL, languageHint string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.submittedTo = append(f.submittedTo, audioURL)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeTranscriber) PollStatus(ctx context.Context, providerJobID string) (*transcription.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if len(f.polls) == 0 {
		return &transcription.JobState{Status: transcription.StateProcessing}, nil
	}
	script := f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	return script.state, script.err
}

func (f *fakeTranscriber) FetchResult(ctx context.Context, resultURL string) (*transcription.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.result, nil
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *analysis.Analysis
	err    error

	calls      int
	lastText   string
	lastTopics []string
	lastTone   string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string, topics []string, tone string) (*analysis.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = text
	f.lastTopics = topics
	f.lastTone = tone
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
