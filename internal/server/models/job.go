package models

import "time"

// ProcessingJob records one attempt to perform one stage of work for one
// entry via an external provider. An entry may accumulate several jobs of
// the same type across retries, but at most one is processing at a time per
// stage. The entry status is the externally visible summary; the job status
// is the internal attempt record.
type ProcessingJob struct {
	ID      string
	EntryID string
	JobType JobType
	Status  Status

	// ProviderJobID is the opaque handle returned by the external provider;
	// nil until the remote submission succeeds.
	ProviderJobID *string
	// ErrorMessage is set only on failure. Free-text diagnostic, not parsed.
	ErrorMessage *string
	// PollFailures counts consecutive failed status polls. Reset is never
	// needed: a successful poll resolves the job before the cap matters.
	PollFailures int

	CreatedAt time.Time
	UpdatedAt time.Time
}
