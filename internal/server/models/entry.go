// Package models defines server-side data models persisted in the database.
package models

import "time"

// Entry is one user-submitted diary recording and its derived artifacts.
// AudioKey is set at creation and immutable; TranscriptKey and SummaryKey
// are nil until the corresponding stage completes and are write-once (a
// retry writes a new blob under a new key, never mutates a committed one).
type Entry struct {
	ID     string
	UserID string
	// OccurredAt is the user-supplied timestamp of the diarized event.
	OccurredAt time.Time

	AudioKey      string
	TranscriptKey *string
	SummaryKey    *string

	// TranscriptionStatus and AnalysisStatus form two independent state
	// machines. AnalysisStatus may only leave pending once
	// TranscriptionStatus is completed and TranscriptKey is set.
	TranscriptionStatus Status
	AnalysisStatus      Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transcript is the payload stored in object storage once transcription
// completes. Confidence is the arithmetic mean of the provider's per-token
// confidences, 0 when the result had no scoreable tokens.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
