package models

// Status is the lifecycle state of one processing stage of an entry, and of
// the ProcessingJob records that back it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobType identifies which stage a ProcessingJob belongs to.
type JobType string

const (
	JobTypeTranscription JobType = "transcription"
	JobTypeAnalysis      JobType = "analysis"
)
