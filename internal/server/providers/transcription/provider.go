// Package transcription integrates the remote speech-to-text provider.
// Submission is asynchronous: the provider assigns a job handle that is
// polled until it reports a terminal state.
package transcription

// State is the provider-reported lifecycle state of a remote job.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateUnknown    State = "unknown"
)

// JobState is one poll observation of a remote job. ResultURL is set only
// when Status is StateCompleted; FailureReason only when StateFailed.
type JobState struct {
	Status        State
	ResultURL     string
	FailureReason string
}

// Result is a completed transcription payload. TokenConfidences carries the
// provider's per-token confidence scores when available.
type Result struct {
	Text             string
	TokenConfidences []float64
}

// MeanConfidence aggregates per-token confidences into a single scalar: the
// arithmetic mean, or 0 when there are no scoreable tokens.
func MeanConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}
