// Package analysis integrates the language-model provider that turns a
// diary transcript into a structured analysis. The remote call is
// synchronous from the pipeline's point of view.
package analysis

import "context"

// TopicInsight is the provider's finding for one tracked topic.
type TopicInsight struct {
	Topic string `json:"topic"`
	// Mentioned reports whether the transcript touched the topic at all.
	Mentioned bool `json:"mentioned"`
	// Details is free-form data extracted for the topic.
	Details string `json:"details,omitempty"`
	// Confidence is the provider's certainty in [0, 1].
	Confidence float64 `json:"confidence"`
}

// HealthFlags groups free-text observations by disposition.
type HealthFlags struct {
	Concerning  []string `json:"concerning"`
	Positive    []string `json:"positive"`
	Recommended []string `json:"recommended"`
}

// Analysis is the structured result of analyzing one transcript.
type Analysis struct {
	Summary      string         `json:"summary"`
	Topics       []TopicInsight `json:"topics"`
	NotMentioned []string       `json:"not_mentioned"`
	HealthFlags  HealthFlags    `json:"health_flags"`
}

// Provider is the surface the pipeline needs from the analysis service.
// Topics and tone shape the prompt only; the response shape is fixed.
type Provider interface {
	Analyze(ctx context.Context, text string, topics []string, tone string) (*Analysis, error)
}
