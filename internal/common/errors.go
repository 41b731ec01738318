// Package common defines shared constants and sentinel errors used across
// voicediary components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Pipeline errors.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTranscriptMissing = errors.New("transcript not available")

	// Provider errors. ErrProviderFailure marks an explicit, terminal failure
	// reported by the remote service; transport hiccups are ordinary errors
	// and are retried. ErrMalformedResponse marks a response that arrived but
	// did not parse into the expected shape.
	ErrProviderFailure   = errors.New("provider reported failure")
	ErrMalformedResponse = errors.New("malformed provider response")
)
