package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dkurganov/voicediary/internal/common"
)

// Provider is the minimal surface the pipeline needs from a speech-to-text
// service.
type Provider interface {
	// Submit hands the audio (as a readable URL) to the provider and returns
	// the provider-assigned job handle.
	Submit(ctx context.Context, audioURL, languageHint string) (string, error)

	// PollStatus queries the remote job by handle. A transport error is
	// returned as error; an explicit provider-reported failure comes back as
	// StateFailed inside the JobState, not as error.
	PollStatus(ctx context.Context, providerJobID string) (*JobState, error)

	// FetchResult downloads and decodes a completed job's payload.
	FetchResult(ctx context.Context, resultURL string) (*Result, error)
}

// HTTPProvider talks to the transcription service's JSON API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	hc      *http.Client

	// maxRetryElapsed caps the exponential backoff applied to each HTTP
	// exchange, so that one stuck call cannot stall a whole scheduler tick.
	maxRetryElapsed time.Duration
}

// NewHTTPProvider constructs a provider client. timeout bounds each HTTP
// round trip; retries with backoff stay within maxRetryElapsed.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL:         baseURL,
		apiKey:          apiKey,
		hc:              &http.Client{Timeout: timeout},
		maxRetryElapsed: timeout,
	}
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // queued | processing | completed | error
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type resultResponse struct {
	Text  string `json:"text"`
	Words []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

// Submit posts the audio URL and language hint, returning the job handle.
func (p *HTTPProvider) Submit(ctx context.Context, audioURL, languageHint string) (string, error) {
	body, err := json.Marshal(submitRequest{AudioURL: audioURL, Language: languageHint})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/transcripts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp submitResponse
	if err := p.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("transcription submit: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("transcription submit rejected: %s", resp.Error)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("transcription submit: %w: no job id", common.ErrMalformedResponse)
	}
	return resp.ID, nil
}

// PollStatus queries the remote job state by handle.
func (p *HTTPProvider) PollStatus(ctx context.Context, providerJobID string) (*JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/transcripts/"+providerJobID, nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := p.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("transcription poll: %w", err)
	}

	switch resp.Status {
	case "queued":
		return &JobState{Status: StateQueued}, nil
	case "processing":
		return &JobState{Status: StateProcessing}, nil
	case "completed":
		return &JobState{Status: StateCompleted, ResultURL: resp.ResultURL}, nil
	case "error", "failed":
		return &JobState{Status: StateFailed, FailureReason: resp.Error}, nil
	default:
		return &JobState{Status: StateUnknown}, nil
	}
}

// FetchResult downloads the completed transcript payload.
func (p *HTTPProvider) FetchResult(ctx context.Context, resultURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}

	var resp resultResponse
	if err := p.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("transcription result: %w", err)
	}

	result := &Result{Text: resp.Text}
	for _, w := range resp.Words {
		result.TokenConfidences = append(result.TokenConfidences, w.Confidence)
	}
	return result, nil
}

// doJSON performs the request with exponential backoff on transport errors
// and 5xx responses, decoding the body into target.
func (p *HTTPProvider) doJSON(req *http.Request, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxRetryElapsed

	if p.apiKey != "" {
		req.Header.Set("Authorization", p.apiKey)
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		body = b
	}

	var lastErr error
	op := func() error {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		resp, err := p.hc.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = err
			return err
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(data))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// Client errors are not retryable.
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(data, target); err != nil {
			lastErr = fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, req.Context())); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
