package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkurganov/voicediary/internal/common"
)

const defaultAPIURL = "https://api.anthropic.com/v1/messages"

// Client calls the Anthropic messages API and parses the model's output
// into the fixed Analysis shape.
type Client struct {
	apiURL string
	apiKey string
	model  string
	hc     *http.Client
}

// NewClient constructs an analysis client. apiURL may be empty to use the
// public endpoint; timeout bounds the whole remote call.
func NewClient(apiURL, apiKey, model string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		hc:     &http.Client{Timeout: timeout},
	}
}

// Analyze sends the transcript with the user's topic list and tone and
// returns the parsed structured analysis. Malformed model output is
// reported as common.ErrMalformedResponse.
func (c *Client) Analyze(ctx context.Context, text string, topics []string, tone string) (*Analysis, error) {
	raw, err := c.callAPI(ctx, buildPrompt(text, topics, tone))
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}
	return parseAnalysis(raw)
}

func buildPrompt(text string, topics []string, tone string) string {
	var sb strings.Builder

	sb.WriteString("Analyze this personal diary entry. Return JSON only.\n\n")
	sb.WriteString("Diary entry:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nTracked topics:\n")
	for _, topic := range topics {
		sb.WriteString("- ")
		sb.WriteString(topic)
		sb.WriteString("\n")
	}
	sb.WriteString("\nWrite the summary in a ")
	sb.WriteString(tone)
	sb.WriteString(" tone.\n\n")
	sb.WriteString(`Return a JSON object with this structure:
{
  "summary": "one-paragraph summary of the entry",
  "topics": [
    {"topic": "sleep", "mentioned": true, "details": "slept 7 hours", "confidence": 0.9}
  ],
  "not_mentioned": ["topics from the tracked list absent from the entry"],
  "health_flags": {
    "concerning": ["observations that warrant attention"],
    "positive": ["encouraging observations"],
    "recommended": ["suggested follow-ups"]
  }
}

Rules:
- Include every tracked topic either in "topics" or in "not_mentioned"
- Confidence is 0.0-1.0
- Return ONLY the JSON, no other text.`)

	return sb.String()
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return apiResp.Content[0].Text, nil
}

// parseAnalysis decodes the model output into the required shape. A parse
// that succeeds but yields a structurally invalid result is treated the
// same as a parse failure.
func parseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result Analysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	if result.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", common.ErrMalformedResponse)
	}
	for _, topic := range result.Topics {
		if topic.Topic == "" {
			return nil, fmt.Errorf("%w: topic entry without a name", common.ErrMalformedResponse)
		}
		if topic.Confidence < 0 || topic.Confidence > 1 {
			return nil, fmt.Errorf("%w: topic %q confidence %v out of range", common.ErrMalformedResponse, topic.Topic, topic.Confidence)
		}
	}

	return &result, nil
}
