package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkurganov/voicediary/internal/common"
)

const validAnalysisJSON = `{
	"summary": "A quiet day with decent sleep.",
	"topics": [
		{"topic": "sleep", "mentioned": true, "details": "slept 7 hours", "confidence": 0.9},
		{"topic": "mood", "mentioned": true, "details": "felt tired", "confidence": 0.7}
	],
	"not_mentioned": ["exercise"],
	"health_flags": {
		"concerning": ["persistent tiredness"],
		"positive": ["regular sleep schedule"],
		"recommended": ["consider an earlier bedtime"]
	}
}`

func TestParseAnalysis_Valid(t *testing.T) {
	got, err := parseAnalysis(validAnalysisJSON)
	require.NoError(t, err)
	assert.Equal(t, "A quiet day with decent sleep.", got.Summary)
	require.Len(t, got.Topics, 2)
	assert.Equal(t, "sleep", got.Topics[0].Topic)
	assert.True(t, got.Topics[0].Mentioned)
	assert.Equal(t, []string{"exercise"}, got.NotMentioned)
	assert.Equal(t, []string{"persistent tiredness"}, got.HealthFlags.Concerning)
}

func TestParseAnalysis_StripsMarkdownFences(t *testing.T) {
	got, err := parseAnalysis("```json\n" + validAnalysisJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "A quiet day with decent sleep.", got.Summary)
}

func TestParseAnalysis_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I could not analyze this entry, sorry!"},
		{"empty object", `{}`},
		{"missing summary", `{"topics":[]}`},
		{"topic without name", `{"summary":"s","topics":[{"mentioned":true,"confidence":0.5}]}`},
		{"confidence above one", `{"summary":"s","topics":[{"topic":"sleep","confidence":1.5}]}`},
		{"confidence negative", `{"summary":"s","topics":[{"topic":"sleep","confidence":-0.1}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAnalysis(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrMalformedResponse), "want ErrMalformedResponse, got %v", err)
		})
	}
}

func TestBuildPrompt_CarriesTopicsAndTone(t *testing.T) {
	prompt := buildPrompt("slept 7 hours", []string{"sleep", "mood"}, "gentle")
	assert.Contains(t, prompt, "slept 7 hours")
	assert.Contains(t, prompt, "- sleep\n")
	assert.Contains(t, prompt, "- mood\n")
	assert.Contains(t, prompt, "gentle tone")
}

func TestAnalyze_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.True(t, strings.Contains(req.Messages[0].Content, "slept 7 hours"))

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": validAnalysisJSON}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "claude-sonnet-4-20250514", 5*time.Second)
	got, err := c.Analyze(context.Background(), "slept 7 hours", []string{"sleep"}, "neutral")
	require.NoError(t, err)
	assert.Equal(t, "A quiet day with decent sleep.", got.Summary)
}

func TestAnalyze_NonJSONModelOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "Here is my analysis: it was a fine day."}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", 5*time.Second)
	_, err := c.Analyze(context.Background(), "text", nil, "neutral")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMalformedResponse))
}

func TestAnalyze_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", 5*time.Second)
	_, err := c.Analyze(context.Background(), "text", nil, "neutral")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrMalformedResponse), "transport/API failure is not a parse failure")
}
