package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "claude-sonnet-4-5-20250929"

func messageBody(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_001",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       testModel,
		"stop_reason": stop,
		"usage": map[string]any{
			"input_tokens":                10,
			"output_tokens":               5,
			"cache_creation_input_tokens": 700,
			"cache_read_input_tokens":     0,
		},
	}
}

func TestComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			System      []struct {
				Text         string `json:"text"`
				CacheControl struct {
					Type string `json:"type"`
					TTL  string `json:"ttl"`
				} `json:"cache_control"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testModel, body.Model)
		assert.InDelta(t, 0.4, body.Temperature, 0.001)
		require.Len(t, body.System, 1)
		assert.Equal(t, "You write cafe reviews.", body.System[0].Text)
		assert.Equal(t, "ephemeral", body.System[0].CacheControl.Type)
		assert.Equal(t, SystemCacheTTL, body.System[0].CacheControl.TTL)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageBody(`[]`, "end_turn"))
	}))
	defer ts.Close()

	temp := 0.4
	resp, err := NewClient("test-key", WithBaseURL(ts.URL)).Complete(context.Background(), Request{
		Model:       testModel,
		MaxTokens:   1024,
		System:      "You write cafe reviews.",
		Prompt:      "Find cafes",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_001", resp.ID)
	assert.Equal(t, "[]", resp.Text)
	assert.False(t, resp.Truncated())
	assert.Equal(t, Usage{Input: 10, Output: 5, CacheWrite: 700}, resp.Usage)
}

func TestComplete_StatusError(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": "nope"},
			})
		}))

		_, err := NewClient("test-key", WithBaseURL(ts.URL)).Complete(context.Background(), Request{
			Model:     testModel,
			MaxTokens: 16,
			Prompt:    "Hello",
		})
		ts.Close()

		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "status %d", code)
		assert.Equal(t, code, apiErr.HTTPStatus())
	}
}

func TestNewParams_OmitsEmptySystem(t *testing.T) {
	p := newParams(Request{Model: testModel, MaxTokens: 8, Prompt: "q"})
	assert.Empty(t, p.System)
	require.Len(t, p.Messages, 1)
	assert.Equal(t, sdk.MessageParamRoleUser, p.Messages[0].Role)
}

func TestToResponse(t *testing.T) {
	resp := toResponse(&sdk.Message{
		ID:         "msg_123",
		Model:      testModel,
		StopReason: StopMaxTokens,
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: `{"coffee":`},
			{Type: "thinking"},
			{Type: "text", Text: `9`},
		},
		Usage: sdk.Usage{InputTokens: 100, OutputTokens: 50, CacheReadInputTokens: 3000},
	})

	assert.Equal(t, `{"coffee":9`, resp.Text)
	assert.True(t, resp.Truncated())
	assert.Equal(t, int64(3000), resp.Usage.CacheRead)
}
