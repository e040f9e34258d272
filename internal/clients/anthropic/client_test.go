package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContent(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [
				{"type": "text", "text": "## Price Action\n"},
				{"type": "text", "text": "Shares rose 2%."}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	c := NewClient("test-key",
		WithBaseURL(server.URL),
		WithMaxRetries(0),
		WithMaxTokens(512),
		WithSystemPrompt("You are a financial analyst."),
	)

	text, err := c.GenerateContent(context.Background(), "analyze AAPL")
	require.NoError(t, err)
	assert.Equal(t, "## Price Action\nShares rose 2%.", text)
	assert.Equal(t, "anthropic/claude-haiku-4-5", c.Model())

	assert.Equal(t, float64(512), body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestGenerateContent_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(0))

	_, err := c.GenerateContent(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestGenerateContent_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(0))

	_, err := c.GenerateContent(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic API error")
}
