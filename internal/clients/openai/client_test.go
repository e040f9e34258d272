package openai

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
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "  # AAPL Report\n"},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL), WithSystemPrompt("be brief"), WithMaxRetries(0))

	text, err := c.GenerateContent(context.Background(), "summarize AAPL")
	require.NoError(t, err)
	assert.Equal(t, "# AAPL Report", text)
	assert.Equal(t, "openai/gpt-4o-mini", c.Model())

	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
}

func TestGenerateContent_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(0))

	_, err := c.GenerateContent(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestGenerateContent_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	c := NewClient("bad-key", WithBaseURL(server.URL), WithMaxRetries(0), WithModel("gpt-4o"))

	_, err := c.GenerateContent(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai API error")
	assert.Equal(t, "openai/gpt-4o", c.Model())
}
