package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newOpenAIServer(t *testing.T, status int, body string, calls *int, captured *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"location\": \"Paris\"}", "refusal": ""},
    "logprobs": null
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

// ==========================
// OpenAI adapter
// ==========================

func TestOpenAIClient_Complete(t *testing.T) {
	calls := 0
	var captured map[string]interface{}
	srv := newOpenAIServer(t, http.StatusOK, completionBody, &calls, &captured)
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL, Options{Model: "gpt-4o-mini", MaxTokens: 4000, Temperature: 0.7}, srv.Client(), logger.NewTestLogger(t))

	text, err := client.Complete(context.Background(), Request{System: "planner", Prompt: "plan Paris"})
	require.NoError(t, err)
	assert.Equal(t, `{"location": "Paris"}`, text)
	assert.Equal(t, 1, calls)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, 0.7, captured["temperature"])
	assert.Equal(t, float64(4000), captured["max_completion_tokens"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, captured["response_format"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
}

func TestOpenAIClient_NoRetryOnServerError(t *testing.T) {
	calls := 0
	srv := newOpenAIServer(t, http.StatusServiceUnavailable, `{"error": {"message": "overloaded", "type": "server_error"}}`, &calls, nil)
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL, Options{Model: "gpt-4o-mini"}, srv.Client(), logger.NewTestLogger(t))

	_, err := client.Complete(context.Background(), Request{Prompt: "plan Paris"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	calls := 0
	srv := newOpenAIServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`, &calls, nil)
	defer srv.Close()

	client := NewOpenAIClient("test-key", srv.URL, Options{Model: "m"}, srv.Client(), logger.NewTestLogger(t))

	_, err := client.Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

// ==========================
// Provider selection
// ==========================

func TestNew_SelectsProvider(t *testing.T) {
	log := logger.NewTestLogger(t)

	c, err := New(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = New(context.Background(), config.LLMConfig{Provider: "claude"}, nil, log)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCompleterFunc(t *testing.T) {
	var f Completer = CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return req.System + "|" + req.Prompt, nil
	})

	out, err := f.Complete(context.Background(), Request{System: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "s|p", out)
}
