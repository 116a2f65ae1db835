package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiiabox/aiiabox/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
}

func testHistory() []*model.Message {
	return []*model.Message{
		{Role: model.RoleSystem, Content: "Be brief."},
		{Role: model.RoleUser, Content: "Hi"},
	}
}

func TestComplete(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"model": "llama2",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`)
	})

	opts := model.LLMOptions{Model: "llama2", Temperature: 0.5, MaxTokens: 128, TopP: 0.9, TopK: 40}
	resp, err := client.Complete(context.Background(), opts, testHistory())
	require.NoError(t, err)

	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 3, resp.CompletionTokens)
	assert.Equal(t, 9, resp.PromptTokens)

	assert.Equal(t, "llama2", got.Model)
	assert.Equal(t, 128, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "Hi", got.Messages[1].Content)
}

func TestBuildRequest_ZeroTemperatureIsSent(t *testing.T) {
	req := buildRequest(model.LLMOptions{Model: "llama2", Temperature: 0, TopP: 0.95}, testHistory())

	body, err := json.Marshal(req)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))

	require.Contains(t, wire, "temperature")
	assert.InDelta(t, 0, wire["temperature"], 1e-5)
	assert.Greater(t, wire["temperature"], 0.0)
	assert.InDelta(t, 0.95, wire["top_p"], 1e-6)
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cmpl-2", "choices": []}`)
	})

	_, err := client.Complete(context.Background(), model.LLMOptions{Model: "llama2"}, testHistory())
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, IsRetryable(err))
}

func TestComplete_NoHistory(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	_, err := client.Complete(context.Background(), model.LLMOptions{}, nil)
	assert.Error(t, err)
}

func TestComplete_ErrorStatusRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error": {"message": "nope", "type": "test_error"}}`)
			})

			_, err := client.Complete(context.Background(), model.LLMOptions{Model: "llama2"}, testHistory())
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("connection refused")))
}
