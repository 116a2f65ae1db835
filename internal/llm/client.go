// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aiiabox/aiiabox/internal/model"
)

// ErrEmptyResponse is returned when the provider answers without choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config holds provider connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Completion is the assistant reply produced for a conversation.
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Client calls the chat completion API.
type Client struct {
	api     *openai.Client
	timeout time.Duration
}

// NewClient creates a Client. An empty BaseURL targets api.openai.com;
// local servers such as Ollama expose the same API under their own URL.
func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:     openai.NewClientWithConfig(clientConfig),
		timeout: timeout,
	}
}

// Complete sends history to the model and returns the first choice.
func (c *Client) Complete(ctx context.Context, opts model.LLMOptions, history []*model.Message) (*Completion, error) {
	if len(history) == 0 {
		return nil, errors.New("llm: no messages to complete")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, buildRequest(opts, history))
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &Completion{
		Content:          choice.Message.Content,
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// nearZero stands in for an explicit 0 temperature or top_p. go-openai tags
// both fields omitempty, so a literal zero would be dropped and the
// provider default applied instead.
const nearZero = 1e-6

func sampling(v float64) float32 {
	if v <= 0 {
		return nearZero
	}
	return float32(v)
}

// buildRequest maps resolved options onto the wire request. top_k has no
// OpenAI equivalent and is not sent.
func buildRequest(opts model.LLMOptions, history []*model.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: sampling(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		TopP:        sampling(opts.TopP),
	}
}

func chatRole(r model.Role) string {
	switch r {
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// provider-side failures and transport errors. Request errors (4xx) are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, ErrEmptyResponse)
}
