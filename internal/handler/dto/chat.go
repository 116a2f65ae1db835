package dto

import (
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
)

// ChatRequest is the body of chat create and update requests.
type ChatRequest struct {
	Title    *string          `json:"title"`
	Project  Nullable[string] `json:"project"`
	Metadata map[string]any   `json:"metadata"`
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ID           string         `json:"id"`
	User         string         `json:"user"`
	Title        string         `json:"title"`
	Project      *string        `json:"project"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int64          `json:"message_count"`
}

// ToChatResponse converts a Chat model to ChatResponse.
func ToChatResponse(c *model.Chat) ChatResponse {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ChatResponse{
		ID:           c.ID,
		User:         c.UserID,
		Title:        c.Title,
		Project:      c.ProjectID,
		Metadata:     metadata,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
	}
}

// MessageRequest is the body of message create and update requests.
// Chat and user come from the URL and the token, never the body.
type MessageRequest struct {
	Content *string `json:"content"`
	Role    *string `json:"role"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	User      string    `json:"user"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// ToMessageResponse converts a Message model to MessageResponse.
func ToMessageResponse(m *model.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Chat:      m.ChatID,
		User:      m.UserID,
		Content:   m.Content,
		Role:      string(m.Role),
		Tokens:    m.Tokens,
		CreatedAt: m.CreatedAt,
	}
}

// CompletionRequest asks for an assistant reply. An empty model uses the
// caller's preferred model.
type CompletionRequest struct {
	Model string `json:"model" validate:"max=100"`
}

// CompletionResponse represents a completion job.
type CompletionResponse struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	Status    string    `json:"status"`
	Model     string    `json:"model"`
	Error     *string   `json:"error"`
	Message   *string   `json:"message"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToCompletionResponse converts a CompletionJob model to CompletionResponse.
func ToCompletionResponse(j *model.CompletionJob) CompletionResponse {
	resp := CompletionResponse{
		ID:        j.ID,
		Chat:      j.ChatID,
		Status:    string(j.Status),
		Model:     j.Model,
		Message:   j.MessageID,
		Attempts:  j.Attempts,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Error != "" {
		msg := j.Error
		resp.Error = &msg
	}
	return resp
}
