package dto

import (
	"time"

	"github.com/aiiabox/aiiabox/internal/model"
)

// PromptRequest is the body of prompt template create and update requests.
type PromptRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Content     *string  `json:"content"`
	Tags        []string `json:"tags"`
}

// PromptResponse represents a prompt template in API responses.
type PromptResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	Variables   []string  `json:"variables"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToPromptResponse converts a PromptTemplate model to PromptResponse.
func ToPromptResponse(p *model.PromptTemplate) PromptResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PromptResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Content:     p.Content,
		Tags:        tags,
		Variables:   p.Variables(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// RenderPromptRequest supplies placeholder values.
type RenderPromptRequest struct {
	Variables map[string]string `json:"variables" validate:"required"`
}

// RenderPromptResponse holds rendered template content.
type RenderPromptResponse struct {
	Content string `json:"content"`
}
