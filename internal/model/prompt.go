package model

import (
	"regexp"
	"strings"
	"time"
)

// placeholderRegex matches {{ name }} placeholders inside template content.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// PromptTemplate is a reusable prompt with named placeholders.
type PromptTemplate struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variables returns placeholder names in order of first appearance.
func (p *PromptTemplate) Variables() []string {
	matches := placeholderRegex.FindAllStringSubmatch(p.Content, -1)
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return vars
}

// Render substitutes placeholders with values. Missing names are returned
// and the content is left unrendered when any are missing.
func (p *PromptTemplate) Render(values map[string]string) (string, []string) {
	var missing []string
	for _, name := range p.Variables() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", missing
	}

	out := placeholderRegex.ReplaceAllStringFunc(p.Content, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		return values[name]
	})
	return out, nil
}

// HasTag reports whether the template carries tag.
func (p *PromptTemplate) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
