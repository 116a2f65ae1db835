package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromptFixture(t *testing.T) (*PromptService, *memStore) {
	t.Helper()
	store := newMemStore()
	store.addUser("u1", "alice")
	store.addUser("u2", "bob")
	return NewPromptService(store), store
}

func TestCreatePrompt(t *testing.T) {
	svc, _ := newPromptFixture(t)

	p, err := svc.CreatePrompt(context.Background(), "u1", PromptInput{
		Name:    ptr(" Summary "),
		Content: ptr("Summarize {{topic}}"),
		Tags:    []string{"writing", " Writing ", "work"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Summary", p.Name)
	assert.Equal(t, []string{"writing", "work"}, p.Tags)
	assert.Equal(t, []string{"topic"}, p.Variables())
}

func TestCreatePromptValidation(t *testing.T) {
	svc, _ := newPromptFixture(t)
	ctx := context.Background()

	_, err := svc.CreatePrompt(ctx, "u1", PromptInput{})
	requireFieldError(t, err, "name", msgRequired)
	requireFieldError(t, err, "content", msgRequired)

	_, err = svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("x"), Content: ptr("  ")})
	requireFieldError(t, err, "content", msgBlank)

	tags := make([]string, maxPromptTags+1)
	for i := range tags {
		tags[i] = string(rune('a' + i))
	}
	_, err = svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("x"), Content: ptr("y"), Tags: tags})
	requireFieldError(t, err, "tags", "Ensure this field has no more than 20 elements.")
}

func TestCreatePromptDuplicateName(t *testing.T) {
	svc, _ := newPromptFixture(t)
	ctx := context.Background()

	_, err := svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("Daily"), Content: ptr("a")})
	require.NoError(t, err)

	_, err = svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("Daily"), Content: ptr("b")})
	requireFieldError(t, err, "name", "You already have a prompt template with this name.")

	// Names are unique per user only.
	_, err = svc.CreatePrompt(ctx, "u2", PromptInput{Name: ptr("Daily"), Content: ptr("c")})
	assert.NoError(t, err)
}

func TestListPromptsFilter(t *testing.T) {
	svc, _ := newPromptFixture(t)
	ctx := context.Background()

	for _, in := range []PromptInput{
		{Name: ptr("Code review"), Content: ptr("a"), Tags: []string{"code"}},
		{Name: ptr("Email draft"), Content: ptr("b"), Tags: []string{"writing"}},
		{Name: ptr("Blog outline"), Content: ptr("c"), Tags: []string{"Writing"}},
	} {
		_, err := svc.CreatePrompt(ctx, "u1", in)
		require.NoError(t, err)
	}

	res, err := svc.ListPrompts(ctx, "u1", PromptFilter{Tag: "writing"}, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, "Blog outline", res.Items[0].Name)

	res, err = svc.ListPrompts(ctx, "u1", PromptFilter{Search: " REVIEW "}, ListParams{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Code review", res.Items[0].Name)

	res, err = svc.ListPrompts(ctx, "u2", PromptFilter{}, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestRenderPrompt(t *testing.T) {
	svc, _ := newPromptFixture(t)
	ctx := context.Background()

	p, err := svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("greet"), Content: ptr("Hi {{ name }}, about {{topic}}.")})
	require.NoError(t, err)

	out, err := svc.RenderPrompt(ctx, "u1", p.ID, map[string]string{"name": "Ana", "topic": "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, about Go.", out)

	_, err = svc.RenderPrompt(ctx, "u1", p.ID, map[string]string{"name": "Ana"})
	requireFieldError(t, err, "variables", "Missing values for: topic.")

	_, err = svc.RenderPrompt(ctx, "u2", p.ID, nil)
	assert.ErrorIs(t, err, ErrPromptNotFound)
}

func TestUpdatePrompt(t *testing.T) {
	svc, _ := newPromptFixture(t)
	ctx := context.Background()

	a, err := svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("a"), Content: ptr("x"), Tags: []string{"one"}})
	require.NoError(t, err)
	_, err = svc.CreatePrompt(ctx, "u1", PromptInput{Name: ptr("b"), Content: ptr("y")})
	require.NoError(t, err)

	updated, err := svc.UpdatePrompt(ctx, "u1", a.ID, PromptInput{Description: ptr("first")})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, updated.Tags)
	assert.Equal(t, "first", updated.Description)

	_, err = svc.UpdatePrompt(ctx, "u1", a.ID, PromptInput{Name: ptr("b")})
	requireFieldError(t, err, "name", "You already have a prompt template with this name.")

	require.NoError(t, svc.DeletePrompt(ctx, "u1", a.ID))
	assert.ErrorIs(t, svc.DeletePrompt(ctx, "u1", a.ID), ErrPromptNotFound)
}
