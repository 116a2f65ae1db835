package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiiabox/aiiabox/internal/metrics"
)

func newChatFixture(t *testing.T) (*ChatService, *memStore, *metrics.InMemoryRecorder) {
	t.Helper()
	store := newMemStore()
	store.addUser("u1", "alice")
	store.addUser("u2", "bob")
	rec := metrics.NewInMemory()
	return NewChatService(store, rec), store, rec
}

func TestCreateChat(t *testing.T) {
	svc, _, rec := newChatFixture(t)

	chat, err := svc.CreateChat(context.Background(), "u1", CreateChatInput{Title: ptr("  Trip plans ")})
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", chat.Title)
	assert.Equal(t, "u1", chat.UserID)
	assert.Nil(t, chat.ProjectID)
	assert.NotNil(t, chat.Metadata)
	assert.Len(t, chat.ID, 26)
	assert.Equal(t, uint64(1), rec.Snapshot().ChatsCreated)
}

func TestCreateChatValidation(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.CreateChat(ctx, "u1", CreateChatInput{})
	requireFieldError(t, err, "title", msgRequired)

	_, err = svc.CreateChat(ctx, "u1", CreateChatInput{Title: ptr("   ")})
	requireFieldError(t, err, "title", msgBlank)

	long := make([]byte, maxChatTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.CreateChat(ctx, "u1", CreateChatInput{Title: ptr(string(long))})
	requireFieldError(t, err, "title", "Ensure this field has no more than 200 characters.")
}

func TestCreateChatUsesDefaultProject(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	ctx := context.Background()
	store.addProject("u1", "p1")
	store.settings["u1"].DefaultProjectID = ptr("p1")

	chat, err := svc.CreateChat(ctx, "u1", CreateChatInput{Title: ptr("x")})
	require.NoError(t, err)
	require.NotNil(t, chat.ProjectID)
	assert.Equal(t, "p1", *chat.ProjectID)

	// An explicit null overrides the default.
	chat, err = svc.CreateChat(ctx, "u1", CreateChatInput{Title: ptr("y"), Project: Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, chat.ProjectID)
}

func TestCreateChatForeignProject(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	store.addProject("u2", "p2")

	_, err := svc.CreateChat(context.Background(), "u1", CreateChatInput{Title: ptr("x"), Project: Some(ptr("p2"))})
	requireFieldError(t, err, "project", `Invalid pk "p2" - object does not exist.`)
}

func TestChatOwnership(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	ctx := context.Background()
	store.addChat("u2", "c2")

	_, err := svc.GetChat(ctx, "u1", "c2")
	assert.ErrorIs(t, err, ErrChatNotFound)

	_, err = svc.UpdateChat(ctx, "u1", "c2", UpdateChatInput{Title: ptr("mine")})
	assert.ErrorIs(t, err, ErrChatNotFound)

	assert.ErrorIs(t, svc.DeleteChat(ctx, "u1", "c2"), ErrChatNotFound)

	_, err = svc.GetChat(ctx, "u2", "c2")
	assert.NoError(t, err)
}

func TestUpdateChat(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	ctx := context.Background()
	store.addProject("u1", "p1")
	store.addChat("u1", "c1")

	chat, err := svc.UpdateChat(ctx, "u1", "c1", UpdateChatInput{
		Project:  Some(ptr("p1")),
		Metadata: map[string]any{"pinned": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", chat.Title)
	require.NotNil(t, chat.ProjectID)
	assert.Equal(t, "p1", *chat.ProjectID)
	assert.Equal(t, true, chat.Metadata["pinned"])

	chat, err = svc.UpdateChat(ctx, "u1", "c1", UpdateChatInput{Project: Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, chat.ProjectID)
}

func TestListChatsPagination(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		store.addChat("u1", id)
	}
	store.addChat("u2", "other")

	res, err := svc.ListChats(ctx, "u1", ListParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Items, 2)

	res, err = svc.ListChats(ctx, "u1", ListParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	_, err = svc.ListChats(ctx, "u1", ListParams{Page: 3, PageSize: 2})
	assert.ErrorIs(t, err, ErrInvalidPage)
}
