package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiiabox/aiiabox/internal/handler/dto"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/service"
)

type fakeChatService struct {
	chats     map[string]*model.Chat
	lastInput service.CreateChatInput
	lastUser  string
	listErr   error
}

func newFakeChatService() *fakeChatService {
	return &fakeChatService{chats: map[string]*model.Chat{}}
}

func (f *fakeChatService) CreateChat(_ context.Context, userID string, input service.CreateChatInput) (*model.Chat, error) {
	f.lastInput = input
	f.lastUser = userID
	title := ""
	if input.Title != nil {
		title = *input.Title
	}
	if title == "" {
		return nil, service.NewValidationError("title", "This field is required.")
	}
	c := &model.Chat{ID: "chat-new", UserID: userID, Title: title, Metadata: input.Metadata, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if input.Project.Set {
		c.ProjectID = input.Project.Value
	}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeChatService) GetChat(_ context.Context, userID, id string) (*model.Chat, error) {
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return nil, service.ErrChatNotFound
	}
	return c, nil
}

func (f *fakeChatService) ListChats(_ context.Context, userID string, params service.ListParams) (*service.ListResult[*model.Chat], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := []*model.Chat{}
	for _, c := range f.chats {
		if c.UserID == userID {
			items = append(items, c)
		}
	}
	return &service.ListResult[*model.Chat]{Items: items, Total: int64(len(items))}, nil
}

func (f *fakeChatService) UpdateChat(ctx context.Context, userID, id string, input service.UpdateChatInput) (*model.Chat, error) {
	c, err := f.GetChat(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		c.Title = *input.Title
	}
	if input.Project.Set {
		c.ProjectID = input.Project.Value
	}
	return c, nil
}

func (f *fakeChatService) DeleteChat(ctx context.Context, userID, id string) error {
	if _, err := f.GetChat(ctx, userID, id); err != nil {
		return err
	}
	delete(f.chats, id)
	return nil
}

func chatRouter(svc ChatService) http.Handler {
	h := NewChatHandler(svc, testBaseURL, discardLogger())
	r := chi.NewRouter()
	r.Get("/api/chats/", h.List)
	r.Post("/api/chats/", h.Create)
	r.Get("/api/chats/{chatID}/", h.Get)
	r.Patch("/api/chats/{chatID}/", h.Update)
	r.Delete("/api/chats/{chatID}/", h.Delete)
	return r
}

func TestChatHandler_Create(t *testing.T) {
	svc := newFakeChatService()
	rec := serve(chatRouter(svc), "alice",
		jsonRequest(http.MethodPost, "/api/chats/", `{"title":"Planning","project":null,"metadata":{"k":"v"}}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", svc.lastUser)
	assert.True(t, svc.lastInput.Project.Set)
	assert.Nil(t, svc.lastInput.Project.Value)

	var body dto.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "chat-new", body.ID)
	assert.Equal(t, "alice", body.User)
	assert.Equal(t, "Planning", body.Title)
	assert.Nil(t, body.Project)
	assert.Equal(t, "v", body.Metadata["k"])
}

func TestChatHandler_Create_Validation(t *testing.T) {
	rec := serve(chatRouter(newFakeChatService()), "alice", jsonRequest(http.MethodPost, "/api/chats/", `{}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Errors, "title")
}

func TestChatHandler_List(t *testing.T) {
	svc := newFakeChatService()
	svc.chats["c1"] = &model.Chat{ID: "c1", UserID: "alice", Title: "one"}
	svc.chats["c2"] = &model.Chat{ID: "c2", UserID: "bob", Title: "two"}

	rec := serve(chatRouter(svc), "alice", jsonRequest(http.MethodGet, "/api/chats/", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.Page[dto.ChatResponse]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(1), body.Count)
	assert.Nil(t, body.Next)
	assert.Nil(t, body.Previous)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "c1", body.Results[0].ID)
	assert.NotNil(t, body.Results[0].Metadata)
}

func TestChatHandler_List_InvalidPage(t *testing.T) {
	rec := serve(chatRouter(newFakeChatService()), "alice", jsonRequest(http.MethodGet, "/api/chats/?page=0", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid page.", decodeError(t, rec).Detail)
}

func TestChatHandler_GetOtherUsersChat(t *testing.T) {
	svc := newFakeChatService()
	svc.chats["c1"] = &model.Chat{ID: "c1", UserID: "bob"}

	rec := serve(chatRouter(svc), "alice", jsonRequest(http.MethodGet, "/api/chats/c1/", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CHAT_NOT_FOUND", decodeError(t, rec).Code)
}

func TestChatHandler_UpdateKeepsOmittedProject(t *testing.T) {
	project := "p1"
	svc := newFakeChatService()
	svc.chats["c1"] = &model.Chat{ID: "c1", UserID: "alice", Title: "old", ProjectID: &project}

	rec := serve(chatRouter(svc), "alice", jsonRequest(http.MethodPatch, "/api/chats/c1/", `{"title":"new"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "new", body.Title)
	require.NotNil(t, body.Project)
	assert.Equal(t, "p1", *body.Project)
}

func TestChatHandler_Delete(t *testing.T) {
	svc := newFakeChatService()
	svc.chats["c1"] = &model.Chat{ID: "c1", UserID: "alice"}
	router := chatRouter(svc)

	rec := serve(router, "alice", jsonRequest(http.MethodDelete, "/api/chats/c1/", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(router, "alice", jsonRequest(http.MethodDelete, "/api/chats/c1/", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
