package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repository.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	tokens   []*model.Token
	profiles map[string]*model.UserProfile
	settings map[string]*model.UserSettings
	projects map[string]*model.Project
	chats    map[string]*model.Chat
	messages []*model.Message
	prompts  map[string]*model.PromptTemplate
	jobs     map[string]*model.CompletionJob
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*model.User{},
		profiles: map[string]*model.UserProfile{},
		settings: map[string]*model.UserSettings{},
		projects: map[string]*model.Project{},
		chats:    map[string]*model.Chat{},
		prompts:  map[string]*model.PromptTemplate{},
		jobs:     map[string]*model.CompletionJob{},
	}
}

// addUser registers a user with default profile and settings.
func (m *memStore) addUser(id, username string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: id, Username: username, IsActive: true}
	m.users[id] = u
	m.profiles[id] = &model.UserProfile{UserID: id, Preferences: map[string]any{}}
	m.settings[id] = &model.UserSettings{UserID: id, Theme: model.ThemeAuto, LLMPreferences: map[string]any{}}
	return u
}

func (m *memStore) addProject(userID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = &model.Project{ID: id, UserID: userID, Name: id}
}

func (m *memStore) addChat(userID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[id] = &model.Chat{ID: id, UserID: userID, Title: id, Metadata: map[string]any{}}
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

// Users and tokens.

func (m *memStore) CreateUserWithDefaults(_ context.Context, user *model.User, token *model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return repository.ErrUsernameExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	m.profiles[user.ID] = &model.UserProfile{UserID: user.ID, Preferences: map[string]any{}}
	m.settings[user.ID] = &model.UserSettings{UserID: user.ID, Theme: model.ThemeAuto, LLMPreferences: map[string]any{}}
	tok := *token
	m.tokens = append(m.tokens, &tok)
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) ReplaceActiveToken(_ context.Context, token *model.Token) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[token.UserID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	var revoked []string
	for _, t := range m.tokens {
		if t.UserID == token.UserID && t.RevokedAt == nil {
			now := token.CreatedAt
			t.RevokedAt = &now
			revoked = append(revoked, t.ID)
		}
	}
	tok := *token
	m.tokens = append(m.tokens, &tok)
	return revoked, nil
}

func (m *memStore) GetActiveTokenByUserID(_ context.Context, userID string) (*model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

func (m *memStore) RevokeActiveToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			now := t.CreatedAt
			t.RevokedAt = &now
			return t.ID, nil
		}
	}
	return "", repository.ErrTokenNotFound
}

func (m *memStore) ListActiveTokens(_ context.Context, page repository.Page) ([]*model.TokenWithUser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TokenWithUser
	for _, t := range m.tokens {
		if t.RevokedAt != nil {
			continue
		}
		u := m.users[t.UserID]
		out = append(out, &model.TokenWithUser{Token: *t, Username: u.Username, IsStaff: u.IsStaff, IsActive: u.IsActive})
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) activeTokens(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

// Profiles and settings.

func (m *memStore) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.profiles[p.UserID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	cur.Bio = p.Bio
	cur.Preferences = p.Preferences
	return nil
}

func (m *memStore) SetAvatarKey(_ context.Context, userID string, key *string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	prev := p.AvatarKey
	p.AvatarKey = key
	return prev, nil
}

func (m *memStore) GetSettings(_ context.Context, userID string) (*model.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, repository.ErrSettingsNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateSettings(_ context.Context, s *model.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[s.UserID]; !ok {
		return repository.ErrSettingsNotFound
	}
	cp := *s
	m.settings[s.UserID] = &cp
	return nil
}

// Projects.

func (m *memStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) GetProject(_ context.Context, userID, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(_ context.Context, userID string, page repository.Page) ([]*model.Project, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Project
	for _, p := range m.projects {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.projects[p.ID]; !ok || cur.UserID != p.UserID {
		return repository.ErrProjectNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; !ok || p.UserID != userID {
		return repository.ErrProjectNotFound
	}
	delete(m.projects, id)
	for _, c := range m.chats {
		if c.ProjectID != nil && *c.ProjectID == id {
			c.ProjectID = nil
		}
	}
	return nil
}

// Chats and messages.

func (m *memStore) CreateChat(_ context.Context, chat *model.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *memStore) GetChat(_ context.Context, userID, id string) (*model.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListChats(_ context.Context, userID string, page repository.Page) ([]*model.Chat, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateChat(_ context.Context, chat *model.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.chats[chat.ID]; !ok || cur.UserID != chat.UserID {
		return repository.ErrChatNotFound
	}
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *memStore) DeleteChat(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[id]; !ok || c.UserID != userID {
		return repository.ErrChatNotFound
	}
	delete(m.chats, id)
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ChatID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[msg.ChatID]; !ok {
		return repository.ErrChatNotFound
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memStore) GetMessage(_ context.Context, chatID, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (m *memStore) ListMessages(_ context.Context, chatID string, page repository.Page) ([]*model.Message, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.messages {
		if cur.ChatID == msg.ChatID && cur.ID == msg.ID {
			cp := *msg
			m.messages[i] = &cp
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

func (m *memStore) DeleteMessage(_ context.Context, chatID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.messages {
		if cur.ChatID == chatID && cur.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

// Prompt templates.

func (m *memStore) CreatePrompt(_ context.Context, p *model.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.prompts {
		if cur.UserID == p.UserID && cur.Name == p.Name {
			return repository.ErrPromptNameExists
		}
	}
	cp := *p
	m.prompts[p.ID] = &cp
	return nil
}

func (m *memStore) GetPrompt(_ context.Context, userID, id string) (*model.PromptTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrPromptNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPrompts(_ context.Context, userID string, filter repository.PromptFilter, page repository.Page) ([]*model.PromptTemplate, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromptTemplate
	for _, p := range m.prompts {
		if p.UserID != userID {
			continue
		}
		if filter.Tag != "" && !p.HasTag(filter.Tag) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdatePrompt(_ context.Context, p *model.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.prompts[p.ID]
	if !ok || cur.UserID != p.UserID {
		return repository.ErrPromptNotFound
	}
	for _, other := range m.prompts {
		if other.ID != p.ID && other.UserID == p.UserID && other.Name == p.Name {
			return repository.ErrPromptNameExists
		}
	}
	cp := *p
	m.prompts[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePrompt(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prompts[id]; !ok || p.UserID != userID {
		return repository.ErrPromptNotFound
	}
	delete(m.prompts, id)
	return nil
}

// Completion jobs.

func (m *memStore) CreateCompletionJob(_ context.Context, job *model.CompletionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[job.ChatID]; !ok {
		return repository.ErrChatNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetChatCompletionJob(_ context.Context, chatID, id string) (*model.CompletionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.ChatID != chatID {
		return nil, repository.ErrCompletionJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) FailCompletionJob(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repository.ErrCompletionJobNotFound
	}
	j.Status = model.CompletionFailed
	j.Error = reason
	return nil
}
