package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
)

type ChatAPIMock struct {
	mock.Mock
}

func (m *ChatAPIMock) CurrentUser(ctx context.Context) (models.User, error) {
	args := m.Called(ctx)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *ChatAPIMock) ListChats(ctx context.Context) ([]models.Chat, error) {
	args := m.Called(ctx)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatAPIMock) FetchChat(ctx context.Context, chatID string, limit int, before string) (api.ChatPage, error) {
	args := m.Called(ctx, chatID, limit, before)
	var page api.ChatPage
	if val := args.Get(0); val != nil {
		page = val.(api.ChatPage)
	}
	return page, args.Error(1)
}

func (m *ChatAPIMock) UploadMessage(ctx context.Context, chatID string, req api.UploadRequest) (models.Message, error) {
	args := m.Called(ctx, chatID, req)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatAPIMock) UserStatuses(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	args := m.Called(ctx, userIDs)
	var statuses []models.PresenceStatus
	if val := args.Get(0); val != nil {
		statuses = val.([]models.PresenceStatus)
	}
	return statuses, args.Error(1)
}

var _ api.ChatAPI = (*ChatAPIMock)(nil)
