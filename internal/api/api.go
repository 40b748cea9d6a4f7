package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"chat-sync/internal/httpx"
	"chat-sync/internal/models"
)

// ChatPage is one page of a chat's history.
type ChatPage struct {
	Chat     *models.Chat     `json:"chat,omitempty"`
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// UploadRequest describes a media message to send as multipart.
type UploadRequest struct {
	Type      models.MessageType
	FileName  string
	MimeType  string
	Duration  int
	ReplyToID string
	File      io.Reader
}

// ChatAPI defines the REST calls the sync core consumes.
type ChatAPI interface {
	CurrentUser(ctx context.Context) (models.User, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	FetchChat(ctx context.Context, chatID string, limit int, before string) (ChatPage, error)
	UploadMessage(ctx context.Context, chatID string, req UploadRequest) (models.Message, error)
	UserStatuses(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error)
}

// RESTChatAPI is the httpx-backed implementation of ChatAPI.
type RESTChatAPI struct {
	client *httpx.Client
}

// NewRESTChatAPI constructs a RESTChatAPI.
func NewRESTChatAPI(client *httpx.Client) *RESTChatAPI {
	return &RESTChatAPI{client: client}
}

// CurrentUser fetches the authenticated user's profile.
func (a *RESTChatAPI) CurrentUser(ctx context.Context) (models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	if err := a.client.GetJSON(ctx, "/users/me", &out); err != nil {
		return models.User{}, fmt.Errorf("fetch current user: %w", err)
	}
	return out.User, nil
}

// ListChats returns all chats visible to the user.
func (a *RESTChatAPI) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := a.client.GetJSON(ctx, "/chats", &out); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out.Chats, nil
}

// FetchChat returns one page of a chat's messages, oldest first. An
// empty before cursor fetches the newest page.
func (a *RESTChatAPI) FetchChat(ctx context.Context, chatID string, limit int, before string) (ChatPage, error) {
	path := "/chats/" + url.PathEscape(chatID) + "?limit=" + strconv.Itoa(limit)
	if before != "" {
		path += "&before=" + url.QueryEscape(before)
	}
	var page ChatPage
	if err := a.client.GetJSON(ctx, path, &page); err != nil {
		return ChatPage{}, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}
	return page, nil
}

// UploadMessage posts a media message as multipart and returns the
// server-normalized message.
func (a *RESTChatAPI) UploadMessage(ctx context.Context, chatID string, req UploadRequest) (models.Message, error) {
	fields := map[string]string{
		"type": string(req.Type),
	}
	if req.MimeType != "" {
		fields["mime_type"] = req.MimeType
	}
	if req.Duration > 0 {
		fields["duration"] = strconv.Itoa(req.Duration)
	}
	if req.ReplyToID != "" {
		fields["reply_to_id"] = req.ReplyToID
	}

	var out struct {
		Message models.Message `json:"message"`
	}
	path := "/chats/" + url.PathEscape(chatID) + "/messages/upload"
	if err := a.client.Upload(ctx, path, fields, "file", req.FileName, req.File, &out); err != nil {
		return models.Message{}, fmt.Errorf("upload message: %w", err)
	}
	return out.Message, nil
}

// UserStatuses returns presence for the given users. Used by the
// presence poll while a chat screen is open.
func (a *RESTChatAPI) UserStatuses(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	var out struct {
		Statuses []models.PresenceStatus `json:"statuses"`
	}
	if err := a.client.PostJSON(ctx, "/users/statuses", map[string][]string{"user_ids": userIDs}, &out); err != nil {
		return nil, fmt.Errorf("fetch user statuses: %w", err)
	}
	return out.Statuses, nil
}

var _ ChatAPI = (*RESTChatAPI)(nil)
