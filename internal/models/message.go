package models

import (
	"strings"
	"time"
)

// MessageType enumerates the kinds of payload a message can carry.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVoice    MessageType = "voice"
	MessageDocument MessageType = "document"
	MessageVideo    MessageType = "video"
	MessageSystem   MessageType = "system"
)

// OptimisticPrefix marks locally synthesized message ids that live only
// until the server-confirmed message arrives.
const OptimisticPrefix = "optimistic-"

// Message represents a chat message.
type Message struct {
	ID        string              `json:"id"`
	ChatID    string              `json:"chat_id"`
	SenderID  string              `json:"sender_id"`
	Type      MessageType         `json:"type"`
	Content   string              `json:"content"`
	MediaURL  string              `json:"media_url,omitempty"`
	FileName  string              `json:"file_name,omitempty"`
	MimeType  string              `json:"mime_type,omitempty"`
	Duration  int                 `json:"duration,omitempty"`
	ReplyToID string              `json:"reply_to_id,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	IsRead    bool                `json:"is_read"`
	CreatedAt time.Time           `json:"created_at"`
}

// IsOptimistic reports whether the message is a local placeholder.
func (m Message) IsOptimistic() bool {
	return strings.HasPrefix(m.ID, OptimisticPrefix)
}

// Preview returns the text used for a chat's last-message summary,
// falling back to the media reference for non-text messages.
func (m Message) Preview() string {
	if m.Content != "" {
		return m.Content
	}
	return m.MediaURL
}
