package models

import "time"

// Participant describes the remote side of a private chat.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsOnline  bool   `json:"is_online"`
}

// LastMessage is the denormalized summary shown in chat lists.
type LastMessage struct {
	ID        string      `json:"id"`
	Preview   string      `json:"preview"`
	Type      MessageType `json:"type"`
	SenderID  string      `json:"sender_id"`
	IsRead    bool        `json:"is_read"`
	Timestamp time.Time   `json:"timestamp"`
}

// Chat represents a private chat between the current user and one participant.
type Chat struct {
	ID          string       `json:"id"`
	Participant Participant  `json:"participant"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
