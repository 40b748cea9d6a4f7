package models

import (
	"encoding/json"
	"time"
)

// EventType names a socket event on the wire.
type EventType string

// Server-pushed events.
const (
	EventNewMessage      EventType = "newMessage"
	EventUserTyping      EventType = "userTyping"
	EventUserStopTyping  EventType = "userStopTyping"
	EventMessagesRead    EventType = "messagesRead"
	EventReactionUpdated EventType = "messageReactionUpdated"
	EventUserOnline      EventType = "userOnlineStatus"
	EventChatUpdated     EventType = "chatUpdated"
)

// Client-emitted events.
const (
	EventSendMessage EventType = "sendMessage"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stopTyping"
	EventMarkRead    EventType = "markRead"
	EventAddReaction EventType = "addReaction"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewMessagePayload carries an incoming message.
type NewMessagePayload struct {
	Message Message `json:"message"`
}

// TypingPayload carries typing and stop-typing signals.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// MessagesReadPayload notifies that a user read a chat.
type MessagesReadPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ReactionPayload carries a reaction state change for one message.
type ReactionPayload struct {
	ChatID    string              `json:"chat_id"`
	MessageID string              `json:"message_id"`
	Reactions map[string][]string `json:"reactions"`
}

// PresencePayload carries an online-status change.
type PresencePayload struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// ChatUpdatedPayload carries a refreshed chat record.
type ChatUpdatedPayload struct {
	Chat Chat `json:"chat"`
}

// SendMessagePayload is emitted for an outgoing text message.
type SendMessagePayload struct {
	ChatID    string      `json:"chat_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Duration  int         `json:"duration,omitempty"`
	ReplyToID string      `json:"reply_to_id,omitempty"`
}

// MarkReadPayload is emitted when the current user reads a chat.
type MarkReadPayload struct {
	ChatID string `json:"chat_id"`
}

// AddReactionPayload is emitted to toggle a reaction on a message.
type AddReactionPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}
