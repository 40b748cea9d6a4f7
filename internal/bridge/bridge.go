package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
	"chat-sync/internal/transport"
)

// ErrUploadFailed wraps media-upload failures so callers can tell them
// apart from generic terminal errors: the optimistic placeholder has
// already been rolled back and the user must retry manually.
var ErrUploadFailed = errors.New("upload failed")

// Socket is the slice of the transport client the bridge depends on.
type Socket interface {
	Subscribe(event models.EventType, handler transport.Handler) int
	Unsubscribe(event models.EventType, id int)
	OnReconnect(fn func())
	Connected() bool
	SendMessage(payload models.SendMessagePayload) error
	SendMarkRead(chatID string) error
	SendReaction(payload models.AddReactionPayload) error
}

// Bridge is the only component that translates transport and REST
// results into store mutations. It owns the merge policy.
type Bridge struct {
	api      api.ChatAPI
	socket   Socket
	store    *store.Store
	pageSize int

	mu      sync.Mutex
	self    models.User
	hasSelf bool
}

// New wires a Bridge to the socket's server-pushed events and to the
// reconnect hook that flushes the offline queue.
func New(chatAPI api.ChatAPI, socket Socket, st *store.Store, pageSize int) *Bridge {
	b := &Bridge{
		api:      chatAPI,
		socket:   socket,
		store:    st,
		pageSize: pageSize,
	}
	socket.Subscribe(models.EventNewMessage, b.onNewMessage)
	socket.Subscribe(models.EventMessagesRead, b.onMessagesRead)
	socket.Subscribe(models.EventReactionUpdated, b.onReactionUpdated)
	socket.Subscribe(models.EventUserOnline, b.onUserOnline)
	socket.Subscribe(models.EventChatUpdated, b.onChatUpdated)
	socket.OnReconnect(b.FlushPending)
	return b
}

// Self returns the current user once an initial load resolved it.
func (b *Bridge) Self() (models.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.self, b.hasSelf
}

func (b *Bridge) setSelf(user models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = user
	b.hasSelf = true
}

// SendText emits a text message over the socket, or queues it when the
// socket is down so the reconnect flush can replay it in FIFO order.
// Input clearing is the caller's concern; no ack is awaited.
func (b *Bridge) SendText(chatID, content, replyToID string) error {
	payload := models.SendMessagePayload{
		ChatID:    chatID,
		Content:   content,
		Type:      models.MessageText,
		ReplyToID: replyToID,
	}
	err := b.socket.SendMessage(payload)
	if errors.Is(err, transport.ErrNotConnected) {
		self, _ := b.Self()
		b.store.QueueMessage(models.Message{
			ID:        models.OptimisticPrefix + uuid.NewString(),
			ChatID:    chatID,
			SenderID:  self.ID,
			Type:      models.MessageText,
			Content:   content,
			ReplyToID: replyToID,
			CreatedAt: time.Now(),
		})
		return nil
	}
	return err
}

// SendMedia inserts an optimistic placeholder, uploads the file and
// swaps the placeholder for the confirmed message. On failure the
// placeholder is rolled back and ErrUploadFailed surfaces.
func (b *Bridge) SendMedia(ctx context.Context, chatID string, req api.UploadRequest) (models.Message, error) {
	self, _ := b.Self()
	placeholder := models.Message{
		ID:        models.OptimisticPrefix + uuid.NewString(),
		ChatID:    chatID,
		SenderID:  self.ID,
		Type:      req.Type,
		FileName:  req.FileName,
		MimeType:  req.MimeType,
		Duration:  req.Duration,
		ReplyToID: req.ReplyToID,
		CreatedAt: time.Now(),
	}
	b.store.AddMessage(chatID, placeholder)

	confirmed, err := b.api.UploadMessage(ctx, chatID, req)
	if err != nil {
		b.store.DeleteMessage(chatID, placeholder.ID)
		observability.IncUploadFailure()
		return models.Message{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	b.store.DeleteMessage(chatID, placeholder.ID)
	b.store.AddMessage(chatID, confirmed)
	return confirmed, nil
}

// MarkRead tells the server the chat was read and mirrors the flags
// locally for every message the current user did not send.
func (b *Bridge) MarkRead(chatID string) error {
	err := b.socket.SendMarkRead(chatID)
	if err != nil && !errors.Is(err, transport.ErrNotConnected) {
		return err
	}
	if self, ok := b.Self(); ok {
		b.store.MarkChatAsRead(chatID, self.ID)
	}
	return nil
}

// ToggleReaction emits a reaction change; the store updates when the
// server echoes messageReactionUpdated.
func (b *Bridge) ToggleReaction(chatID, messageID, emoji string) error {
	return b.socket.SendReaction(models.AddReactionPayload{
		ChatID:    chatID,
		MessageID: messageID,
		Emoji:     emoji,
	})
}

// FlushPending replays the offline queue in insertion order. It stops
// at the first failed emission so ordering survives a flaky reconnect.
func (b *Bridge) FlushPending() {
	for _, msg := range b.store.PendingMessages() {
		err := b.socket.SendMessage(models.SendMessagePayload{
			ChatID:    msg.ChatID,
			Content:   msg.Content,
			Type:      msg.Type,
			Duration:  msg.Duration,
			ReplyToID: msg.ReplyToID,
		})
		if err != nil {
			log.Printf("pending flush stopped: %v", err)
			return
		}
		b.store.RemovePendingMessage(msg.ID)
	}
}

func (b *Bridge) onNewMessage(data json.RawMessage) {
	var payload models.NewMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad newMessage payload: %v", err)
		return
	}
	msg := payload.Message
	if msg.Content == "" && msg.MediaURL != "" {
		msg.Content = msg.MediaURL
	}
	b.reconcileOptimistic(msg.ChatID, msg)
	b.store.AddMessage(msg.ChatID, msg)
}

// reconcileOptimistic removes the local placeholder for a send once the
// server-confirmed equivalent is observed, so exactly one copy remains.
func (b *Bridge) reconcileOptimistic(chatID string, confirmed models.Message) {
	for _, msg := range b.store.Messages(chatID) {
		if !msg.IsOptimistic() || msg.SenderID != confirmed.SenderID {
			continue
		}
		if msg.Type != confirmed.Type {
			continue
		}
		if msg.Type == models.MessageText && msg.Content != confirmed.Content {
			continue
		}
		b.store.DeleteMessage(chatID, msg.ID)
		return
	}
}

func (b *Bridge) onMessagesRead(data json.RawMessage) {
	var payload models.MessagesReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad messagesRead payload: %v", err)
		return
	}
	b.store.MarkChatAsRead(payload.ChatID, payload.UserID)
}

func (b *Bridge) onReactionUpdated(data json.RawMessage) {
	var payload models.ReactionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad reaction payload: %v", err)
		return
	}
	b.store.SetReactions(payload.ChatID, payload.MessageID, payload.Reactions)
}

func (b *Bridge) onUserOnline(data json.RawMessage) {
	var payload models.PresencePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad presence payload: %v", err)
		return
	}
	b.store.SetUserOnline(models.PresenceStatus{
		UserID:   payload.UserID,
		IsOnline: payload.IsOnline,
		LastSeen: payload.LastSeen,
	})
}

func (b *Bridge) onChatUpdated(data json.RawMessage) {
	var payload models.ChatUpdatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad chatUpdated payload: %v", err)
		return
	}
	b.store.UpsertChat(payload.Chat)
}
