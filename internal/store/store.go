package store

import (
	"sort"
	"sync"
	"time"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// Store is the single source of truth for chats, messages, typing state,
// presence and the offline queue. All mutation goes through its methods;
// no caller reaches into the collections directly.
type Store struct {
	chats    map[string]models.Chat
	messages map[string][]models.Message
	typing   map[string]map[string]struct{}
	presence map[string]models.PresenceStatus
	hasMore  map[string]bool
	pending  []models.Message
	mu       sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chats:    make(map[string]models.Chat),
		messages: make(map[string][]models.Message),
		typing:   make(map[string]map[string]struct{}),
		presence: make(map[string]models.PresenceStatus),
		hasMore:  make(map[string]bool),
	}
}

// UpsertChat creates or replaces a chat record.
func (s *Store) UpsertChat(chat models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.ID] = chat
}

// RemoveChat deletes a chat and its message list. No-op if unknown.
func (s *Store) RemoveChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	delete(s.typing, chatID)
	delete(s.hasMore, chatID)
}

// SetMessages replaces the full known message list for a chat.
func (s *Store) SetMessages(chatID string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[chatID] = append([]models.Message(nil), msgs...)
	if len(msgs) > 0 {
		s.refreshLastMessage(chatID, msgs[len(msgs)-1])
	}
}

// AddMessage appends a message unless one with the same id already
// exists, and refreshes the chat's last-message summary. Duplicate
// delivery (optimistic insert plus socket echo) is therefore a no-op.
func (s *Store) AddMessage(chatID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.messages[chatID] {
		if existing.ID == msg.ID {
			return
		}
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	s.refreshLastMessage(chatID, msg)
}

// PrependMessages concatenates an older page before the existing list,
// preserving relative order. Pagination cursors are assumed
// non-overlapping, so no dedup against the newer range happens here.
func (s *Store) PrependMessages(chatID string, older []models.Message) {
	if len(older) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]models.Message, 0, len(older)+len(s.messages[chatID]))
	merged = append(merged, older...)
	merged = append(merged, s.messages[chatID]...)
	s.messages[chatID] = merged
}

// UpdateMessage replaces the message with the same id. No-op on miss.
func (s *Store) UpdateMessage(chatID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.messages[chatID] {
		if existing.ID == msg.ID {
			s.messages[chatID][i] = msg
			if chat, ok := s.chats[chatID]; ok && chat.LastMessage != nil && chat.LastMessage.ID == msg.ID {
				s.refreshLastMessage(chatID, msg)
			}
			return
		}
	}
}

// SetReactions replaces the reactions map on one message. No-op on miss.
func (s *Store) SetReactions(chatID, messageID string, reactions map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.messages[chatID] {
		if existing.ID == messageID {
			s.messages[chatID][i].Reactions = reactions
			return
		}
	}
}

// DeleteMessage removes the message with the given id. No-op on miss.
func (s *Store) DeleteMessage(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	for i, existing := range msgs {
		if existing.ID == messageID {
			s.messages[chatID] = append(msgs[:i:i], msgs[i+1:]...)
			return
		}
	}
}

// MarkChatAsRead marks every message not sent by userID as read and
// mirrors the flag onto the chat's last-message summary if applicable.
func (s *Store) MarkChatAsRead(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages[chatID] {
		if s.messages[chatID][i].SenderID != userID {
			s.messages[chatID][i].IsRead = true
		}
	}
	if chat, ok := s.chats[chatID]; ok && chat.LastMessage != nil && chat.LastMessage.SenderID != userID {
		last := *chat.LastMessage
		last.IsRead = true
		chat.LastMessage = &last
		s.chats[chatID] = chat
	}
}

// SetHasMoreMessages records whether an older page exists for a chat.
func (s *Store) SetHasMoreMessages(chatID string, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasMore[chatID] = hasMore
}

// SetTyping adds a user to a chat's typing set.
func (s *Store) SetTyping(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typing[chatID]; !ok {
		s.typing[chatID] = make(map[string]struct{})
	}
	s.typing[chatID][userID] = struct{}{}
}

// ClearTyping removes a user from a chat's typing set. No-op if absent.
func (s *Store) ClearTyping(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if users, ok := s.typing[chatID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.typing, chatID)
		}
	}
}

// SetUserOnline updates the presence cache and mirrors the flag into
// every chat whose participant matches the user. Last write wins.
func (s *Store) SetUserOnline(status models.PresenceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[status.UserID] = status
	for id, chat := range s.chats {
		if chat.Participant.ID == status.UserID {
			chat.Participant.IsOnline = status.IsOnline
			s.chats[id] = chat
		}
	}
}

// QueueMessage appends a message to the offline queue.
func (s *Store) QueueMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	observability.SetPendingQueueDepth(len(s.pending))
}

// RemovePendingMessage drops one queued message by id. No-op on miss.
func (s *Store) RemovePendingMessage(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.pending {
		if msg.ID == messageID {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			break
		}
	}
	observability.SetPendingQueueDepth(len(s.pending))
}

// ClearPendingMessages empties the offline queue.
func (s *Store) ClearPendingMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	observability.SetPendingQueueDepth(0)
}

// refreshLastMessage updates the denormalized summary. Caller holds mu.
func (s *Store) refreshLastMessage(chatID string, msg models.Message) {
	chat, ok := s.chats[chatID]
	if !ok {
		return
	}
	chat.LastMessage = &models.LastMessage{
		ID:        msg.ID,
		Preview:   msg.Preview(),
		Type:      msg.Type,
		SenderID:  msg.SenderID,
		IsRead:    msg.IsRead,
		Timestamp: msg.CreatedAt,
	}
	s.chats[chatID] = chat
}

// Chat returns one chat record.
func (s *Store) Chat(chatID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	return chat, ok
}

// ChatsByRecency returns all chats sorted by last-message time, newest
// first. Chats without messages sort by creation time.
func (s *Store) ChatsByRecency() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chats := make([]models.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		chats = append(chats, chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return recency(chats[i]).After(recency(chats[j]))
	})
	return chats
}

// Messages returns a copy of the ordered message list for a chat.
func (s *Store) Messages(chatID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages[chatID]...)
}

// TypingUsers returns the ids currently typing in a chat.
func (s *Store) TypingUsers(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.typing[chatID]))
	for id := range s.typing[chatID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// IsTyping reports whether a specific user is typing in a chat.
func (s *Store) IsTyping(chatID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.typing[chatID][userID]
	return ok
}

// Presence returns the cached status for a user.
func (s *Store) Presence(userID string) (models.PresenceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.presence[userID]
	return status, ok
}

// HasMoreMessages reports whether an older page exists for a chat.
func (s *Store) HasMoreMessages(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore[chatID]
}

// PendingMessages returns a copy of the offline queue in FIFO order.
func (s *Store) PendingMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.pending...)
}

func recency(chat models.Chat) time.Time {
	if chat.LastMessage != nil {
		return chat.LastMessage.Timestamp
	}
	return chat.CreatedAt
}
