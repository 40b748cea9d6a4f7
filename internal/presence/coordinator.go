package presence

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
	"chat-sync/internal/transport"
)

// Socket is the slice of the transport client the coordinator uses.
type Socket interface {
	Subscribe(event models.EventType, handler transport.Handler) int
	SendTyping(chatID, userID string) error
	SendStopTyping(chatID, userID string) error
}

// Coordinator owns the timing policy around typing and presence: the
// store holds the flags, this component decides when they flip.
type Coordinator struct {
	socket Socket
	store  *store.Store
	api    api.ChatAPI
	selfID func() string
	decay  time.Duration
	poll   time.Duration

	mu        sync.Mutex
	timers    map[string]*time.Timer
	composing map[string]bool
}

// NewCoordinator wires the coordinator to remote typing events. selfID
// resolves the current user so our own echoes are ignored.
func NewCoordinator(socket Socket, st *store.Store, chatAPI api.ChatAPI, selfID func() string, decay, poll time.Duration) *Coordinator {
	c := &Coordinator{
		socket:    socket,
		store:     st,
		api:       chatAPI,
		selfID:    selfID,
		decay:     decay,
		poll:      poll,
		timers:    make(map[string]*time.Timer),
		composing: make(map[string]bool),
	}
	socket.Subscribe(models.EventUserTyping, c.onTyping)
	socket.Subscribe(models.EventUserStopTyping, c.onStopTyping)
	return c
}

// InputChanged reports the local compose box content for a chat. A
// typing signal goes out only on the empty-to-non-empty transition and
// a stop signal on the way back, relying on the remote side's decay for
// anything in between.
func (c *Coordinator) InputChanged(chatID, targetUserID, text string) {
	nonEmpty := text != ""

	c.mu.Lock()
	was := c.composing[chatID]
	if nonEmpty == was {
		c.mu.Unlock()
		return
	}
	c.composing[chatID] = nonEmpty
	c.mu.Unlock()

	var err error
	if nonEmpty {
		err = c.socket.SendTyping(chatID, targetUserID)
	} else {
		err = c.socket.SendStopTyping(chatID, targetUserID)
	}
	if err != nil {
		log.Printf("typing signal dropped: %v", err)
	}
}

// Watch polls the participant's presence on a fixed interval while a
// chat screen is open. Push events and the poll write through the same
// store mutation, last write wins. Returns when ctx is cancelled.
func (c *Coordinator) Watch(ctx context.Context, participantID string) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses, err := c.api.UserStatuses(ctx, []string{participantID})
			if err != nil {
				log.Printf("presence poll failed: %v", err)
				continue
			}
			for _, status := range statuses {
				c.store.SetUserOnline(status)
			}
		}
	}
}

// Stop cancels every pending decay timer and lowers the typing flags
// those timers would have cleared.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.timers))
	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		if chatID, userID, ok := strings.Cut(key, "|"); ok {
			c.store.ClearTyping(chatID, userID)
		}
	}
}

func (c *Coordinator) onTyping(data json.RawMessage) {
	var payload models.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad typing payload: %v", err)
		return
	}
	if payload.UserID == c.selfID() {
		return
	}
	c.store.SetTyping(payload.ChatID, payload.UserID)
	c.armDecay(payload.ChatID, payload.UserID)
}

func (c *Coordinator) onStopTyping(data json.RawMessage) {
	var payload models.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("bad stop-typing payload: %v", err)
		return
	}
	c.clearDecay(payload.ChatID, payload.UserID)
	c.store.ClearTyping(payload.ChatID, payload.UserID)
}

// armDecay (re)starts the silence timer for one remote typist. If no
// follow-up signal lands before it fires, the flag flips back by itself.
func (c *Coordinator) armDecay(chatID, userID string) {
	key := chatID + "|" + userID
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[key]; ok {
		timer.Stop()
	}
	c.timers[key] = time.AfterFunc(c.decay, func() {
		c.mu.Lock()
		delete(c.timers, key)
		c.mu.Unlock()
		c.store.ClearTyping(chatID, userID)
	})
}

func (c *Coordinator) clearDecay(chatID, userID string) {
	key := chatID + "|" + userID
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[key]; ok {
		timer.Stop()
		delete(c.timers, key)
	}
}
