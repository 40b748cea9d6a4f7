package mocks

import (
	"encoding/json"
	"sync"

	"chat-sync/internal/models"
	"chat-sync/internal/transport"
)

// FakeSocket is an in-memory stand-in for the transport client. Tests
// fire server-pushed events through it and inspect what was emitted.
type FakeSocket struct {
	mu         sync.Mutex
	handlers   map[models.EventType]map[int]transport.Handler
	nextSub    int
	reconnects []func()
	offline    bool
	Sent       []models.SendMessagePayload
	MarkedRead []string
	Reactions  []models.AddReactionPayload
	Typing     []models.TypingPayload
	StopTyping []models.TypingPayload
}

func NewFakeSocket() *FakeSocket {
	return &FakeSocket{handlers: make(map[models.EventType]map[int]transport.Handler)}
}

// SetOffline makes every Send call fail with ErrNotConnected.
func (f *FakeSocket) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Fire delivers a server-pushed event to every subscriber.
func (f *FakeSocket) Fire(event models.EventType, payload any) {
	data, _ := json.Marshal(payload)
	f.mu.Lock()
	handlers := make([]transport.Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

// Reconnect runs every registered reconnect callback.
func (f *FakeSocket) Reconnect() {
	f.mu.Lock()
	callbacks := make([]func(), len(f.reconnects))
	copy(callbacks, f.reconnects)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (f *FakeSocket) Subscribe(event models.EventType, handler transport.Handler) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[event]; !ok {
		f.handlers[event] = make(map[int]transport.Handler)
	}
	f.nextSub++
	f.handlers[event][f.nextSub] = handler
	return f.nextSub
}

func (f *FakeSocket) Unsubscribe(event models.EventType, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if handlers, ok := f.handlers[event]; ok {
		delete(handlers, id)
	}
}

func (f *FakeSocket) OnReconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects = append(f.reconnects, fn)
}

func (f *FakeSocket) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline
}

func (f *FakeSocket) SendMessage(payload models.SendMessagePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return transport.ErrNotConnected
	}
	f.Sent = append(f.Sent, payload)
	return nil
}

func (f *FakeSocket) SendMarkRead(chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return transport.ErrNotConnected
	}
	f.MarkedRead = append(f.MarkedRead, chatID)
	return nil
}

func (f *FakeSocket) SendReaction(payload models.AddReactionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return transport.ErrNotConnected
	}
	f.Reactions = append(f.Reactions, payload)
	return nil
}

func (f *FakeSocket) SendTyping(chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return transport.ErrNotConnected
	}
	f.Typing = append(f.Typing, models.TypingPayload{ChatID: chatID, UserID: userID})
	return nil
}

func (f *FakeSocket) SendStopTyping(chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return transport.ErrNotConnected
	}
	f.StopTyping = append(f.StopTyping, models.TypingPayload{ChatID: chatID, UserID: userID})
	return nil
}
