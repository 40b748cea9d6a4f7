package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"

	"chat-sync/internal/models"
)

type phase int

const (
	phaseIdle phase = iota
	phaseLoading
	phaseReady
	phaseFailed
	phaseLoadingMore
)

// Session is one screen's view onto a chat. It owns the load lifecycle
// (idle -> loading -> ready <-> loadingMore) and a context cancelled on
// Close, so in-flight requests die with the screen instead of leaking.
type Session struct {
	bridge *Bridge
	chatID string
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	phase phase
}

// OpenChat creates a Session for one chat screen instance.
func (b *Bridge) OpenChat(chatID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		bridge: b,
		chatID: chatID,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels any in-flight loads for this session.
func (s *Session) Close() {
	s.cancel()
}

// Ready reports whether the initial load completed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phaseReady || s.phase == phaseLoadingMore
}

// Load performs the initial fetch: current user and the newest message
// page, concurrently. A failure leaves the session in a terminal failed
// state for this screen instance; the HTTP client already absorbed any
// transient retries.
func (s *Session) Load() error {
	s.mu.Lock()
	if s.phase != phaseIdle {
		s.mu.Unlock()
		return nil
	}
	s.phase = phaseLoading
	s.mu.Unlock()

	ctx, span := otel.Tracer("chat-sync/bridge").Start(s.ctx, "chat.load")
	defer span.End()

	userCh := make(chan error, 1)
	go func() {
		user, err := s.bridge.api.CurrentUser(ctx)
		if err == nil {
			s.bridge.setSelf(user)
		}
		userCh <- err
	}()

	page, pageErr := s.bridge.api.FetchChat(ctx, s.chatID, s.bridge.pageSize, "")
	userErr := <-userCh

	if pageErr != nil || userErr != nil {
		s.mu.Lock()
		s.phase = phaseFailed
		s.mu.Unlock()
		if pageErr != nil {
			return fmt.Errorf("load chat %s: %w", s.chatID, pageErr)
		}
		return fmt.Errorf("load chat %s: %w", s.chatID, userErr)
	}

	if page.Chat != nil {
		s.bridge.store.UpsertChat(*page.Chat)
	}
	s.bridge.store.SetMessages(s.chatID, page.Messages)
	s.bridge.store.SetHasMoreMessages(s.chatID, page.HasMore)

	s.mu.Lock()
	s.phase = phaseReady
	s.mu.Unlock()
	return nil
}

// LoadMore fetches the next older page using the oldest known message
// id as cursor. Guarded so only one pagination request per chat is in
// flight and none is issued when no more history exists.
func (s *Session) LoadMore() error {
	msgs := s.bridge.store.Messages(s.chatID)
	if !s.bridge.store.HasMoreMessages(s.chatID) || len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.phase != phaseReady {
		s.mu.Unlock()
		return nil
	}
	s.phase = phaseLoadingMore
	s.mu.Unlock()

	cursor := msgs[0].ID
	page, err := s.bridge.api.FetchChat(s.ctx, s.chatID, s.bridge.pageSize, cursor)

	s.mu.Lock()
	s.phase = phaseReady
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("load more for chat %s: %w", s.chatID, err)
	}

	s.bridge.store.PrependMessages(s.chatID, page.Messages)
	s.bridge.store.SetHasMoreMessages(s.chatID, page.HasMore)
	return nil
}

// Messages is a convenience selector for the session's chat.
func (s *Session) Messages() []models.Message {
	return s.bridge.store.Messages(s.chatID)
}
