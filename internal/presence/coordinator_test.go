package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func newTestCoordinator(t *testing.T, decay time.Duration) (*Coordinator, *mocks.FakeSocket, *store.Store, *mocks.ChatAPIMock) {
	t.Helper()
	socket := mocks.NewFakeSocket()
	st := store.New()
	chatAPI := new(mocks.ChatAPIMock)
	c := NewCoordinator(socket, st, chatAPI, func() string { return "u1" }, decay, 10*time.Millisecond)
	t.Cleanup(c.Stop)
	return c, socket, st, chatAPI
}

func TestRemoteTypingDecaysAfterSilence(t *testing.T) {
	_, socket, st, _ := newTestCoordinator(t, 60*time.Millisecond)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})

	assert.True(t, st.IsTyping("c1", "u2"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, st.IsTyping("c1", "u2"))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, st.IsTyping("c1", "u2"))
}

func TestFollowUpTypingExtendsDecay(t *testing.T) {
	_, socket, st, _ := newTestCoordinator(t, 60*time.Millisecond)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	time.Sleep(40 * time.Millisecond)
	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	time.Sleep(40 * time.Millisecond)

	// The second signal re-armed the timer, so the flag is still up.
	assert.True(t, st.IsTyping("c1", "u2"))
}

func TestExplicitStopTypingShortCircuitsTimer(t *testing.T) {
	_, socket, st, _ := newTestCoordinator(t, time.Minute)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	require.True(t, st.IsTyping("c1", "u2"))

	socket.Fire(models.EventUserStopTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	assert.False(t, st.IsTyping("c1", "u2"))
}

func TestStopLowersLingeringTypingFlags(t *testing.T) {
	c, socket, st, _ := newTestCoordinator(t, time.Minute)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c2", UserID: "u3"})
	require.True(t, st.IsTyping("c1", "u2"))

	c.Stop()

	assert.False(t, st.IsTyping("c1", "u2"))
	assert.False(t, st.IsTyping("c2", "u3"))
}

func TestOwnTypingEchoIsIgnored(t *testing.T) {
	_, socket, st, _ := newTestCoordinator(t, time.Minute)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u1"})

	assert.False(t, st.IsTyping("c1", "u1"))
}

func TestTypingEventsDoNotCrossChats(t *testing.T) {
	_, socket, st, _ := newTestCoordinator(t, time.Minute)

	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c1", UserID: "u2"})
	socket.Fire(models.EventUserTyping, models.TypingPayload{ChatID: "c2", UserID: "u3"})

	assert.True(t, st.IsTyping("c1", "u2"))
	assert.False(t, st.IsTyping("c2", "u2"))
	assert.True(t, st.IsTyping("c2", "u3"))
	assert.False(t, st.IsTyping("c1", "u3"))
}

func TestInputChangedEmitsOnlyOnTransition(t *testing.T) {
	c, socket, _, _ := newTestCoordinator(t, time.Minute)

	c.InputChanged("c1", "u2", "h")
	c.InputChanged("c1", "u2", "he")
	c.InputChanged("c1", "u2", "hel")

	require.Len(t, socket.Typing, 1)
	assert.Empty(t, socket.StopTyping)

	c.InputChanged("c1", "u2", "")
	c.InputChanged("c1", "u2", "")

	require.Len(t, socket.StopTyping, 1)
	assert.Len(t, socket.Typing, 1)
}

func TestWatchPollsPresenceThroughStore(t *testing.T) {
	c, _, st, chatAPI := newTestCoordinator(t, time.Minute)

	chatAPI.On("UserStatuses", mock.Anything, []string{"u2"}).
		Return([]models.PresenceStatus{{UserID: "u2", IsOnline: true, LastSeen: time.Now()}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, "u2")
		close(done)
	}()

	require.Eventually(t, func() bool {
		status, ok := st.Presence("u2")
		return ok && status.IsOnline
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestPushPresenceSupersedesPoll(t *testing.T) {
	_, _, st, _ := newTestCoordinator(t, time.Minute)

	st.SetUserOnline(models.PresenceStatus{UserID: "u2", IsOnline: true, LastSeen: time.Now()})
	st.SetUserOnline(models.PresenceStatus{UserID: "u2", IsOnline: false, LastSeen: time.Now()})

	status, ok := st.Presence("u2")
	require.True(t, ok)
	assert.False(t, status.IsOnline)
}
