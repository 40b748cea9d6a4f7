package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

func msg(id, chatID, senderID string, at time.Time) models.Message {
	return models.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      models.MessageText,
		Content:   "content-" + id,
		CreatedAt: at,
	}
}

func TestAddMessageIsIdempotent(t *testing.T) {
	s := New()
	now := time.Now()

	s.AddMessage("c1", msg("m1", "c1", "u2", now))
	s.AddMessage("c1", msg("m1", "c1", "u2", now))

	require.Len(t, s.Messages("c1"), 1)
}

func TestAddMessageRefreshesLastMessage(t *testing.T) {
	s := New()
	s.UpsertChat(models.Chat{ID: "c1", Participant: models.Participant{ID: "u2"}})

	s.AddMessage("c1", msg("m1", "c1", "u2", time.Now()))

	chat, ok := s.Chat("c1")
	require.True(t, ok)
	require.NotNil(t, chat.LastMessage)
	assert.Equal(t, "m1", chat.LastMessage.ID)
	assert.Equal(t, "content-m1", chat.LastMessage.Preview)
}

func TestMarkChatAsReadScenario(t *testing.T) {
	s := New()
	s.UpsertChat(models.Chat{ID: "c1", Participant: models.Participant{ID: "u2"}})
	s.SetMessages("c1", nil)
	s.AddMessage("c1", msg("m1", "c1", "u2", time.Now()))

	msgs := s.Messages("c1")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsRead)

	s.MarkChatAsRead("c1", "u1")

	msgs = s.Messages("c1")
	assert.True(t, msgs[0].IsRead)
	chat, _ := s.Chat("c1")
	assert.True(t, chat.LastMessage.IsRead)
}

func TestMarkChatAsReadSkipsOwnMessages(t *testing.T) {
	s := New()
	s.AddMessage("c1", msg("mine", "c1", "u1", time.Now()))
	s.AddMessage("c1", msg("theirs", "c1", "u2", time.Now()))

	s.MarkChatAsRead("c1", "u1")

	msgs := s.Messages("c1")
	assert.False(t, msgs[0].IsRead)
	assert.True(t, msgs[1].IsRead)
}

func TestPrependKeepsOlderBeforeNewer(t *testing.T) {
	s := New()
	base := time.Now()

	s.SetMessages("c1", []models.Message{msg("m3", "c1", "u2", base)})
	s.PrependMessages("c1", []models.Message{
		msg("m1", "c1", "u2", base.Add(-2*time.Minute)),
		msg("m2", "c1", "u2", base.Add(-time.Minute)),
	})
	s.AddMessage("c1", msg("m4", "c1", "u2", base.Add(time.Minute)))
	s.AddMessage("c1", msg("m5", "c1", "u2", base.Add(2*time.Minute)))

	var ids []string
	for _, m := range s.Messages("c1") {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids)
}

func TestUpdateAndDeleteNoOpOnMiss(t *testing.T) {
	s := New()
	s.AddMessage("c1", msg("m1", "c1", "u2", time.Now()))

	s.UpdateMessage("c1", msg("ghost", "c1", "u2", time.Now()))
	s.DeleteMessage("c1", "ghost")
	s.DeleteMessage("unknown-chat", "m1")

	require.Len(t, s.Messages("c1"), 1)
}

func TestDeleteMessageRemovesById(t *testing.T) {
	s := New()
	s.AddMessage("c1", msg("m1", "c1", "u2", time.Now()))
	s.AddMessage("c1", msg("m2", "c1", "u2", time.Now()))

	s.DeleteMessage("c1", "m1")

	msgs := s.Messages("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
}

func TestTypingSetsAreIsolatedPerChat(t *testing.T) {
	s := New()

	s.SetTyping("c1", "u2")
	s.SetTyping("c2", "u3")

	assert.True(t, s.IsTyping("c1", "u2"))
	assert.False(t, s.IsTyping("c1", "u3"))
	assert.True(t, s.IsTyping("c2", "u3"))

	s.ClearTyping("c1", "u2")
	assert.False(t, s.IsTyping("c1", "u2"))
	assert.True(t, s.IsTyping("c2", "u3"))
}

func TestClearTypingNoOpWhenAbsent(t *testing.T) {
	s := New()
	s.ClearTyping("c1", "u2")
	assert.Empty(t, s.TypingUsers("c1"))
}

func TestSetUserOnlineMirrorsIntoChats(t *testing.T) {
	s := New()
	s.UpsertChat(models.Chat{ID: "c1", Participant: models.Participant{ID: "u2"}})
	s.UpsertChat(models.Chat{ID: "c2", Participant: models.Participant{ID: "u3"}})

	s.SetUserOnline(models.PresenceStatus{UserID: "u2", IsOnline: true, LastSeen: time.Now()})

	chat, _ := s.Chat("c1")
	assert.True(t, chat.Participant.IsOnline)
	other, _ := s.Chat("c2")
	assert.False(t, other.Participant.IsOnline)

	status, ok := s.Presence("u2")
	require.True(t, ok)
	assert.True(t, status.IsOnline)
}

func TestPendingQueueIsFIFO(t *testing.T) {
	s := New()
	s.QueueMessage(msg("p1", "c1", "u1", time.Now()))
	s.QueueMessage(msg("p2", "c1", "u1", time.Now()))
	s.QueueMessage(msg("p3", "c1", "u1", time.Now()))

	s.RemovePendingMessage("p2")

	pending := s.PendingMessages()
	require.Len(t, pending, 2)
	assert.Equal(t, "p1", pending[0].ID)
	assert.Equal(t, "p3", pending[1].ID)

	s.ClearPendingMessages()
	assert.Empty(t, s.PendingMessages())
}

func TestPendingQueueIndependentOfChatLists(t *testing.T) {
	s := New()
	s.QueueMessage(msg("p1", "c1", "u1", time.Now()))
	assert.Empty(t, s.Messages("c1"))
}

func TestChatsByRecency(t *testing.T) {
	s := New()
	base := time.Now()
	s.UpsertChat(models.Chat{ID: "c1", CreatedAt: base.Add(-time.Hour)})
	s.UpsertChat(models.Chat{ID: "c2", CreatedAt: base.Add(-time.Hour)})

	s.AddMessage("c1", msg("m1", "c1", "u2", base.Add(-10*time.Minute)))
	s.AddMessage("c2", msg("m2", "c2", "u3", base))

	chats := s.ChatsByRecency()
	require.Len(t, chats, 2)
	assert.Equal(t, "c2", chats[0].ID)
	assert.Equal(t, "c1", chats[1].ID)
}

func TestSetReactions(t *testing.T) {
	s := New()
	s.AddMessage("c1", msg("m1", "c1", "u2", time.Now()))

	s.SetReactions("c1", "m1", map[string][]string{"👍": {"u1"}})

	msgs := s.Messages("c1")
	assert.Equal(t, []string{"u1"}, msgs[0].Reactions["👍"])
}

func TestHasMoreMessages(t *testing.T) {
	s := New()
	assert.False(t, s.HasMoreMessages("c1"))
	s.SetHasMoreMessages("c1", true)
	assert.True(t, s.HasMoreMessages("c1"))
}
