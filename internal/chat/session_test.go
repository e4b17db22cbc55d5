package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/server/internal/identity"
	"tripmate/server/internal/push"
	"tripmate/server/internal/websocket"
)

var testOptions = Options{
	PageSize:         5,
	TypingDebounce:   5 * time.Millisecond,
	TypingTTL:        time.Second,
	ReadReceiptDelay: 10 * time.Millisecond,
}

func startSession(t *testing.T, store *countingStore, user string) (*Session, *sink) {
	t.Helper()
	out := &sink{}
	actions := NewActions(store, newFakeBlobs(), push.Noop{}, "g1")
	s := NewSession(store, actions, "g1", identity.Identity{Name: user, GroupIDs: []string{"g1"}}, testOptions, out)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	require.Eventually(t, func() bool {
		w, ok := out.lastWindow()
		return ok && w.Loaded
	}, time.Second, 5*time.Millisecond)
	return s, out
}

func TestSessionSendMessage(t *testing.T) {
	store := newCountingStore(t)
	s, out := startSession(t, store, "Ana")

	s.HandleMessage(context.Background(), incoming(t, websocket.EventSendMessage, websocket.SendMessagePayload{Content: "halo"}))

	sent := out.ofType(websocket.EventMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "halo", sent[0].Payload.(websocket.MessageSentPayload).Content)

	require.Eventually(t, func() bool {
		w, _ := out.lastWindow()
		return len(w.Messages) == 1 && w.Messages[0].Content == "halo"
	}, time.Second, 5*time.Millisecond)
}

func TestSessionEmptyMessageRestoresInput(t *testing.T) {
	store := newCountingStore(t)
	s, out := startSession(t, store, "Ana")

	s.HandleMessage(context.Background(), incoming(t, websocket.EventSendMessage, websocket.SendMessagePayload{Content: "  "}))

	failed := out.ofType(websocket.EventMessageFailed)
	require.Len(t, failed, 1)
	p := failed[0].Payload.(websocket.MessageFailedPayload)
	assert.Equal(t, "  ", p.Content)
	assert.Equal(t, ErrEmptyMessage.Error(), p.Error)
	assert.Empty(t, out.ofType(websocket.EventMessageSent))
}

func TestSessionStoreFailureIsGeneric(t *testing.T) {
	store := newCountingStore(t)
	s, out := startSession(t, store, "Ana")
	store.failAdds.Store(true)

	s.HandleMessage(context.Background(), incoming(t, websocket.EventSendMessage, websocket.SendMessagePayload{Content: "halo"}))

	failed := out.ofType(websocket.EventMessageFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "Something went wrong, please try again", failed[0].Payload.(websocket.MessageFailedPayload).Error)
}

func TestSessionTypingSeenByOthers(t *testing.T) {
	store := newCountingStore(t)
	anaSession, _ := startSession(t, store, "Ana")
	_, budiOut := startSession(t, store, "Budi")

	anaSession.HandleMessage(context.Background(), incoming(t, websocket.EventTypingStart, struct{}{}))
	require.Eventually(t, func() bool {
		ev := budiOut.ofType(websocket.EventTyping)
		if len(ev) == 0 {
			return false
		}
		users := ev[len(ev)-1].Payload.(websocket.TypingPayload).Users
		return len(users) == 1 && users[0] == "Ana"
	}, time.Second, 5*time.Millisecond)

	anaSession.HandleMessage(context.Background(), incoming(t, websocket.EventTypingStop, struct{}{}))
	require.Eventually(t, func() bool {
		ev := budiOut.ofType(websocket.EventTyping)
		return len(ev[len(ev)-1].Payload.(websocket.TypingPayload).Users) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSessionMarksIncomingAsRead(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "hi Ana")
	startSession(t, store, "Ana")

	require.Eventually(t, func() bool {
		m := getMessage(t, store, "g1", ids[0])
		return m.IsReadBy("Ana")
	}, time.Second, 5*time.Millisecond)
}

func TestSessionLoadMore(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "1", "2", "3", "4", "5", "6", "7")
	s, out := startSession(t, store, "Ana")

	w, _ := out.lastWindow()
	require.Len(t, w.Messages, 5)
	assert.True(t, w.HasMore)

	s.HandleMessage(context.Background(), incoming(t, websocket.EventLoadMore, struct{}{}))
	require.Eventually(t, func() bool {
		w, _ := out.lastWindow()
		return len(w.Messages) == 7 && !w.HasMore
	}, time.Second, 5*time.Millisecond)
}

func TestSessionRejectsUnknownAndMalformed(t *testing.T) {
	store := newCountingStore(t)
	s, out := startSession(t, store, "Ana")

	s.HandleMessage(context.Background(), websocket.IncomingMessage{Type: "dance"})
	s.HandleMessage(context.Background(), websocket.IncomingMessage{Type: websocket.EventEditMessage, Payload: []byte("{")})
	s.HandleMessage(context.Background(), incoming(t, websocket.EventEditMessage, websocket.EditMessagePayload{MessageID: "missing", Content: "x"}))

	errs := out.ofType(websocket.EventError)
	require.Len(t, errs, 3)
	assert.Equal(t, "unknown_event", errs[0].Payload.(websocket.ErrorPayload).Code)
	assert.Equal(t, "bad_payload", errs[1].Payload.(websocket.ErrorPayload).Code)
	assert.Equal(t, "edit_failed", errs[2].Payload.(websocket.ErrorPayload).Code)
}

func TestSessionCloseClearsTyping(t *testing.T) {
	store := newCountingStore(t)
	s, _ := startSession(t, store, "Ana")

	s.HandleMessage(context.Background(), incoming(t, websocket.EventTypingStart, struct{}{}))
	require.Eventually(t, func() bool {
		_, ok := typingRecord(t, store, "Ana")
		return ok
	}, time.Second, 5*time.Millisecond)

	s.Close()
	s.Close()
	_, ok := typingRecord(t, store, "Ana")
	assert.False(t, ok)
}
