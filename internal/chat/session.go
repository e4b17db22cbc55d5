package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/service"
	"tripmate/server/internal/websocket"
)

// Emitter receives outbound events
type Emitter interface {
	SendMessage(msg websocket.WSMessage) error
}

// Options tunes a session's pagination and timers
type Options struct {
	PageSize         int
	TypingDebounce   time.Duration
	TypingTTL        time.Duration
	ReadReceiptDelay time.Duration
}

// Session is one mounted chat view: a live message window, the user's typing
// indicator, the typing list of others, and read receipts for what is shown.
// Close releases all of it.
type Session struct {
	groupID string
	user    identity.Identity
	out     Emitter
	opts    Options
	store   docstore.Store

	feed     *Feed
	typing   *Typing
	receipts *Receipts
	actions  *Actions

	mu          sync.Mutex
	unsubTyping docstore.Unsubscribe
	closed      bool
}

func NewSession(store docstore.Store, actions *Actions, groupID string, user identity.Identity, opts Options, out Emitter) *Session {
	s := &Session{
		groupID:  groupID,
		user:     user,
		out:      out,
		opts:     opts,
		store:    store,
		typing:   NewTyping(store, groupID, user.Name, opts.TypingDebounce, opts.TypingTTL),
		receipts: NewReceipts(store, groupID, user.Name, opts.ReadReceiptDelay),
		actions:  actions,
	}
	s.feed = NewFeed(store, groupID, opts.PageSize, s.onWindow)
	return s
}

// Start opens the message and typing subscriptions.
func (s *Session) Start(ctx context.Context) error {
	if err := s.feed.Start(ctx); err != nil {
		return err
	}
	unsub, err := WatchTyping(ctx, s.store, s.groupID, s.user.Name, s.opts.TypingTTL, func(users []string) {
		s.emit(websocket.EventTyping, websocket.TypingPayload{GroupID: s.groupID, Users: users})
	})
	if err != nil {
		s.feed.Close()
		return err
	}

	s.mu.Lock()
	s.unsubTyping = unsub
	closed := s.closed
	s.mu.Unlock()
	if closed {
		unsub()
	}
	return nil
}

func (s *Session) onWindow(w Window) {
	s.emit(websocket.EventMessages, w)
	s.receipts.SetVisible(w.Messages)
}

// HandleMessage dispatches one inbound event.
func (s *Session) HandleMessage(ctx context.Context, msg websocket.IncomingMessage) {
	switch msg.Type {
	case websocket.EventTypingStart:
		s.typing.Start()

	case websocket.EventTypingStop:
		s.typing.Stop()

	case websocket.EventLoadMore:
		go func() {
			if err := s.feed.LoadMore(ctx); err != nil {
				slog.Warn("load more failed", "group_id", s.groupID, "error", err)
				s.fail("load_failed", "Could not load older messages")
			}
		}()

	case websocket.EventSendMessage:
		var p websocket.SendMessagePayload
		if !s.decode(msg, &p) {
			return
		}
		s.typing.Stop()
		id, err := s.actions.SendMessage(ctx, p.Content, s.user)
		if err != nil {
			slog.Warn("send message failed", "group_id", s.groupID, "error", err)
			s.emit(websocket.EventMessageFailed, websocket.MessageFailedPayload{Content: p.Content, Error: userMessage(err)})
			return
		}
		s.emit(websocket.EventMessageSent, websocket.MessageSentPayload{MessageID: id, Content: p.Content})

	case websocket.EventEditMessage:
		var p websocket.EditMessagePayload
		if !s.decode(msg, &p) {
			return
		}
		if err := s.actions.EditMessage(ctx, p.MessageID, p.Content); err != nil {
			slog.Warn("edit message failed", "group_id", s.groupID, "message_id", p.MessageID, "error", err)
			s.fail("edit_failed", userMessage(err))
		}

	case websocket.EventDeleteMessage:
		var p websocket.DeleteMessagePayload
		if !s.decode(msg, &p) {
			return
		}
		if err := s.actions.DeleteMessage(ctx, p.MessageID); err != nil {
			slog.Warn("delete message failed", "group_id", s.groupID, "message_id", p.MessageID, "error", err)
			s.fail("delete_failed", userMessage(err))
		}

	default:
		s.fail("unknown_event", "Unknown message type: "+string(msg.Type))
	}
}

// Close stops typing (removing the record) and releases subscriptions and timers.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubTyping
	s.mu.Unlock()

	s.feed.Close()
	if unsub != nil {
		unsub()
	}
	s.typing.Close()
	s.receipts.Close()
}

func (s *Session) decode(msg websocket.IncomingMessage, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		s.fail("bad_payload", "Malformed payload for "+string(msg.Type))
		return false
	}
	return true
}

func (s *Session) emit(t websocket.EventType, payload any) {
	if err := s.out.SendMessage(websocket.NewMessage(t, payload)); err != nil {
		slog.Warn("failed to emit event", "type", t, "error", err)
	}
}

func (s *Session) fail(code, message string) {
	s.emit(websocket.EventError, websocket.ErrorPayload{Code: code, Message: message})
}

// userMessage hides internal errors behind a generic message.
func userMessage(err error) string {
	var v *service.ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return "Message not found"
	}
	return "Something went wrong, please try again"
}
