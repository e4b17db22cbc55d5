package websocket

import (
	"encoding/json"
	"time"
)

// EventType represents different WebSocket event types
type EventType string

const (
	// Inbound chat events
	EventTypingStart   EventType = "typing_start"
	EventTypingStop    EventType = "typing_stop"
	EventLoadMore      EventType = "load_more"
	EventSendMessage   EventType = "send_message"
	EventEditMessage   EventType = "edit_message"
	EventDeleteMessage EventType = "delete_message"

	// Outbound chat events
	EventMessages      EventType = "messages"
	EventTyping        EventType = "typing"
	EventMessageSent   EventType = "message_sent"
	EventMessageFailed EventType = "message_failed"
	EventNotification  EventType = "notification"

	// Outbound live group events
	EventGroup         EventType = "group"
	EventSchedules     EventType = "schedules"
	EventAnnouncements EventType = "announcements"
	EventVotes         EventType = "votes"
	EventMenus         EventType = "menus"

	// Error events
	EventError EventType = "error"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage stamps an outbound message
func NewMessage(t EventType, payload interface{}) WSMessage {
	return WSMessage{Type: t, Payload: payload, Timestamp: time.Now()}
}

// IncomingMessage represents messages received from clients
type IncomingMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SendMessagePayload is the body of send_message
type SendMessagePayload struct {
	Content string `json:"content"`
}

// EditMessagePayload is the body of edit_message
type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// DeleteMessagePayload is the body of delete_message
type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

// MessageSentPayload confirms a persisted send
type MessageSentPayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessageFailedPayload tells the client to restore its input
type MessageFailedPayload struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// TypingPayload lists the other users currently typing
type TypingPayload struct {
	GroupID string   `json:"groupId"`
	Users   []string `json:"users"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
