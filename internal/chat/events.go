package chat

import (
	"encoding/json"
	"time"

	"dating-app-server/internal/models"
)

// Server-to-client event names.
const (
	EventMessageReceived      = "message_received"
	EventMessageSent          = "message_sent"
	EventMessageDelivered     = "message_delivered"
	EventMessageRead          = "message_read"
	EventMessageDeleted       = "message_deleted"
	EventConversationUpdated  = "conversation_updated"
	EventUserTyping           = "user_typing"
	EventUserStopTyping       = "user_stop_typing"
	EventProfileStatusChanged = "profile_status_changed"
	EventError                = "error"
)

// Client-to-server operation names.
const (
	OpSendMessage      = "send_message"
	OpReadMessage      = "read_message"
	OpReadConversation = "read_conversation"
	OpTyping           = "typing"
	OpStopTyping       = "stop_typing"
	OpUpdateStatus     = "update_status"
)

// Room naming. Every connection joins the user's personal room; conversation
// rooms fan out to both participants' devices.
func RoomUser(userID string) string {
	return "user:" + userID
}

func RoomConversation(conversationID string) string {
	return "conversation:" + conversationID
}

// Frame is the wire envelope for both directions of the socket protocol.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessageData is the client payload for send_message.
type SendMessageData struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	ContentType    string `json:"contentType,omitempty"`
	Attachments    string `json:"attachments,omitempty"`
}

// ReadData addresses read_message / read_conversation operations.
type ReadData struct {
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}

// TypingData addresses typing / stop_typing relays.
type TypingData struct {
	ConversationID string `json:"conversationId"`
}

// UpdateStatusData carries an explicit availability change (profile role only).
type UpdateStatusData struct {
	Status string `json:"status"`
}

// MessageEvent is the payload for message_* events.
type MessageEvent struct {
	Message        models.Message `json:"message"`
	ConversationID string         `json:"conversationId"`
}

// ConversationEvent is the payload for conversation_updated.
type ConversationEvent struct {
	Conversation models.Conversation `json:"conversation"`
}

// ReadEvent is the payload for message_read.
type ReadEvent struct {
	ConversationID string    `json:"conversationId"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
}

// TypingEvent is the payload for user_typing / user_stop_typing.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// StatusEvent is the payload for profile_status_changed.
type StatusEvent struct {
	UserID   string                    `json:"userId"`
	IsOnline bool                      `json:"isOnline"`
	Status   models.AvailabilityStatus `json:"status"`
}

// ErrorEvent is the payload for error frames sent back to a single client.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeFrame marshals an event with its payload into wire bytes.
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
