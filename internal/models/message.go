package models

import (
	"time"
)

// MessageStatus represents the delivery status of a message
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusDeleted   MessageStatus = "deleted"
)

// ContentType enumerates supported message payload kinds.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
)

// Message represents one unit of content inside a conversation. Status only
// moves forward (sent -> delivered -> read); deleted is an absorbing state
// reached once both per-side delete flags are set. Rows are never removed,
// deletion is a soft tombstone.
type Message struct {
	BaseModel
	ConversationID string        `gorm:"size:36;index;not null" json:"conversationId"`
	SenderID       string        `gorm:"size:36;index;not null" json:"senderId"`
	RecipientID    string        `gorm:"size:36;index;not null" json:"recipientId"`
	Content        string        `gorm:"type:text" json:"content"`
	ContentType    ContentType   `gorm:"size:20;default:'text'" json:"contentType"`
	Attachments    string        `gorm:"type:text" json:"attachments,omitempty"`
	Status         MessageStatus `gorm:"size:20;default:'sent';index" json:"status"`
	ReadAt         *time.Time    `json:"readAt,omitempty"`

	DeletedBySender    bool `gorm:"default:false" json:"deletedBySender"`
	DeletedByRecipient bool `gorm:"default:false" json:"deletedByRecipient"`

	// Relations
	Sender    User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

// statusRank orders the forward-only delivery states. Deleted sits outside
// the rank order because it is reachable from any state.
func statusRank(s MessageStatus) int {
	switch s {
	case MessageStatusSent:
		return 0
	case MessageStatusDelivered:
		return 1
	case MessageStatusRead:
		return 2
	}
	return 3
}

// CanTransition reports whether moving from into to respects monotonicity.
func CanTransition(from, to MessageStatus) bool {
	if from == MessageStatusDeleted {
		return false
	}
	if to == MessageStatusDeleted {
		return true
	}
	return statusRank(to) > statusRank(from)
}
