package models

import (
	"time"
)

// Side identifies which seat of a conversation a participant occupies.
// A conversation always has exactly one initiator (client role) and one
// responder (profile role); every participant check resolves to one of
// these two values. Admin access is a separate capability, not a Side.
type Side int

const (
	SideInitiator Side = iota
	SideResponder
)

// Conversation represents the persistent pairing of one initiator and one
// responder. The (initiator, responder) pair is unique across all rows;
// conversations are never deleted, only deactivated.
type Conversation struct {
	BaseModel
	InitiatorID string `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:1" json:"initiatorId"`
	ResponderID string `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:2" json:"responderId"`

	IsActive   bool   `gorm:"default:true" json:"isActive"`
	IsBlocked  bool   `gorm:"default:false" json:"isBlocked"`
	BlockedBy  string `gorm:"size:36" json:"blockedBy,omitempty"`
	IsArchived bool   `gorm:"default:false" json:"isArchived"`

	UnreadInitiator int        `gorm:"default:0" json:"unreadInitiator"`
	UnreadResponder int        `gorm:"default:0" json:"unreadResponder"`
	LastMessageAt   *time.Time `gorm:"index" json:"lastMessageAt,omitempty"`

	// Relations
	Initiator User      `gorm:"foreignKey:InitiatorID" json:"initiator,omitempty"`
	Responder User      `gorm:"foreignKey:ResponderID" json:"responder,omitempty"`
	Messages  []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// SideOf resolves which seat userID occupies, if any.
func (c *Conversation) SideOf(userID string) (Side, bool) {
	switch userID {
	case c.InitiatorID:
		return SideInitiator, true
	case c.ResponderID:
		return SideResponder, true
	}
	return 0, false
}

// IsParticipant reports whether userID is one of the two participants.
func (c *Conversation) IsParticipant(userID string) bool {
	_, ok := c.SideOf(userID)
	return ok
}

// Counterpart returns the other participant's ID relative to userID.
// The second return is false when userID is not a participant.
func (c *Conversation) Counterpart(userID string) (string, bool) {
	switch userID {
	case c.InitiatorID:
		return c.ResponderID, true
	case c.ResponderID:
		return c.InitiatorID, true
	}
	return "", false
}

// UnreadFor returns the stored unread counter for the given side.
func (c *Conversation) UnreadFor(side Side) int {
	if side == SideInitiator {
		return c.UnreadInitiator
	}
	return c.UnreadResponder
}

// UnreadColumn is the DB column holding the unread counter for the given side.
// Each actor only ever touches the other side's column, so concurrent sends
// from both seats update disjoint columns.
func UnreadColumn(side Side) string {
	if side == SideInitiator {
		return "unread_initiator"
	}
	return "unread_responder"
}
