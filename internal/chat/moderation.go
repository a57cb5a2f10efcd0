package chat

import (
	"errors"

	"gorm.io/gorm"

	"dating-app-server/internal/models"
)

// ModerationGate enforces block/active policy for sends. The conversation
// row is always re-read at the moment of the check instead of trusting a
// value loaded earlier in the request, so a block that lands between two
// sends fails the next send even though the racing one may slip through.
// That race is accepted and documented, not a bug.
type ModerationGate struct{}

// NewModerationGate creates the gate.
func NewModerationGate() *ModerationGate {
	return &ModerationGate{}
}

// CheckSend loads the conversation fresh on tx and applies the send
// preconditions in order: existence, participation, then active/blocked
// policy. The first failing check wins. Returns the loaded row so the
// caller reuses the same snapshot inside its transaction.
func (g *ModerationGate) CheckSend(tx *gorm.DB, conversationID, senderID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("conversation %s", conversationID)
		}
		return nil, err
	}
	if !conv.IsParticipant(senderID) {
		return nil, forbiddenErr("not a participant of this conversation")
	}
	if !conv.IsActive {
		return nil, forbiddenErr("conversation is inactive")
	}
	if conv.IsBlocked {
		return nil, forbiddenErr("conversation is blocked")
	}
	return &conv, nil
}
