package chat

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"dating-app-server/internal/models"
)

const maxContentLength = 4000

// MessageLedger owns message creation and the status state machine
// (sent -> delivered -> read, with deleted as an absorbing state once both
// sides have deleted). Every mutation that touches a message status and a
// conversation counter runs in one transaction so neither can be observed
// without the other.
type MessageLedger struct {
	DB   *gorm.DB
	Gate *ModerationGate
}

// NewMessageLedger creates a ledger bound to db with the given gate.
func NewMessageLedger(db *gorm.DB, gate *ModerationGate) *MessageLedger {
	return &MessageLedger{DB: db, Gate: gate}
}

// Send validates preconditions in order (missing conversation, sender not a
// participant, blocked/inactive conversation, malformed content) and then
// atomically creates the message, bumps lastMessageAt and increments the
// recipient's unread counter. The recipient is always computed as the other
// participant, never taken from the caller.
func (l *MessageLedger) Send(conversationID, senderID, content string, contentType models.ContentType, attachments string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if contentType == "" {
		contentType = models.ContentTypeText
	}

	var created models.Message
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		conv, err := l.Gate.CheckSend(tx, conversationID, senderID)
		if err != nil {
			return err
		}

		if content == "" && attachments == "" {
			return validationErr("message content is required")
		}
		if len(content) > maxContentLength {
			return validationErr("message content exceeds %d characters", maxContentLength)
		}
		switch contentType {
		case models.ContentTypeText, models.ContentTypeImage, models.ContentTypeAudio:
		default:
			return validationErr("unknown content type %q", contentType)
		}

		recipientID, _ := conv.Counterpart(senderID)
		recipientSide, _ := conv.SideOf(recipientID)

		created = models.Message{
			ConversationID: conv.ID,
			SenderID:       senderID,
			RecipientID:    recipientID,
			Content:        content,
			ContentType:    contentType,
			Attachments:    attachments,
			Status:         models.MessageStatusSent,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		col := models.UnreadColumn(recipientSide)
		updates := map[string]interface{}{
			"last_message_at": time.Now(),
		}
		updates[col] = gorm.Expr(col+" + ?", 1)
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ConversationOf resolves which conversation a message belongs to. Used by
// callers that need the conversation before they mutate the message.
func (l *MessageLedger) ConversationOf(messageID string) (string, error) {
	var msg models.Message
	if err := l.DB.Select("id", "conversation_id").First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFoundErr("message %s", messageID)
		}
		return "", err
	}
	return msg.ConversationID, nil
}

// MarkDelivered moves a message from sent to delivered. Any other starting
// state makes the call a no-op, never an error, so re-invocation and races
// with MarkRead are harmless.
func (l *MessageLedger) MarkDelivered(messageID string) (*models.Message, error) {
	var msg models.Message
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("message %s", messageID)
			}
			return err
		}
		if msg.Status != models.MessageStatusSent {
			return nil
		}
		msg.Status = models.MessageStatusDelivered
		return tx.Model(&msg).
			Where("status = ?", models.MessageStatusSent).
			Update("status", models.MessageStatusDelivered).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeliverPending promotes every sent message addressed to the user to
// delivered. Invoked when the user gains a live connection, so messages
// persisted while they were offline pick up their delivery receipt.
// Counters are untouched: delivered messages are still unread.
func (l *MessageLedger) DeliverPending(userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("recipient_id = ? AND status = ?", userID, models.MessageStatusSent).
			Find(&msgs).Error
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		ids := make([]string, len(msgs))
		for i := range msgs {
			ids[i] = msgs[i].ID
		}
		return tx.Model(&models.Message{}).
			Where("id IN ? AND status = ?", ids, models.MessageStatusSent).
			Update("status", models.MessageStatusDelivered).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Status = models.MessageStatusDelivered
	}
	return msgs, nil
}

// MarkRead transitions every unread inbound message for the reader to read
// and resets the reader's unread counter to zero in the same transaction.
// The reset is an absolute write, not a decrement, so two devices racing
// through here leave the counter at exactly zero.
func (l *MessageLedger) MarkRead(conversationID, readerID string) (time.Time, error) {
	now := time.Now()
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("conversation %s", conversationID)
			}
			return err
		}
		side, ok := conv.SideOf(readerID)
		if !ok {
			return forbiddenErr("not a participant of this conversation")
		}

		err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND recipient_id = ? AND status IN ?",
				conversationID, readerID,
				[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusDelivered}).
			Updates(map[string]interface{}{
				"status":  models.MessageStatusRead,
				"read_at": now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update(models.UnreadColumn(side), 0).Error
	})
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// MarkMessageRead is the single-message variant used by the read_message
// socket op. Monotonicity holds: an already-read message stays read.
func (l *MessageLedger) MarkMessageRead(messageID, readerID string) (*models.Message, error) {
	var msg models.Message
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("message %s", messageID)
			}
			return err
		}
		if msg.RecipientID != readerID {
			return forbiddenErr("only the recipient can mark a message read")
		}
		if !models.CanTransition(msg.Status, models.MessageStatusRead) {
			return nil
		}

		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return err
		}
		side, _ := conv.SideOf(readerID)

		now := time.Now()
		// Conditional write: only the invocation that actually flips the
		// status decrements the counter, so a racing duplicate is a no-op.
		res := tx.Model(&models.Message{}).
			Where("id = ? AND status IN ?", msg.ID,
				[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusDelivered}).
			Updates(map[string]interface{}{
				"status":  models.MessageStatusRead,
				"read_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		msg.Status = models.MessageStatusRead
		msg.ReadAt = &now

		return tx.Model(&models.Conversation{}).
			Where("id = ? AND "+models.UnreadColumn(side)+" > 0", conv.ID).
			Update(models.UnreadColumn(side), gorm.Expr(models.UnreadColumn(side)+" - ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteForUser flips the caller's delete flag on the message. Once both
// flags are set the message becomes a tombstone (status deleted, reachable
// from any prior state). Either side alone only hides their copy.
func (l *MessageLedger) DeleteForUser(messageID, userID string) (*models.Message, error) {
	var msg models.Message
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("message %s", messageID)
			}
			return err
		}

		updates := map[string]interface{}{}
		switch userID {
		case msg.SenderID:
			if !msg.DeletedBySender {
				msg.DeletedBySender = true
				updates["deleted_by_sender"] = true
			}
		case msg.RecipientID:
			if !msg.DeletedByRecipient {
				msg.DeletedByRecipient = true
				updates["deleted_by_recipient"] = true
			}
		default:
			return forbiddenErr("not a party to this message")
		}

		if msg.DeletedBySender && msg.DeletedByRecipient && msg.Status != models.MessageStatusDeleted {
			msg.Status = models.MessageStatusDeleted
			updates["status"] = models.MessageStatusDeleted
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Message{}).Where("id = ?", msg.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
