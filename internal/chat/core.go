package chat

import (
	"log"
	"sync"
	"time"

	"dating-app-server/internal/models"
)

// Core wires the messaging components into the documented control flow:
// resolve -> moderation -> atomic append -> fan-out -> best-effort notify.
// Both the REST controller and the socket gateway drive their mutations
// through it.
type Core struct {
	Store    *ConversationStore
	Ledger   *MessageLedger
	Presence *PresenceTracker
	Router   *DeliveryRouter
	Bridge   NotificationBridge

	// Per-conversation locks serialize persist+emit so events inside one
	// conversation go out in the order their transactions commit. Locks for
	// different conversations are independent; a slow write in one
	// conversation never reorders or stalls another.
	seq sync.Map // conversation ID -> *sync.Mutex
}

// NewCore assembles the messaging core.
func NewCore(store *ConversationStore, ledger *MessageLedger, presence *PresenceTracker, router *DeliveryRouter, bridge NotificationBridge) *Core {
	return &Core{
		Store:    store,
		Ledger:   ledger,
		Presence: presence,
		Router:   router,
		Bridge:   bridge,
	}
}

func (c *Core) convLock(conversationID string) *sync.Mutex {
	v, _ := c.seq.LoadOrStore(conversationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// StartConversation resolves (or creates) the unique pair conversation and,
// when an initial message is supplied, sends it through the normal path. On
// genuine first contact an offline responder gets a notification hand-off.
func (c *Core) StartConversation(initiatorID, responderID, initialMessage string) (*models.Conversation, error) {
	conv, created, err := c.Store.GetOrCreate(initiatorID, responderID)
	if err != nil {
		return nil, err
	}

	if created && !c.Router.HasUser(conv.ResponderID) {
		c.notify(conv.ResponderID, NotifyConversation, conv)
	}

	if initialMessage != "" {
		if _, err := c.SendMessage(conv.ID, initiatorID, initialMessage, models.ContentTypeText, ""); err != nil {
			return nil, err
		}
		// Re-read so the response reflects the message and counters.
		return c.Store.GetByID(conv.ID, initiatorID, false)
	}
	return conv, nil
}

// SendMessage runs the full send pipeline. On success the message is
// emitted to the recipient's personal room and the conversation room; if
// the recipient holds a live connection right now the message is also
// promoted to delivered and the sender told so. Notification hand-off is
// fire-and-forget.
func (c *Core) SendMessage(conversationID, senderID, content string, contentType models.ContentType, attachments string) (*models.Message, error) {
	lock := c.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.Ledger.Send(conversationID, senderID, content, contentType, attachments)
	if err != nil {
		return nil, err
	}

	c.Router.Emit(RoomUser(msg.RecipientID), EventMessageReceived, MessageEvent{
		Message:        *msg,
		ConversationID: conversationID,
	})
	c.Router.Emit(RoomUser(msg.SenderID), EventMessageSent, MessageEvent{
		Message:        *msg,
		ConversationID: conversationID,
	})
	c.emitConversationUpdated(conversationID)

	if c.Router.HasUser(msg.RecipientID) {
		delivered, err := c.Ledger.MarkDelivered(msg.ID)
		if err != nil {
			log.Printf("chat: mark delivered %s: %v", msg.ID, err)
		} else {
			msg = delivered
			c.Router.Emit(RoomUser(msg.SenderID), EventMessageDelivered, MessageEvent{
				Message:        *msg,
				ConversationID: conversationID,
			})
		}
	} else {
		c.notify(msg.RecipientID, NotifyNewMessage, msg)
	}

	return msg, nil
}

// AnnounceConnect promotes the user's pending inbound messages to
// delivered now that a live connection exists, and tells each sender.
func (c *Core) AnnounceConnect(userID string) {
	delivered, err := c.Ledger.DeliverPending(userID)
	if err != nil {
		log.Printf("chat: deliver pending for %s: %v", userID, err)
		return
	}
	for _, msg := range delivered {
		c.Router.Emit(RoomUser(msg.SenderID), EventMessageDelivered, MessageEvent{
			Message:        msg,
			ConversationID: msg.ConversationID,
		})
	}
}

// ReadConversation bulk-marks the reader's inbound messages read, then
// tells the conversation room. Idempotent all the way down.
func (c *Core) ReadConversation(conversationID, readerID string) error {
	lock := c.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	readAt, err := c.Ledger.MarkRead(conversationID, readerID)
	if err != nil {
		return err
	}

	c.Router.Emit(RoomConversation(conversationID), EventMessageRead, ReadEvent{
		ConversationID: conversationID,
		ReaderID:       readerID,
		ReadAt:         readAt,
	})
	c.emitConversationUpdated(conversationID)
	return nil
}

// ReadMessage marks one message read (socket read_message op). The
// conversation is resolved up front so the persist runs under the same lock
// as the emit, like every other pipeline here.
func (c *Core) ReadMessage(messageID, readerID string) (*models.Message, error) {
	conversationID, err := c.Ledger.ConversationOf(messageID)
	if err != nil {
		return nil, err
	}

	lock := c.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.Ledger.MarkMessageRead(messageID, readerID)
	if err != nil {
		return nil, err
	}

	readAt := time.Now()
	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}
	c.Router.Emit(RoomConversation(msg.ConversationID), EventMessageRead, ReadEvent{
		ConversationID: msg.ConversationID,
		ReaderID:       readerID,
		ReadAt:         readAt,
	})
	return msg, nil
}

// ToggleConversation flips blocked/archived and announces the change to
// both participants' devices. Archiving mutes the conversation room: live
// devices leave it and skip its read/typing traffic until it is unarchived
// (personal-room events such as message_received keep flowing).
func (c *Core) ToggleConversation(conversationID, actingUserID string, field ToggleField, value bool) (*models.Conversation, error) {
	lock := c.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := c.Store.Toggle(conversationID, actingUserID, field, value)
	if err != nil {
		return nil, err
	}

	room := RoomConversation(conversationID)
	if field == ToggleArchived && !value {
		c.Router.JoinUser(room, conv.InitiatorID)
		c.Router.JoinUser(room, conv.ResponderID)
	}
	c.Router.Emit(room, EventConversationUpdated, ConversationEvent{Conversation: *conv})
	if field == ToggleArchived && value {
		c.Router.LeaveUser(room, conv.InitiatorID)
		c.Router.LeaveUser(room, conv.ResponderID)
	}
	return conv, nil
}

// DeleteMessage applies a per-side delete and reports the new state to the
// conversation room once the tombstone lands. Persist and emit share the
// conversation lock.
func (c *Core) DeleteMessage(messageID, userID string) (*models.Message, error) {
	conversationID, err := c.Ledger.ConversationOf(messageID)
	if err != nil {
		return nil, err
	}

	lock := c.convLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.Ledger.DeleteForUser(messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.MessageStatusDeleted {
		c.Router.Emit(RoomConversation(conversationID), EventMessageDeleted, MessageEvent{
			Message:        *msg,
			ConversationID: conversationID,
		})
	}
	return msg, nil
}

// RelayTyping forwards an ephemeral typing indicator to the conversation
// room, excluding every device of the sender. Nothing is persisted and the
// state machine is untouched.
func (c *Core) RelayTyping(conversationID, userID string, stopped bool) {
	event := EventUserTyping
	if stopped {
		event = EventUserStopTyping
	}
	c.Router.EmitExcept(RoomConversation(conversationID), event, TypingEvent{
		ConversationID: conversationID,
		UserID:         userID,
	}, userID)
}

func (c *Core) emitConversationUpdated(conversationID string) {
	conv, err := c.Store.GetConversationRow(conversationID)
	if err != nil {
		log.Printf("chat: load conversation %s for update event: %v", conversationID, err)
		return
	}
	c.Router.Emit(RoomConversation(conversationID), EventConversationUpdated, ConversationEvent{Conversation: *conv})
}

func (c *Core) notify(userID, kind string, payload interface{}) {
	if c.Bridge == nil {
		return
	}
	if err := c.Bridge.Notify(userID, kind, payload); err != nil {
		// Swallowed unconditionally: an outage here must not surface to
		// the sender or fail the send.
		log.Printf("chat: notify %s (%s): %v", userID, kind, err)
	}
}
