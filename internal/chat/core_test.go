package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dating-app-server/internal/models"
)

func TestStartConversationWithInitialMessage(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	core, _ := newTestCore(t, db)

	conv, err := core.StartConversation(client.ID, profile.ID, "Hola")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Hola", conv.Messages[0].Content)
	assert.Equal(t, models.MessageStatusSent, conv.Messages[0].Status)
	assert.Equal(t, 1, conv.UnreadResponder)

	// First contact again resolves to the same conversation.
	again, err := core.StartConversation(client.ID, profile.ID, "")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestSendMessageNotifiesOfflineRecipient(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	core, bridge := newTestCore(t, db)

	msg, err := core.SendMessage(conv.ID, client.ID, "anyone home?", models.ContentTypeText, "")
	require.NoError(t, err)

	// No live connection: message stays sent and the bridge is handed the
	// notification instead.
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	require.Len(t, bridge.calls, 1)
	assert.Equal(t, profile.ID, bridge.calls[0].UserID)
	assert.Equal(t, NotifyNewMessage, bridge.calls[0].Kind)
}

func TestSendMessageSurvivesBridgeFailure(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)

	router := NewDeliveryRouter()
	t.Cleanup(router.Close)
	store := NewConversationStore(db)
	ledger := NewMessageLedger(db, NewModerationGate())
	presence := NewPresenceTracker(db, router, store)
	core := NewCore(store, ledger, presence, router, failingBridge{})

	// A notification outage must never surface to the sender.
	msg, err := core.SendMessage(conv.ID, client.ID, "still works", models.ContentTypeText, "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
}

type failingBridge struct{}

func (failingBridge) Notify(userID, kind string, payload interface{}) error {
	return assert.AnError
}

func TestConcurrentReadsLeaveCounterAtZero(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	core, _ := newTestCore(t, db)

	for i := 0; i < 4; i++ {
		_, err := core.SendMessage(conv.ID, client.ID, "msg", models.ContentTypeText, "")
		require.NoError(t, err)
	}

	// Two devices of the same user read at the same instant.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = core.ReadConversation(conv.ID, profile.ID)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var loaded models.Conversation
	require.NoError(t, db.First(&loaded, "id = ?", conv.ID).Error)
	assert.Equal(t, 0, loaded.UnreadResponder)
}

func TestToggleThenSendRoundTrip(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	core, _ := newTestCore(t, db)

	_, err := core.ToggleConversation(conv.ID, client.ID, ToggleBlocked, true)
	require.NoError(t, err)

	_, err = core.SendMessage(conv.ID, profile.ID, "blocked?", models.ContentTypeText, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = core.ToggleConversation(conv.ID, client.ID, ToggleBlocked, false)
	require.NoError(t, err)

	_, err = core.SendMessage(conv.ID, profile.ID, "unblocked", models.ContentTypeText, "")
	assert.NoError(t, err)
}

func TestFirstContactNotifiesOfflineResponder(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	core, bridge := newTestCore(t, db)

	_, err := core.StartConversation(client.ID, profile.ID, "")
	require.NoError(t, err)
	require.Len(t, bridge.calls, 1)
	assert.Equal(t, profile.ID, bridge.calls[0].UserID)
	assert.Equal(t, NotifyConversation, bridge.calls[0].Kind)

	// Resolving the existing pair again is not a first contact.
	_, err = core.StartConversation(client.ID, profile.ID, "")
	require.NoError(t, err)
	assert.Len(t, bridge.calls, 1)
}

func TestConcurrentSendsAndMessageReads(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	core, _ := newTestCore(t, db)

	early := make([]*models.Message, 5)
	for i := range early {
		msg, err := core.SendMessage(conv.ID, client.ID, "early", models.ContentTypeText, "")
		require.NoError(t, err)
		early[i] = msg
	}

	// Per-message reads race fresh sends on the same conversation. Both
	// paths persist and emit under the conversation lock, so every call
	// succeeds and the counters reconcile exactly.
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for _, msg := range early {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := core.ReadMessage(id, profile.ID)
			errs <- err
		}(msg.ID)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := core.SendMessage(conv.ID, client.ID, "late", models.ContentTypeText, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var loaded models.Conversation
	require.NoError(t, db.First(&loaded, "id = ?", conv.ID).Error)
	assert.Equal(t, 5, loaded.UnreadResponder)

	var readCount int64
	require.NoError(t, db.Model(&models.Message{}).
		Where("conversation_id = ? AND status = ?", conv.ID, models.MessageStatusRead).
		Count(&readCount).Error)
	assert.EqualValues(t, 5, readCount)
}

func TestMessageOpsOnUnknownMessage(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	newTestConversation(t, db, client, profile)
	core, _ := newTestCore(t, db)

	_, err := core.ReadMessage("00000000-0000-0000-0000-000000000000", profile.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = core.DeleteMessage("00000000-0000-0000-0000-000000000000", client.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMessageThroughCore(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	core, _ := newTestCore(t, db)

	msg, err := core.SendMessage(conv.ID, client.ID, "temp", models.ContentTypeText, "")
	require.NoError(t, err)

	_, err = core.DeleteMessage(msg.ID, client.ID)
	require.NoError(t, err)
	final, err := core.DeleteMessage(msg.ID, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDeleted, final.Status)
}
