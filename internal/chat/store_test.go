package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dating-app-server/internal/models"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	store := NewConversationStore(db)

	first, created, err := store.GetOrCreate(client.ID, profile.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.True(t, created)
	assert.True(t, first.IsActive)

	second, created, err := store.GetOrCreate(client.ID, profile.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateConcurrentFirstContact(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	store := NewConversationStore(db)

	// Two devices race through first contact; the unique pair index makes
	// exactly one insert land and both callers see the same row.
	results := make(chan *models.Conversation, 2)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, _, err := store.GetOrCreate(client.ID, profile.ID)
			results <- conv
			errs <- err
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	var ids []string
	for conv := range results {
		require.NotNil(t, conv)
		ids = append(ids, conv.ID)
	}
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])

	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateValidatesRoles(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	store := NewConversationStore(db)

	// Only the client role initiates.
	_, _, err := store.GetOrCreate(profile.ID, client.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Responder must exist.
	_, _, err = store.GetOrCreate(client.ID, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	// Responder must be an active profile.
	inactive := seedUser(t, db, models.RoleProfile, "inactive@example.com")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	_, _, err = store.GetOrCreate(client.ID, inactive.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// No self conversations.
	_, _, err = store.GetOrCreate(client.ID, client.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToggleBlockedRecordsActor(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	store := NewConversationStore(db)

	_, err := store.Toggle(conv.ID, client.ID, ToggleBlocked, true)
	require.NoError(t, err)

	var loaded models.Conversation
	require.NoError(t, db.First(&loaded, "id = ?", conv.ID).Error)
	assert.True(t, loaded.IsBlocked)
	assert.Equal(t, client.ID, loaded.BlockedBy)

	// Re-applying the same state is a quiet no-op.
	_, err = store.Toggle(conv.ID, client.ID, ToggleBlocked, true)
	require.NoError(t, err)

	_, err = store.Toggle(conv.ID, profile.ID, ToggleBlocked, false)
	require.NoError(t, err)
	require.NoError(t, db.First(&loaded, "id = ?", conv.ID).Error)
	assert.False(t, loaded.IsBlocked)
	assert.Empty(t, loaded.BlockedBy)
}

func TestToggleRequiresParticipant(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)
	stranger := seedUser(t, db, models.RoleClient, "stranger@example.com")
	store := NewConversationStore(db)

	_, err := store.Toggle(conv.ID, stranger.ID, ToggleArchived, true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = store.Toggle("00000000-0000-0000-0000-000000000000", client.ID, ToggleArchived, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListForUserCarriesCounterpartAndUnread(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)

	ledger := NewMessageLedger(db, NewModerationGate())
	_, err := ledger.Send(conv.ID, client.ID, "hello there", models.ContentTypeText, "")
	require.NoError(t, err)
	_, err = ledger.Send(conv.ID, client.ID, "still there?", models.ContentTypeText, "")
	require.NoError(t, err)

	store := NewConversationStore(db)
	forProfile, err := store.ListForUser(profile.ID, models.RoleProfile)
	require.NoError(t, err)
	require.Len(t, forProfile, 1)
	assert.Equal(t, client.ID, forProfile[0].Counterpart.ID)
	assert.Equal(t, 2, forProfile[0].Unread)
	require.NotNil(t, forProfile[0].LastMessage)
	assert.Equal(t, "still there?", forProfile[0].LastMessage.Content)

	forClient, err := store.ListForUser(client.ID, models.RoleClient)
	require.NoError(t, err)
	require.Len(t, forClient, 1)
	assert.Equal(t, profile.ID, forClient[0].Counterpart.ID)
	assert.Equal(t, 0, forClient[0].Unread)
}

func TestGetByIDReturnsChronologicalMessages(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)

	ledger := NewMessageLedger(db, NewModerationGate())
	for _, text := range []string{"one", "two", "three"} {
		_, err := ledger.Send(conv.ID, client.ID, text, models.ContentTypeText, "")
		require.NoError(t, err)
	}

	store := NewConversationStore(db)
	loaded, err := store.GetByID(conv.ID, profile.ID, false)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, "one", loaded.Messages[0].Content)
	assert.Equal(t, "three", loaded.Messages[2].Content)

	// Outsiders are rejected, admins pass.
	stranger := seedUser(t, db, models.RoleClient, "other@example.com")
	_, err = store.GetByID(conv.ID, stranger.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := seedUser(t, db, models.RoleAdmin, "admin@example.com")
	_, err = store.GetByID(conv.ID, admin.ID, true)
	assert.NoError(t, err)
}

func TestListMessagesPaging(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	conv := newTestConversation(t, db, client, profile)

	ledger := NewMessageLedger(db, NewModerationGate())
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		_, err := ledger.Send(conv.ID, client.ID, text, models.ContentTypeText, "")
		require.NoError(t, err)
	}

	store := NewConversationStore(db)
	page1, err := store.ListMessages(conv.ID, client.ID, false, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a", page1[0].Content)

	page3, err := store.ListMessages(conv.ID, client.ID, false, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "e", page3[0].Content)
}

func TestActiveCounterparts(t *testing.T) {
	db := openTestDB(t)
	client, profile := seedPair(t, db)
	newTestConversation(t, db, client, profile)

	store := NewConversationStore(db)
	counterparts, err := store.ActiveCounterparts(client.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{profile.ID}, counterparts)

	counterparts, err = store.ActiveCounterparts(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{client.ID}, counterparts)
}
