package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dating-app-server/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	t.Cleanup(func() {
		// Drop tables so the shared in-memory DB starts clean per test.
		for _, table := range []string{"messages", "conversations", "users"} {
			db.Exec("DELETE FROM " + table)
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:       email,
		DisplayName: email,
		Role:        role,
		IsActive:    true,
	}
	require.NoError(t, user.SetPassword("test-password"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedPair(t *testing.T, db *gorm.DB) (client, profile *models.User) {
	t.Helper()
	client = seedUser(t, db, models.RoleClient, "client@example.com")
	profile = seedUser(t, db, models.RoleProfile, "profile@example.com")
	return client, profile
}

func newTestConversation(t *testing.T, db *gorm.DB, client, profile *models.User) *models.Conversation {
	t.Helper()
	store := NewConversationStore(db)
	conv, _, err := store.GetOrCreate(client.ID, profile.ID)
	require.NoError(t, err)
	return conv
}

// recordingBridge captures notification hand-offs for assertions.
type recordingBridge struct {
	mu    sync.Mutex
	calls []bridgeCall
}

type bridgeCall struct {
	UserID string
	Kind   string
}

func (b *recordingBridge) Notify(userID, kind string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, bridgeCall{UserID: userID, Kind: kind})
	return nil
}

func newTestCore(t *testing.T, db *gorm.DB) (*Core, *recordingBridge) {
	t.Helper()
	router := NewDeliveryRouter()
	t.Cleanup(router.Close)

	store := NewConversationStore(db)
	ledger := NewMessageLedger(db, NewModerationGate())
	presence := NewPresenceTracker(db, router, store)
	bridge := &recordingBridge{}
	return NewCore(store, ledger, presence, router, bridge), bridge
}

func unreadCount(t *testing.T, db *gorm.DB, conversationID, recipientID string) int64 {
	t.Helper()
	var n int64
	err := db.Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND status IN ?",
			conversationID, recipientID,
			[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusDelivered}).
		Count(&n).Error
	require.NoError(t, err)
	return n
}
