package chat

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"dating-app-server/internal/models"
)

// PresenceTracker derives online state from live connection counts, so a
// second device connecting never clobbers the first device's session.
// Explicit availability (profile role) rides alongside the derived state.
// Presence is held in memory; only the last-seen timestamp and the last
// explicit availability are written through to the user row as the offline
// fallback.
type PresenceTracker struct {
	DB     *gorm.DB
	Router *DeliveryRouter
	Store  *ConversationStore

	mu      sync.Mutex
	entries map[string]*presenceEntry
}

type presenceEntry struct {
	connections  int
	lastActivity time.Time
	availability models.AvailabilityStatus
	overridden   bool // explicit update_status since last connect
}

// NewPresenceTracker creates a tracker emitting through router.
func NewPresenceTracker(db *gorm.DB, router *DeliveryRouter, store *ConversationStore) *PresenceTracker {
	return &PresenceTracker{
		DB:      db,
		Router:  router,
		Store:   store,
		entries: make(map[string]*presenceEntry),
	}
}

// MarkOnline counts one more connection for the user. On the 0 -> 1
// transition the new online state is broadcast to counterparts.
func (p *PresenceTracker) MarkOnline(user *models.User) {
	p.mu.Lock()
	entry := p.entries[user.ID]
	if entry == nil {
		entry = &presenceEntry{availability: user.Availability}
		p.entries[user.ID] = entry
	}
	entry.connections++
	entry.lastActivity = time.Now()
	first := entry.connections == 1
	status := entry.availability
	p.mu.Unlock()

	if first {
		p.broadcastPresence(user.ID, true, status)
	}
}

// MarkOffline counts one connection down. On the 1 -> 0 transition the
// offline state is broadcast and availability falls back to unavailable
// unless the user explicitly overrode it during the session.
func (p *PresenceTracker) MarkOffline(userID string) {
	p.mu.Lock()
	entry := p.entries[userID]
	if entry == nil {
		p.mu.Unlock()
		return
	}
	entry.connections--
	if entry.connections > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.entries, userID)
	status := entry.availability
	if !entry.overridden {
		status = models.AvailabilityUnavailable
	}
	last := entry.lastActivity
	p.mu.Unlock()

	// Persist the offline fallback so the REST surface shows the last
	// known state for disconnected users.
	err := p.DB.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"availability": status,
			"last_seen_at": last,
		}).Error
	if err != nil {
		log.Printf("presence: persist offline state for %s: %v", userID, err)
	}

	p.broadcastPresence(userID, false, status)
}

// Heartbeat refreshes last-activity for the user. Called on every inbound
// socket frame.
func (p *PresenceTracker) Heartbeat(userID string) {
	p.mu.Lock()
	if entry := p.entries[userID]; entry != nil {
		entry.lastActivity = time.Now()
	}
	p.mu.Unlock()
}

// IsOnline reports whether the user has at least one live connection.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := p.entries[userID]
	return entry != nil && entry.connections > 0
}

// LastActivity returns the most recent activity timestamp, if tracked.
func (p *PresenceTracker) LastActivity(userID string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := p.entries[userID]
	if entry == nil {
		return time.Time{}, false
	}
	return entry.lastActivity, true
}

// SetAvailability records an explicit availability change for a profile
// user and broadcasts it to counterparts. The override survives until full
// disconnect.
func (p *PresenceTracker) SetAvailability(user *models.User, status models.AvailabilityStatus) error {
	if user.Role != models.RoleProfile {
		return forbiddenErr("only profile users set availability")
	}
	if !status.Valid() {
		return validationErr("unknown availability status %q", status)
	}

	if err := p.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("availability", status).Error; err != nil {
		return err
	}

	p.mu.Lock()
	online := false
	if entry := p.entries[user.ID]; entry != nil {
		entry.availability = status
		entry.overridden = true
		online = entry.connections > 0
	}
	p.mu.Unlock()

	p.broadcastPresence(user.ID, online, status)
	return nil
}

// broadcastPresence notifies only users sharing an active conversation,
// never the whole connected population.
func (p *PresenceTracker) broadcastPresence(userID string, online bool, status models.AvailabilityStatus) {
	counterparts, err := p.Store.ActiveCounterparts(userID)
	if err != nil {
		log.Printf("presence: list counterparts for %s: %v", userID, err)
		return
	}
	event := StatusEvent{UserID: userID, IsOnline: online, Status: status}
	for _, other := range counterparts {
		p.Router.Emit(RoomUser(other), EventProfileStatusChanged, event)
	}
}
