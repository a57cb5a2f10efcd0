package chat

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dating-app-server/internal/models"
)

// recentMessageLimit is how many trailing messages GetOrCreate and GetByID
// attach to the returned conversation.
const recentMessageLimit = 50

// ConversationStore owns conversation identity, uniqueness and toggles.
// Uniqueness of the (initiator, responder) pair is enforced by the DB index,
// not by a check-then-insert pattern, so concurrent first contacts cannot
// race into duplicate rows.
type ConversationStore struct {
	DB *gorm.DB
}

// NewConversationStore creates a store bound to db.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{DB: db}
}

// ConversationSummary is one row of the conversation list surface.
type ConversationSummary struct {
	Conversation models.Conversation  `json:"conversation"`
	Counterpart  models.UserSanitized `json:"counterpart"`
	LastMessage  *models.Message      `json:"lastMessage,omitempty"`
	Unread       int                  `json:"unread"`
}

// GetOrCreate returns the unique conversation for the pair, creating it on
// first contact. Only the client role may initiate; the responder must be an
// active profile. Idempotent: an existing row is returned unchanged, with
// created reporting whether this call inserted the row.
func (s *ConversationStore) GetOrCreate(initiatorID, responderID string) (*models.Conversation, bool, error) {
	if initiatorID == responderID {
		return nil, false, validationErr("cannot start a conversation with yourself")
	}

	var initiator models.User
	if err := s.DB.First(&initiator, "id = ?", initiatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, notFoundErr("initiator %s", initiatorID)
		}
		return nil, false, err
	}
	if initiator.Role != models.RoleClient {
		return nil, false, forbiddenErr("only the client role can start conversations")
	}

	var responder models.User
	if err := s.DB.First(&responder, "id = ?", responderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, notFoundErr("responder %s", responderID)
		}
		return nil, false, err
	}
	if responder.Role != models.RoleProfile || !responder.IsActive {
		return nil, false, forbiddenErr("responder is not an active profile")
	}

	// Insert-or-ignore against the unique pair index, then read back the
	// winning row. Two concurrent first contacts end up with the same row;
	// RowsAffected tells the racers apart (only one insert lands).
	conv := models.Conversation{
		InitiatorID: initiatorID,
		ResponderID: responderID,
		IsActive:    true,
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "initiator_id"}, {Name: "responder_id"}},
		DoNothing: true,
	}).Create(&conv)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected == 1

	var out models.Conversation
	err := s.DB.Preload("Initiator").Preload("Responder").
		First(&out, "initiator_id = ? AND responder_id = ?", initiatorID, responderID).Error
	if err != nil {
		return nil, false, err
	}
	if err := s.attachRecentMessages(&out); err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// GetByID loads a conversation with its most recent messages in
// chronological order. Participants only, unless the caller is an admin.
func (s *ConversationStore) GetByID(conversationID, actingUserID string, admin bool) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Preload("Initiator").Preload("Responder").
		First(&conv, "id = ?", conversationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("conversation %s", conversationID)
		}
		return nil, err
	}
	if !admin && !conv.IsParticipant(actingUserID) {
		return nil, forbiddenErr("not a participant of this conversation")
	}
	if err := s.attachRecentMessages(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns conversation summaries ordered by most recent message
// first. The query is role dependent: clients see conversations they started,
// profiles those addressed to them, admins both seats.
func (s *ConversationStore) ListForUser(userID string, role models.Role) ([]ConversationSummary, error) {
	query := s.DB.Preload("Initiator").Preload("Responder").
		Order("last_message_at DESC")
	switch role {
	case models.RoleClient:
		query = query.Where("initiator_id = ?", userID)
	case models.RoleProfile:
		query = query.Where("responder_id = ?", userID)
	default:
		query = query.Where("initiator_id = ? OR responder_id = ?", userID, userID)
	}

	var conversations []models.Conversation
	if err := query.Find(&conversations).Error; err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{Conversation: conv}

		side, ok := conv.SideOf(userID)
		if ok {
			summary.Unread = conv.UnreadFor(side)
		}
		if conv.InitiatorID == userID {
			summary.Counterpart = conv.Responder.Sanitize()
		} else {
			summary.Counterpart = conv.Initiator.Sanitize()
		}

		var last models.Message
		err := s.DB.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").First(&last).Error
		if err == nil {
			summary.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ToggleField selects which conversation toggle to flip.
type ToggleField string

const (
	ToggleBlocked  ToggleField = "blocked"
	ToggleArchived ToggleField = "archived"
)

// Toggle sets blocked/archived for a conversation. Acting user must be a
// participant. Setting the same value again is a no-op success, not an
// error. Blocking records who blocked; unblocking clears it.
func (s *ConversationStore) Toggle(conversationID, actingUserID string, field ToggleField, value bool) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("conversation %s", conversationID)
		}
		return nil, err
	}
	if !conv.IsParticipant(actingUserID) {
		return nil, forbiddenErr("not a participant of this conversation")
	}

	updates := map[string]interface{}{}
	switch field {
	case ToggleBlocked:
		if conv.IsBlocked == value {
			return &conv, nil
		}
		updates["is_blocked"] = value
		if value {
			updates["blocked_by"] = actingUserID
		} else {
			updates["blocked_by"] = ""
		}
	case ToggleArchived:
		if conv.IsArchived == value {
			return &conv, nil
		}
		updates["is_archived"] = value
	default:
		return nil, validationErr("unknown toggle field %q", field)
	}

	if err := s.DB.Model(&conv).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListMessages pages through a conversation's history in chronological
// order. Page numbering starts at 1.
func (s *ConversationStore) ListMessages(conversationID, actingUserID string, admin bool, page, limit int) ([]models.Message, error) {
	conv, err := s.GetConversationRow(conversationID)
	if err != nil {
		return nil, err
	}
	if !admin && !conv.IsParticipant(actingUserID) {
		return nil, forbiddenErr("not a participant of this conversation")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = recentMessageLimit
	}

	var messages []models.Message
	err = s.DB.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetConversationRow fetches the bare conversation row without relations.
func (s *ConversationStore) GetConversationRow(conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("conversation %s", conversationID)
		}
		return nil, err
	}
	return &conv, nil
}

// ActiveCounterparts lists the user IDs sharing an active conversation with
// userID. Presence transitions broadcast only to these users.
func (s *ConversationStore) ActiveCounterparts(userID string) ([]string, error) {
	var conversations []models.Conversation
	err := s.DB.Where("(initiator_id = ? OR responder_id = ?) AND is_active = ?", userID, userID, true).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(conversations))
	seen := make(map[string]struct{}, len(conversations))
	for _, conv := range conversations {
		other, ok := conv.Counterpart(userID)
		if !ok {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out, nil
}

func (s *ConversationStore) attachRecentMessages(conv *models.Conversation) error {
	var recent []models.Message
	err := s.DB.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").
		Limit(recentMessageLimit).
		Find(&recent).Error
	if err != nil {
		return err
	}
	// Fetched newest-first for the limit; flip to chronological.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	conv.Messages = recent
	return nil
}
