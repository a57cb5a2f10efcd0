package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"dating-app-server/internal/chat"
	"dating-app-server/internal/middleware"
	"dating-app-server/internal/utils"
)

// ConversationHandler handles the conversation REST surface.
type ConversationHandler struct {
	Core *chat.Core
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(core *chat.Core) *ConversationHandler {
	return &ConversationHandler{Core: core}
}

// CreateConversationRequest represents the request body for first contact.
type CreateConversationRequest struct {
	ResponderID    string `json:"responderId" binding:"required,uuid"`
	InitialMessage string `json:"initialMessage"`
}

// CreateConversation resolves (or creates) the unique conversation between
// the caller and a responder, optionally sending an opening message.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	conv, err := h.Core.StartConversation(userID, req.ResponderID, req.InitialMessage)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Created(c, "Conversation ready", conv)
}

// GetConversations lists the caller's conversations, most recent first.
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	role, _ := middleware.GetUserRoleFromContext(c)

	summaries, err := h.Core.Store.ListForUser(userID, role)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Conversations fetched successfully", summaries)
}

// GetConversation returns one conversation with its recent messages.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	conv, err := h.Core.Store.GetByID(c.Param("id"), userID, middleware.IsAdmin(c))
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Conversation fetched successfully", conv)
}

// GetConversationMessages pages through a conversation's history.
func (h *ConversationHandler) GetConversationMessages(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.Core.Store.ListMessages(c.Param("id"), userID, middleware.IsAdmin(c), page, limit)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Messages fetched successfully", messages)
}

// MarkConversationRead marks all inbound messages read for the caller.
// Safe to call repeatedly and from several devices at once.
func (h *ConversationHandler) MarkConversationRead(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.Core.ReadConversation(c.Param("id"), userID); err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Conversation marked as read", nil)
}

// BlockRequest toggles the blocked flag.
type BlockRequest struct {
	Block *bool `json:"block" binding:"required"`
}

// BlockConversation blocks or unblocks a conversation for the caller.
func (h *ConversationHandler) BlockConversation(c *gin.Context) {
	var req BlockRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	conv, err := h.Core.ToggleConversation(c.Param("id"), userID, chat.ToggleBlocked, *req.Block)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Conversation updated", conv)
}

// ArchiveRequest toggles the archived flag.
type ArchiveRequest struct {
	Archive *bool `json:"archive" binding:"required"`
}

// ArchiveConversation archives or unarchives a conversation for the caller.
func (h *ConversationHandler) ArchiveConversation(c *gin.Context) {
	var req ArchiveRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	conv, err := h.Core.ToggleConversation(c.Param("id"), userID, chat.ToggleArchived, *req.Archive)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Conversation updated", conv)
}
