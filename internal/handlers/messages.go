package handlers

import (
	"github.com/gin-gonic/gin"

	"dating-app-server/internal/chat"
	"dating-app-server/internal/middleware"
	"dating-app-server/internal/models"
	"dating-app-server/internal/utils"
)

// MessageHandler handles the message REST surface.
type MessageHandler struct {
	Core *chat.Core
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(core *chat.Core) *MessageHandler {
	return &MessageHandler{Core: core}
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid"`
	Content        string `json:"content"`
	ContentType    string `json:"contentType"`
	Attachments    string `json:"attachments"`
}

// SendMessage appends a message to a conversation. The recipient is always
// the other participant; it is never taken from the request.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	msg, err := h.Core.SendMessage(req.ConversationID, userID, req.Content,
		models.ContentType(req.ContentType), req.Attachments)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Created(c, "Message sent successfully", msg)
}

// DeleteMessage applies the caller's side of a soft delete. The row becomes
// a tombstone only once both parties have deleted it.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	msg, err := h.Core.DeleteMessage(c.Param("messageId"), userID)
	if err != nil {
		utils.FromError(c, err)
		return
	}

	utils.Success(c, "Message deleted", msg)
}
