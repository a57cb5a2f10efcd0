package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"dating-app-server/internal/models"
)

// authTimeout bounds the handshake: a connection whose token cannot be
// verified in time is dropped before it is ever registered.
const authTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP layer; the handshake token
		// is the actual gate here.
		return true
	},
}

// ConnectionGateway authenticates incoming sockets, subscribes each device
// to its personal room plus every non-archived conversation room the user
// participates in (eager join, kept for parity with the list surface), and
// dispatches inbound protocol frames into the core.
type ConnectionGateway struct {
	DB       *gorm.DB
	Verifier IdentityVerifier
	Core     *Core
	Presence *PresenceTracker
	Router   *DeliveryRouter
}

// NewConnectionGateway wires the gateway.
func NewConnectionGateway(db *gorm.DB, verifier IdentityVerifier, core *Core, presence *PresenceTracker, router *DeliveryRouter) *ConnectionGateway {
	return &ConnectionGateway{
		DB:       db,
		Verifier: verifier,
		Core:     core,
		Presence: presence,
		Router:   router,
	}
}

// Handle is the gin handler for the websocket endpoint. The bearer token
// rides in the handshake (query param or Authorization header).
func (g *ConnectionGateway) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), authTimeout)
		identity, err := g.Verifier.VerifyToken(ctx, token)
		cancel()
		if err != nil {
			if errors.Is(err, ErrAuth) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication unavailable"})
			}
			return
		}

		var user models.User
		if err := g.DB.First(&user, "id = ?", identity.ID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := newConnection(identity.ID, ws)
		g.attach(&user, conn)
		defer g.detach(identity.ID, conn)

		g.readLoop(&user, conn, ws)
	}
}

// attach registers the device, joins its rooms and marks the user online.
func (g *ConnectionGateway) attach(user *models.User, conn *Connection) {
	g.Router.Register(conn)
	g.Router.Join(RoomUser(user.ID), conn)

	var conversations []models.Conversation
	err := g.DB.Where("initiator_id = ? OR responder_id = ?", user.ID, user.ID).
		Find(&conversations).Error
	if err != nil {
		log.Printf("gateway: eager join for %s: %v", user.ID, err)
	}
	for _, conv := range conversations {
		// Archived conversations stay muted until unarchived.
		if conv.IsArchived {
			continue
		}
		g.Router.Join(RoomConversation(conv.ID), conn)
	}

	g.Presence.MarkOnline(user)

	// Messages that landed while every device was offline get their
	// delivery receipt now.
	g.Core.AnnounceConnect(user.ID)
}

// detach unregisters the device; the last device going away marks the user
// offline. Already-committed state is never rolled back by a disconnect.
func (g *ConnectionGateway) detach(userID string, conn *Connection) {
	remaining := g.Router.Unregister(conn)
	conn.shutdown(websocket.CloseNormalClosure, "session closed")
	if remaining == 0 {
		g.Presence.MarkOffline(userID)
	}
}

func (g *ConnectionGateway) readLoop(user *models.User, conn *Connection, ws *websocket.Conn) {
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		g.Presence.Heartbeat(user.ID)

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.replyError(conn, "bad_frame", "invalid frame payload")
			continue
		}
		g.dispatch(user, conn, frame)
	}
}

func (g *ConnectionGateway) dispatch(user *models.User, conn *Connection, frame Frame) {
	switch frame.Event {
	case OpSendMessage:
		var data SendMessageData
		if !g.decode(conn, frame.Data, &data) {
			return
		}
		_, err := g.Core.SendMessage(data.ConversationID, user.ID, data.Content,
			models.ContentType(data.ContentType), data.Attachments)
		if err != nil {
			g.replyCoreError(conn, err)
		}

	case OpReadConversation:
		var data ReadData
		if !g.decode(conn, frame.Data, &data) {
			return
		}
		if err := g.Core.ReadConversation(data.ConversationID, user.ID); err != nil {
			g.replyCoreError(conn, err)
		}

	case OpReadMessage:
		var data ReadData
		if !g.decode(conn, frame.Data, &data) {
			return
		}
		if _, err := g.Core.ReadMessage(data.MessageID, user.ID); err != nil {
			g.replyCoreError(conn, err)
		}

	case OpTyping, OpStopTyping:
		var data TypingData
		if !g.decode(conn, frame.Data, &data) {
			return
		}
		// Only relay into conversations the sender belongs to.
		conv, err := g.Core.Store.GetConversationRow(data.ConversationID)
		if err != nil || !conv.IsParticipant(user.ID) {
			return
		}
		g.Core.RelayTyping(data.ConversationID, user.ID, frame.Event == OpStopTyping)

	case OpUpdateStatus:
		var data UpdateStatusData
		if !g.decode(conn, frame.Data, &data) {
			return
		}
		if err := g.Presence.SetAvailability(user, models.AvailabilityStatus(data.Status)); err != nil {
			g.replyCoreError(conn, err)
		}

	default:
		g.replyError(conn, "unsupported_op", "unknown operation "+frame.Event)
	}
}

func (g *ConnectionGateway) decode(conn *Connection, raw json.RawMessage, out interface{}) bool {
	if len(raw) == 0 {
		g.replyError(conn, "bad_frame", "missing frame data")
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		g.replyError(conn, "bad_frame", "invalid frame data")
		return false
	}
	return true
}

func (g *ConnectionGateway) replyCoreError(conn *Connection, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		g.replyError(conn, "not_found", err.Error())
	case errors.Is(err, ErrForbidden):
		g.replyError(conn, "forbidden", err.Error())
	case errors.Is(err, ErrValidation):
		g.replyError(conn, "invalid", err.Error())
	default:
		g.replyError(conn, "internal", "operation failed")
	}
}

func (g *ConnectionGateway) replyError(conn *Connection, code, message string) {
	_ = conn.SendEvent(EventError, ErrorEvent{Code: code, Message: message})
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
