package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10 // inbound frame cap
	sendBufferSize = 64
)

// ErrConnClosed is returned by Send once the socket has been torn down.
var ErrConnClosed = errors.New("connection closed")

// Connection is one live device socket for a user. A user may hold several
// at once (phone, tab, second tab); each gets its own ID and write loop.
// Outbound writes are serialized through a buffered channel so emitters
// never touch the websocket directly.
type Connection struct {
	ID     string
	UserID string

	ws      *websocket.Conn
	outbox  chan []byte
	done    chan struct{}
	closing sync.Once
}

func newConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		outbox: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Connection) start() {
	go c.writeLoop()
}

// Send enqueues raw payload bytes. A full outbox means the client cannot
// keep up; the connection is dropped rather than letting the queue grow.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case c.outbox <- payload:
		return nil
	default:
		c.shutdown(websocket.CloseGoingAway, "send buffer full")
		return ErrConnClosed
	}
}

// SendEvent encodes and enqueues a protocol frame for this device only.
func (c *Connection) SendEvent(event string, data interface{}) error {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

func (c *Connection) shutdown(code int, reason string) {
	c.closing.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}
