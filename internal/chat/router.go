package chat

import (
	"sync"
)

// DeliveryRouter is the room-based fan-out layer. Connections subscribe to
// named rooms (the user's personal room plus one room per conversation);
// emitting to a room writes to every subscribed device.
//
// The router is an explicit instance constructed at startup and passed to
// every component that emits. It owns connection registration state and is
// torn down with Close; there is no package-level live instance.
type DeliveryRouter struct {
	mu        sync.RWMutex
	conns     map[string]*Connection            // connection ID -> connection
	userConns map[string]map[string]*Connection // user ID -> connection ID -> connection
	rooms     map[string]map[string]*Connection // room -> connection ID -> connection
	joined    map[string]map[string]struct{}    // connection ID -> set of rooms
	closed    bool
}

// NewDeliveryRouter constructs an empty router.
func NewDeliveryRouter() *DeliveryRouter {
	return &DeliveryRouter{
		conns:     make(map[string]*Connection),
		userConns: make(map[string]map[string]*Connection),
		rooms:     make(map[string]map[string]*Connection),
		joined:    make(map[string]map[string]struct{}),
	}
}

// Register tracks a new device connection and starts its write loop.
// Unlike a single-session design, a second device for the same user does
// not displace the first.
func (r *DeliveryRouter) Register(conn *Connection) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.shutdown(1001, "router shut down")
		return
	}
	r.conns[conn.ID] = conn
	byUser := r.userConns[conn.UserID]
	if byUser == nil {
		byUser = make(map[string]*Connection)
		r.userConns[conn.UserID] = byUser
	}
	byUser[conn.ID] = conn
	r.joined[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	conn.start()
}

// Unregister removes the connection from all rooms and user tracking.
// It returns the number of connections the user still has.
func (r *DeliveryRouter) Unregister(conn *Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; !ok {
		return len(r.userConns[conn.UserID])
	}
	delete(r.conns, conn.ID)

	for room := range r.joined[conn.ID] {
		r.leaveLocked(room, conn.ID)
	}
	delete(r.joined, conn.ID)

	if byUser, ok := r.userConns[conn.UserID]; ok {
		delete(byUser, conn.ID)
		if len(byUser) == 0 {
			delete(r.userConns, conn.UserID)
			return 0
		}
		return len(byUser)
	}
	return 0
}

// Join subscribes the connection to a room.
func (r *DeliveryRouter) Join(room string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; !ok {
		return
	}
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Connection)
		r.rooms[room] = members
	}
	members[conn.ID] = conn
	r.joined[conn.ID][room] = struct{}{}
}

// Leave unsubscribes the connection from a room.
func (r *DeliveryRouter) Leave(room string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, conn.ID)
	if set, ok := r.joined[conn.ID]; ok {
		delete(set, room)
	}
}

// JoinUser subscribes every live device of the user to the room.
func (r *DeliveryRouter) JoinUser(room, userID string) {
	for _, conn := range r.snapshotUser(userID) {
		r.Join(room, conn)
	}
}

// LeaveUser unsubscribes every live device of the user from the room.
func (r *DeliveryRouter) LeaveUser(room, userID string) {
	for _, conn := range r.snapshotUser(userID) {
		r.Leave(room, conn)
	}
}

func (r *DeliveryRouter) snapshotUser(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.userConns[userID]))
	for _, conn := range r.userConns[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// Emit encodes the event and delivers it to every connection in the room.
// Returns the number of devices the payload was handed to.
func (r *DeliveryRouter) Emit(room, event string, data interface{}) int {
	return r.EmitExcept(room, event, data, "")
}

// EmitExcept delivers to the room while skipping every connection owned by
// excludeUserID. Used for typing relays, which must not echo to the sender's
// own devices.
func (r *DeliveryRouter) EmitExcept(room, event string, data interface{}, excludeUserID string) int {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return 0
	}

	r.mu.RLock()
	members := r.rooms[room]
	targets := make([]*Connection, 0, len(members))
	for _, conn := range members {
		if excludeUserID != "" && conn.UserID == excludeUserID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// HasUser reports whether the user holds at least one live connection.
func (r *DeliveryRouter) HasUser(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID]) > 0
}

// ConnectionCount returns the number of live connections for the user.
func (r *DeliveryRouter) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID])
}

// Close tears down every tracked connection and rejects future registers.
func (r *DeliveryRouter) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.userConns = make(map[string]map[string]*Connection)
	r.rooms = make(map[string]map[string]*Connection)
	r.joined = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		conn.shutdown(1001, "server shutting down")
	}
}

func (r *DeliveryRouter) leaveLocked(room, connID string) {
	members := r.rooms[room]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
