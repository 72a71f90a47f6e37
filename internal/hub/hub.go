// Package hub implements the connection gateway: it owns the websocket
// clients, validates every inbound event at the boundary, and routes valid
// events to the correct room coordinator.
package hub

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/room"
	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

// Hub fans connections in and out of room coordinators. It performs no
// room-state mutation itself; the per-room mailbox is the serialization
// point.
type Hub struct {
	registry room.Registry

	clientsMu sync.Mutex
	clients   map[*Client]struct{}

	log *logrus.Entry
}

// NewHub creates a gateway over the given room registry.
func NewHub(registry room.Registry) *Hub {
	if registry == nil {
		panic("room registry cannot be nil for Hub")
	}
	return &Hub{
		registry: registry,
		clients:  make(map[*Client]struct{}),
		log:      logrus.WithField("component", "hub"),
	}
}

// register tracks a client for shutdown. Called once per connection.
func (h *Hub) register(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
	h.log.WithField("user_id", c.user.ID).Info("Client registered")
}

// unregister removes the client from its room and from the hub. Safe to
// call more than once.
func (h *Hub) unregister(c *Client) {
	h.clientsMu.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	h.clientsMu.Unlock()
	if !known {
		return
	}
	if coord := c.currentRoom(); coord != nil {
		coord.Leave(c)
	}
	c.closeSend()
	h.log.WithField("user_id", c.user.ID).Info("Client unregistered")
}

// HandleMessage processes one raw frame from a client connection. Every
// failure mode here is contained per event: a malformed or out-of-range
// message is answered (or dropped) on the offending connection only and
// never reaches a room or tears down the loop.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	logCtx := h.log.WithField("user_id", c.user.ID)
	defer func() {
		if r := recover(); r != nil {
			logCtx.Errorf("Recovered from panic while handling client message: %v", r)
		}
	}()

	event, err := protocol.Decode(raw)
	if err != nil {
		var derr *protocol.DecodeError
		if errors.As(err, &derr) {
			logCtx.WithError(err).Warn("Rejected undecodable message")
			c.sendMessage(protocol.ErrorMessage{Message: derr.Reason})
			return
		}
		logCtx.WithError(err).Error("Unexpected decode failure")
		return
	}

	if err := protocol.Validate(event); err != nil {
		logCtx.WithError(err).WithField("event", event.EventType()).Warn("Rejected invalid event")
		c.sendMessage(protocol.ErrorMessage{Message: err.Error()})
		return
	}

	switch ev := event.(type) {
	case protocol.JoinRoom:
		h.joinRoom(c, ev.RoomID)
	case protocol.Ping:
		// Liveness probes never touch a room mailbox.
		c.sendMessage(protocol.Pong{Timestamp: ev.Timestamp})
	default:
		coord := c.currentRoom()
		if coord == nil {
			c.sendMessage(protocol.ErrorMessage{Message: "not in a room"})
			return
		}
		coord.Dispatch(c, event)
	}
}

// joinRoom moves the client to the target room, leaving the previous one
// (with its membership broadcast) first. The room is created lazily.
func (h *Hub) joinRoom(c *Client, roomID string) {
	// Re-joining the same room also goes through leave/join: a
	// reconnect-driven join doubles as a full state resync.
	if prev := c.currentRoom(); prev != nil {
		prev.Leave(c)
		c.setRoom(nil)
	}

	// The coordinator the registry hands back can empty out and close
	// before the join lands (a reconnect racing the old connection's
	// leave). A refused join is retried against a fresh coordinator.
	for attempt := 0; attempt < 3; attempt++ {
		coord := h.registry.GetOrCreate(roomID)
		if coord.Join(c, c.user) {
			c.setRoom(coord)
			h.log.WithFields(logrus.Fields{"user_id": c.user.ID, "room_id": roomID}).Info("Client joined room")
			return
		}
	}
	h.log.WithFields(logrus.Fields{"user_id": c.user.ID, "room_id": roomID}).Error("Join refused repeatedly")
	c.sendMessage(protocol.ErrorMessage{Message: "failed to join room"})
}

// Shutdown closes every live connection. Room eviction follows from the
// resulting leaves.
func (h *Hub) Shutdown() {
	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()

	for _, c := range clients {
		c.CloseConn()
	}
	h.log.Infof("Hub shut down, closed %d connections", len(clients))
}
