package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/room"
	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection.
	sendBufferSize = 256
)

// Client is one websocket connection known to the hub. It implements
// room.Conn via Enqueue.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user domain.User
	send chan []byte

	roomMu  sync.Mutex
	room    *room.Coordinator
	sendMu  sync.Mutex
	closed  bool
	log     *logrus.Entry
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(h *Hub, conn *websocket.Conn, user domain.User) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		user: user,
		send: make(chan []byte, sendBufferSize),
		log: logrus.WithFields(logrus.Fields{
			"component": "ws_client",
			"user_id":   user.ID,
		}),
	}
}

// Run registers the client and starts its read/write pumps.
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()
	go c.readPump()
}

// Enqueue puts a payload on the outbound buffer without blocking. Returns
// false if the buffer is full or the client is closing; the caller treats
// that as a skipped frame, not an error.
func (c *Client) Enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// sendMessage encodes and enqueues a server message for this connection
// only.
func (c *Client) sendMessage(msg protocol.ServerMessage) {
	payload, err := protocol.EncodeServer(msg)
	if err != nil {
		c.log.WithError(err).WithField("message", msg.MessageType()).Error("Failed to encode message")
		return
	}
	if !c.Enqueue(payload) {
		c.log.WithField("message", msg.MessageType()).Warn("Send buffer full, message dropped")
	}
}

// closeSend marks the client closed and closes the outbound channel so
// the write pump exits. Idempotent.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// CloseConn force-closes the underlying connection. The read pump notices
// and unwinds through the normal unregister path.
func (c *Client) CloseConn() {
	_ = c.conn.Close()
}

func (c *Client) currentRoom() *room.Coordinator {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

func (c *Client) setRoom(coord *room.Coordinator) {
	c.roomMu.Lock()
	c.room = coord
	c.roomMu.Unlock()
}

// readPump pumps messages from the websocket to the hub. One goroutine
// per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		c.log.Debug("Read pump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("Websocket read error")
			} else {
				c.log.Debug("Websocket closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.hub.HandleMessage(c, raw)
	}
}

// writePump pumps messages from the send channel to the websocket and
// keeps the connection alive with protocol-level pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.log.Debug("Write pump exited")
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.WithError(err).Warn("Failed to write message")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
