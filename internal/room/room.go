// Package room implements the per-room coordinator: the single
// serialization point through which every mutation of a room's drawing
// state and membership passes.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

// mailboxSize bounds the coordinator queue. Commands are posted
// non-blocking; a full mailbox drops the command with a warning rather
// than stalling the gateway.
const mailboxSize = 256

// ErrClosed is returned by synchronous coordinator calls after Close.
var ErrClosed = errors.New("room: coordinator closed")

// Conn is the minimal connection surface the coordinator needs: a
// non-blocking enqueue onto the connection's outbound buffer.
type Conn interface {
	Enqueue(payload []byte) bool
}

type commandKind int

const (
	cmdJoin commandKind = iota
	cmdLeave
	cmdEvent
	cmdSnapshot
	cmdLoadState
)

type snapshotReply struct {
	blob string
	err  error
}

type command struct {
	kind  commandKind
	conn  Conn
	user  domain.User
	event protocol.Event
	blob  string
	reply chan snapshotReply
}

// Coordinator owns one room: its DrawingState and its membership. All
// mutations are applied by the Run loop in mailbox arrival order, which is
// the room's FIFO ordering guarantee; no locking is needed on the state.
type Coordinator struct {
	id      string
	state   *domain.DrawingState
	members map[Conn]domain.User
	mailbox chan command
	onEmpty func(roomID string)
	log     *logrus.Entry

	// closeMu serializes posting against closing: while a post holds the
	// read side, CloseIfIdle cannot run its emptiness check, so a command
	// that was accepted is guaranteed to be processed.
	closeMu sync.RWMutex
	closed  chan struct{}
}

// New creates a coordinator for the given room id. onEmpty is invoked from
// the Run loop when the last member leaves; the registry uses it to evict
// the room. Call Run in its own goroutine.
func New(id string, onEmpty func(roomID string)) *Coordinator {
	return &Coordinator{
		id:      id,
		state:   domain.NewDrawingState(),
		members: make(map[Conn]domain.User),
		mailbox: make(chan command, mailboxSize),
		closed:  make(chan struct{}),
		onEmpty: onEmpty,
		log:     logrus.WithFields(logrus.Fields{"component": "room", "room_id": id}),
	}
}

// ID returns the room id.
func (c *Coordinator) ID() string { return c.id }

// Run processes the mailbox until Close. It must be the only goroutine
// touching the drawing state and the membership map.
func (c *Coordinator) Run() {
	c.log.Info("Room coordinator running")
	for {
		select {
		case cmd := <-c.mailbox:
			c.process(cmd)
		case <-c.closed:
			c.log.Info("Room coordinator stopped")
			return
		}
	}
}

// Close stops the Run loop unconditionally. Pending mailbox entries are
// discarded; use CloseIfIdle for eviction, where pending joins must
// survive.
func (c *Coordinator) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// CloseIfIdle closes the coordinator only if nothing is pending in the
// mailbox. A join posted concurrently either lands before the check and
// vetoes the close, or fails and is retried by the gateway against a
// fresh coordinator. Returns true when the coordinator is closed.
func (c *Coordinator) CloseIfIdle() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
		return true
	default:
	}
	if len(c.mailbox) != 0 {
		return false
	}
	close(c.closed)
	return true
}

// Closed reports whether the coordinator has stopped accepting commands.
func (c *Coordinator) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// post enqueues a command without blocking. A full mailbox is a capacity
// condition, not a fatal error: the command is dropped and logged.
func (c *Coordinator) post(cmd command) bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.mailbox <- cmd:
		return true
	default:
		c.log.WithField("kind", cmd.kind).Warn("Room mailbox full, dropping command")
		return false
	}
}

// Join adds a connection to the room. The joiner alone receives the full
// canvas snapshot, then the whole room (joiner included) receives the
// updated membership list.
func (c *Coordinator) Join(conn Conn, user domain.User) bool {
	return c.post(command{kind: cmdJoin, conn: conn, user: user})
}

// Leave removes a connection. Active strokes owned by the departing user
// are auto-ended so remote renderers do not keep orphaned partial strokes.
func (c *Coordinator) Leave(conn Conn) bool {
	return c.post(command{kind: cmdLeave, conn: conn})
}

// Dispatch routes a validated drawing event into the mailbox.
func (c *Coordinator) Dispatch(conn Conn, event protocol.Event) bool {
	return c.post(command{kind: cmdEvent, conn: conn, event: event})
}

// Snapshot serializes the room state from inside the Run loop, so the
// caller (persistence service, autosave worker) never races the single
// writer.
func (c *Coordinator) Snapshot(ctx context.Context) (string, error) {
	reply := make(chan snapshotReply, 1)
	if !c.post(command{kind: cmdSnapshot, reply: reply}) {
		return "", ErrClosed
	}
	select {
	case r := <-reply:
		return r.blob, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.closed:
		return "", ErrClosed
	}
}

// LoadState replaces the room state with a previously serialized blob and
// re-broadcasts the full canvas to every member.
func (c *Coordinator) LoadState(ctx context.Context, blob string) error {
	reply := make(chan snapshotReply, 1)
	if !c.post(command{kind: cmdLoadState, blob: blob, reply: reply}) {
		return ErrClosed
	}
	select {
	case r := <-reply:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
}

// process applies one command. A panic while handling a single command is
// contained here so one bad event cannot take down the room loop.
func (c *Coordinator) process(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Recovered from panic while processing room command: %v", r)
		}
	}()

	switch cmd.kind {
	case cmdJoin:
		c.handleJoin(cmd.conn, cmd.user)
	case cmdLeave:
		c.handleLeave(cmd.conn)
	case cmdEvent:
		c.handleEvent(cmd.conn, cmd.event)
	case cmdSnapshot:
		blob, err := c.state.Serialize()
		cmd.reply <- snapshotReply{blob: blob, err: err}
	case cmdLoadState:
		err := c.state.Deserialize(cmd.blob)
		if err == nil {
			c.broadcast(c.canvasStatePayload(), nil)
		}
		cmd.reply <- snapshotReply{err: err}
	}
}

func (c *Coordinator) handleJoin(conn Conn, user domain.User) {
	c.members[conn] = user
	c.log.WithFields(logrus.Fields{"user_id": user.ID, "members": len(c.members)}).Info("Member joined room")

	// Full snapshot to the joining connection only.
	if payload := c.canvasStatePayload(); payload != nil {
		if !conn.Enqueue(payload) {
			c.log.WithField("user_id", user.ID).Warn("Joiner send buffer full, snapshot dropped")
		}
	}
	c.broadcastMembership()
}

func (c *Coordinator) handleLeave(conn Conn) {
	user, ok := c.members[conn]
	if !ok {
		return
	}

	// Auto-end policy: complete whatever the departing user was drawing
	// and tell the remaining members, so their partial render finalizes.
	for _, strokeID := range c.state.ActiveIDsOwnedBy(user.ID) {
		if ended := c.state.EndStroke(strokeID); ended != nil {
			c.broadcastMessage(protocol.RemoteDrawEnd{StrokeID: strokeID, UserID: user.ID}, conn)
		}
	}

	delete(c.members, conn)
	c.log.WithFields(logrus.Fields{"user_id": user.ID, "members": len(c.members)}).Info("Member left room")

	if len(c.members) == 0 {
		if c.onEmpty != nil {
			c.onEmpty(c.id)
		}
		return
	}
	c.broadcastMembership()
}

func (c *Coordinator) handleEvent(conn Conn, event protocol.Event) {
	user, ok := c.members[conn]
	if !ok {
		// Connection already left; late events are benign no-ops.
		return
	}

	switch ev := event.(type) {
	case protocol.DrawStart:
		strokeID := ev.StrokeID
		if strokeID == "" {
			strokeID = uuid.NewString()
		}
		c.state.StartStroke(&domain.Stroke{
			ID:        strokeID,
			OwnerID:   user.ID,
			Points:    []domain.Point{{X: ev.X, Y: ev.Y, Timestamp: time.Now().UnixMilli()}},
			Color:     ev.Color,
			LineWidth: ev.LineWidth,
			Tool:      domain.Tool(ev.Tool),
			StartTime: time.Now().UnixMilli(),
		})
		c.broadcastMessage(protocol.RemoteDrawStart{
			X: ev.X, Y: ev.Y,
			Color:     ev.Color,
			LineWidth: ev.LineWidth,
			Tool:      ev.Tool,
			StrokeID:  strokeID,
			UserID:    user.ID,
		}, conn)

	case protocol.DrawMove:
		c.state.AddPoint(ev.StrokeID, ev.X, ev.Y)
		c.broadcastMessage(protocol.RemoteDrawMove{
			X: ev.X, Y: ev.Y,
			StrokeID: ev.StrokeID,
			UserID:   user.ID,
		}, conn)

	case protocol.DrawEnd:
		if ended := c.state.EndStroke(ev.StrokeID); ended != nil {
			c.broadcastMessage(protocol.RemoteDrawEnd{StrokeID: ev.StrokeID, UserID: user.ID}, conn)
		}

	case protocol.CursorMove:
		c.broadcastMessage(protocol.RemoteCursor{X: ev.X, Y: ev.Y, UserID: user.ID}, conn)

	case protocol.Undo:
		stroke, err := c.state.Undo()
		if err != nil {
			c.sendTo(conn, protocol.UndoFailed{Message: err.Error()})
			return
		}
		// Global operations go to every member, actor included: the actor
		// has not applied the undo locally.
		c.broadcastMessage(protocol.UndoApplied{StrokeID: stroke.ID, UserID: user.ID}, nil)

	case protocol.Redo:
		stroke, err := c.state.Redo()
		if err != nil {
			c.sendTo(conn, protocol.RedoFailed{Message: err.Error()})
			return
		}
		c.broadcastMessage(protocol.RedoApplied{Stroke: stroke.Clone(), UserID: user.ID}, nil)

	case protocol.Clear:
		c.state.Clear()
		c.broadcastMessage(protocol.ClearApplied{UserID: user.ID}, nil)

	default:
		c.log.WithField("event", event.EventType()).Warn("Unroutable event reached room coordinator")
	}
}

// canvasStatePayload marshals the full snapshot message, or nil on
// failure.
func (c *Coordinator) canvasStatePayload() []byte {
	payload, err := protocol.EncodeServer(protocol.CanvasState{
		History:      c.state.History(),
		CurrentState: c.state.ActiveStrokes(),
	})
	if err != nil {
		c.log.WithError(err).Error("Failed to encode canvas state")
		return nil
	}
	return payload
}

func (c *Coordinator) broadcastMembership() {
	users := make([]domain.User, 0, len(c.members))
	for _, u := range c.members {
		users = append(users, u)
	}
	c.broadcastMessage(protocol.UsersUpdated{Users: users}, nil)
}

// broadcastMessage fans a server message out to every member except
// exclude (nil means everyone).
func (c *Coordinator) broadcastMessage(msg protocol.ServerMessage, exclude Conn) {
	payload, err := protocol.EncodeServer(msg)
	if err != nil {
		c.log.WithError(err).WithField("message", msg.MessageType()).Error("Failed to encode broadcast")
		return
	}
	c.broadcast(payload, exclude)
}

func (c *Coordinator) broadcast(payload []byte, exclude Conn) {
	if payload == nil {
		return
	}
	for conn, user := range c.members {
		if conn == exclude {
			continue
		}
		if !conn.Enqueue(payload) {
			// A slow consumer misses this frame; its pumps handle the
			// eventual disconnect.
			c.log.WithField("user_id", user.ID).Warn("Member send buffer full during broadcast, skipping")
		}
	}
}

func (c *Coordinator) sendTo(conn Conn, msg protocol.ServerMessage) {
	payload, err := protocol.EncodeServer(msg)
	if err != nil {
		c.log.WithError(err).WithField("message", msg.MessageType()).Error("Failed to encode reply")
		return
	}
	if !conn.Enqueue(payload) {
		c.log.Warn("Send buffer full for direct reply, dropping")
	}
}

// String implements fmt.Stringer for log-friendly dumps.
func (c *Coordinator) String() string {
	return fmt.Sprintf("room(%s)", c.id)
}
