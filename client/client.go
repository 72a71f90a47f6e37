// Package client is the reconciliation layer for a drawing surface: it
// applies local gestures optimistically, mirrors remote events onto a
// Renderer, throttles cursor traffic, buffers while offline, and
// reconnects with exponential backoff.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

const (
	defaultCursorInterval = 100 * time.Millisecond
	defaultPingInterval   = 1 * time.Second
)

// Renderer receives canvas mutations to display. Local gestures arrive
// through it immediately; remote ones as the gateway delivers them.
// Implementations are called from the client goroutines and must not
// block.
type Renderer interface {
	LoadCanvas(state protocol.CanvasState)
	StrokeStarted(msg protocol.RemoteDrawStart)
	StrokeMoved(msg protocol.RemoteDrawMove)
	StrokeEnded(msg protocol.RemoteDrawEnd)
	CursorMoved(msg protocol.RemoteCursor)
	StrokeUndone(msg protocol.UndoApplied)
	StrokeRedone(msg protocol.RedoApplied)
	CanvasCleared(msg protocol.ClearApplied)
	MembersChanged(msg protocol.UsersUpdated)
	Notice(message string)
}

// Clock abstracts time for the cursor throttle.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Client. Dialer and Renderer are required.
type Options struct {
	Dialer   Dialer
	Renderer Renderer
	UserID   string
	Logger   *logrus.Logger

	// Clock and Sleep are overridable for tests; nil means real time.
	Clock Clock
	Sleep func(time.Duration)

	QueueCapacity  int
	CursorInterval time.Duration
	PingInterval   time.Duration

	// OnStateChange, when set, observes connection lifecycle changes.
	OnStateChange func(ConnState)
}

// Client synchronizes one user's drawing surface with the gateway.
type Client struct {
	dialer   Dialer
	renderer Renderer
	log      *logrus.Entry
	clock    Clock
	sleep    func(time.Duration)
	backoff  backoff

	cursorInterval time.Duration
	pingInterval   time.Duration
	onStateChange  func(ConnState)
	userID         string

	mu           sync.Mutex
	transport    Transport
	state        ConnState
	queue        *sendQueue
	roomID       string
	lastCursorAt time.Time
	connEpoch    int
	closed       bool
}

// New creates a Client. It does not dial; call Connect.
func New(opts Options) (*Client, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("client: Dialer is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("client: Renderer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	cursorInterval := opts.CursorInterval
	if cursorInterval <= 0 {
		cursorInterval = defaultCursorInterval
	}
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	return &Client{
		dialer:         opts.Dialer,
		renderer:       opts.Renderer,
		log:            logger.WithField("component", "canvas_client"),
		clock:          clock,
		sleep:          sleep,
		backoff:        defaultBackoff(),
		cursorInterval: cursorInterval,
		pingInterval:   pingInterval,
		onStateChange:  opts.OnStateChange,
		userID:         opts.UserID,
		state:          StateDisconnected,
		queue:          newSendQueue(opts.QueueCapacity),
	}, nil
}

// Connect dials the gateway and starts the read and ping loops. It also
// clears a terminal failed state.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	transport, err := c.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("client: connect failed: %w", err)
	}
	c.establish(transport)
	return nil
}

// Close tears the connection down for good. No reconnect is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	t := c.transport
	c.transport = nil
	c.mu.Unlock()
	c.setState(StateDisconnected)
	if t != nil {
		return t.Close()
	}
	return nil
}

// State reports the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueuedEvents reports how many payloads await a live transport.
func (c *Client) QueuedEvents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// JoinRoom requests membership of a room. The gateway replies with a
// canvas snapshot; joining the current room again acts as a resync.
func (c *Client) JoinRoom(roomID string) error {
	ev := protocol.JoinRoom{RoomID: roomID}
	if err := protocol.Validate(ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
	return c.send(ev, true)
}

// DrawStart begins a stroke and echoes it to the renderer immediately.
// It returns the stroke id to use for subsequent moves.
func (c *Client) DrawStart(x, y float64, color string, lineWidth float64, tool string) (string, error) {
	ev := protocol.DrawStart{
		X:         x,
		Y:         y,
		Color:     color,
		LineWidth: lineWidth,
		Tool:      tool,
		StrokeID:  uuid.NewString(),
	}
	if err := protocol.Validate(ev); err != nil {
		return "", err
	}
	c.renderer.StrokeStarted(protocol.RemoteDrawStart{
		X:         ev.X,
		Y:         ev.Y,
		Color:     ev.Color,
		LineWidth: ev.LineWidth,
		Tool:      ev.Tool,
		StrokeID:  ev.StrokeID,
		UserID:    c.userID,
	})
	if err := c.send(ev, true); err != nil {
		return "", err
	}
	return ev.StrokeID, nil
}

// DrawMove extends a stroke started with DrawStart.
func (c *Client) DrawMove(strokeID string, x, y float64) error {
	ev := protocol.DrawMove{X: x, Y: y, StrokeID: strokeID}
	if err := protocol.Validate(ev); err != nil {
		return err
	}
	c.renderer.StrokeMoved(protocol.RemoteDrawMove{
		X:        x,
		Y:        y,
		StrokeID: strokeID,
		UserID:   c.userID,
	})
	return c.send(ev, true)
}

// DrawEnd completes a stroke.
func (c *Client) DrawEnd(strokeID string) error {
	ev := protocol.DrawEnd{StrokeID: strokeID}
	if err := protocol.Validate(ev); err != nil {
		return err
	}
	c.renderer.StrokeEnded(protocol.RemoteDrawEnd{StrokeID: strokeID, UserID: c.userID})
	return c.send(ev, true)
}

// MoveCursor reports the pointer position, at most once per throttle
// interval. Suppressed and offline positions are dropped, never queued;
// a stale cursor is worse than none.
func (c *Client) MoveCursor(x, y float64) error {
	ev := protocol.CursorMove{X: x, Y: y}
	if err := protocol.Validate(ev); err != nil {
		return err
	}

	c.mu.Lock()
	now := c.clock.Now()
	if !c.lastCursorAt.IsZero() && now.Sub(c.lastCursorAt) < c.cursorInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastCursorAt = now
	c.mu.Unlock()

	return c.send(ev, false)
}

// Undo requests removal of the most recent stroke in the room. The
// canvas updates when the gateway broadcasts the result; there is no
// optimistic application.
func (c *Client) Undo() error { return c.send(protocol.Undo{}, true) }

// Redo requests restoration of the most recently undone stroke.
func (c *Client) Redo() error { return c.send(protocol.Redo{}, true) }

// Clear requests a room-wide canvas wipe.
func (c *Client) Clear() error { return c.send(protocol.Clear{}, true) }

// send encodes and transmits an event. When no transport is live and
// the event is queueable it is buffered for replay after reconnect.
func (c *Client) send(ev protocol.Event, queueable bool) error {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected || c.transport == nil {
		if queueable {
			c.queue.push(payload)
		}
		c.mu.Unlock()
		return nil
	}
	t := c.transport
	c.mu.Unlock()

	if err := t.Send(payload); err != nil {
		c.mu.Lock()
		if queueable {
			c.queue.push(payload)
		}
		c.mu.Unlock()
		c.handleDisconnect(t, err)
	}
	return nil
}

// establish installs a freshly dialed transport: re-joins the current
// room, replays the offline buffer in arrival order, then starts the
// read and ping loops. The state flips to connected under the same lock
// that observes the buffer empty, so an event queued mid-replay is
// replayed on the next pass instead of stranded.
func (c *Client) establish(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.connEpoch++
	epoch := c.connEpoch
	roomID := c.roomID
	c.mu.Unlock()

	if roomID != "" {
		if payload, err := protocol.Encode(protocol.JoinRoom{RoomID: roomID}); err == nil {
			if err := t.Send(payload); err != nil {
				c.log.Warnf("Re-join after connect failed: %v", err)
				c.handleDisconnect(t, err)
				return
			}
		}
	}

	replayed := 0
	for {
		c.mu.Lock()
		pending := c.queue.drain()
		if len(pending) == 0 {
			changed := c.state != StateConnected
			c.state = StateConnected
			c.mu.Unlock()
			if changed && c.onStateChange != nil {
				c.onStateChange(StateConnected)
			}
			break
		}
		c.mu.Unlock()

		for i, payload := range pending {
			if err := t.Send(payload); err != nil {
				c.mu.Lock()
				for _, rest := range pending[i:] {
					c.queue.push(rest)
				}
				c.mu.Unlock()
				c.log.Warnf("Replay of buffered event failed: %v", err)
				c.handleDisconnect(t, err)
				return
			}
			replayed++
		}
	}
	if replayed > 0 {
		c.log.WithField("replayed", replayed).Info("Offline buffer replayed")
	}

	go c.readLoop(t, epoch)
	go c.pingLoop(t, epoch)
}

// handleDisconnect reacts to a transport failure. The first caller for
// a given transport flips the state and starts the reconnect loop.
func (c *Client) handleDisconnect(t Transport, cause error) {
	c.mu.Lock()
	if c.closed || c.transport != t {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.mu.Unlock()

	_ = t.Close()
	c.log.Warnf("Connection lost: %v", cause)
	c.setState(StateReconnecting)
	go c.runReconnect()
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

func (c *Client) readLoop(t Transport, epoch int) {
	for {
		raw, err := t.ReadMessage()
		if err != nil {
			c.handleDisconnect(t, err)
			return
		}
		msg, err := protocol.DecodeServer(raw)
		if err != nil {
			c.log.Warnf("Dropping undecodable server message: %v", err)
			continue
		}
		c.dispatch(msg, epoch)
	}
}

func (c *Client) dispatch(msg protocol.ServerMessage, epoch int) {
	c.mu.Lock()
	stale := epoch != c.connEpoch
	c.mu.Unlock()
	if stale {
		return
	}

	switch m := msg.(type) {
	case protocol.CanvasState:
		c.renderer.LoadCanvas(m)
	case protocol.RemoteDrawStart:
		c.renderer.StrokeStarted(m)
	case protocol.RemoteDrawMove:
		c.renderer.StrokeMoved(m)
	case protocol.RemoteDrawEnd:
		c.renderer.StrokeEnded(m)
	case protocol.RemoteCursor:
		c.renderer.CursorMoved(m)
	case protocol.UndoApplied:
		c.renderer.StrokeUndone(m)
	case protocol.RedoApplied:
		c.renderer.StrokeRedone(m)
	case protocol.ClearApplied:
		c.renderer.CanvasCleared(m)
	case protocol.UsersUpdated:
		c.renderer.MembersChanged(m)
	case protocol.UndoFailed:
		c.renderer.Notice(m.Message)
	case protocol.RedoFailed:
		c.renderer.Notice(m.Message)
	case protocol.ErrorMessage:
		c.renderer.Notice(m.Message)
	case protocol.Pong:
		rtt := c.clock.Now().UnixMilli() - m.Timestamp
		c.log.WithField("rtt_ms", rtt).Debug("Pong received")
	default:
		c.log.Warnf("Unhandled server message %s", msg.MessageType())
	}
}

// pingLoop measures round trips while this transport is current. Pings
// are telemetry only and never queued.
func (c *Client) pingLoop(t Transport, epoch int) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		current := c.connEpoch == epoch && c.transport == t
		c.mu.Unlock()
		if !current {
			return
		}
		payload, err := protocol.Encode(protocol.Ping{Timestamp: c.clock.Now().UnixMilli()})
		if err != nil {
			continue
		}
		if err := t.Send(payload); err != nil {
			c.handleDisconnect(t, err)
			return
		}
	}
}
