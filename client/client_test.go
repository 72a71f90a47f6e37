package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

type fakeTransport struct {
	mu        sync.Mutex
	sent      [][]byte
	failSends bool
	incoming  chan []byte
	closeOnce sync.Once

	// gate, when set before use, blocks every Send until a token (or a
	// close) arrives; gateHit signals that a Send reached the gate.
	gate    chan struct{}
	gateHit chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan []byte, 32)}
}

func (t *fakeTransport) Send(payload []byte) error {
	if t.gate != nil {
		t.gateHit <- struct{}{}
		<-t.gate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failSends {
		return errors.New("transport broken")
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	t.sent = append(t.sent, cp)
	return nil
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	payload, ok := <-t.incoming
	if !ok {
		return nil, errors.New("transport closed")
	}
	return payload, nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.incoming) })
	return nil
}

func (t *fakeTransport) breakSends() {
	t.mu.Lock()
	t.failSends = true
	t.mu.Unlock()
}

func (t *fakeTransport) sentTypes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	types := make([]string, 0, len(t.sent))
	for _, payload := range t.sent {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(payload, &env)
		types = append(types, env.Type)
	}
	return types
}

func (t *fakeTransport) sentOfType(eventType string) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [][]byte
	for _, payload := range t.sent {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(payload, &env)
		if env.Type == eventType {
			out = append(out, payload)
		}
	}
	return out
}

// fakeDialer hands out prepared transports in order and fails once the
// supply runs out.
type fakeDialer struct {
	mu       sync.Mutex
	supply   []*fakeTransport
	attempts int
}

func (d *fakeDialer) Dial(_ context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if len(d.supply) == 0 {
		return nil, errors.New("gateway unreachable")
	}
	t := d.supply[0]
	d.supply = d.supply[1:]
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recorder captures every renderer call for inspection.
type recorder struct {
	mu       sync.Mutex
	loads    []protocol.CanvasState
	starts   []protocol.RemoteDrawStart
	moves    []protocol.RemoteDrawMove
	ends     []protocol.RemoteDrawEnd
	cursors  []protocol.RemoteCursor
	undos    []protocol.UndoApplied
	redos    []protocol.RedoApplied
	clears   []protocol.ClearApplied
	members  []protocol.UsersUpdated
	notices  []string
}

func (r *recorder) LoadCanvas(m protocol.CanvasState) {
	r.mu.Lock()
	r.loads = append(r.loads, m)
	r.mu.Unlock()
}

func (r *recorder) StrokeStarted(m protocol.RemoteDrawStart) {
	r.mu.Lock()
	r.starts = append(r.starts, m)
	r.mu.Unlock()
}

func (r *recorder) StrokeMoved(m protocol.RemoteDrawMove) {
	r.mu.Lock()
	r.moves = append(r.moves, m)
	r.mu.Unlock()
}

func (r *recorder) StrokeEnded(m protocol.RemoteDrawEnd) {
	r.mu.Lock()
	r.ends = append(r.ends, m)
	r.mu.Unlock()
}

func (r *recorder) CursorMoved(m protocol.RemoteCursor) {
	r.mu.Lock()
	r.cursors = append(r.cursors, m)
	r.mu.Unlock()
}

func (r *recorder) StrokeUndone(m protocol.UndoApplied) {
	r.mu.Lock()
	r.undos = append(r.undos, m)
	r.mu.Unlock()
}

func (r *recorder) StrokeRedone(m protocol.RedoApplied) {
	r.mu.Lock()
	r.redos = append(r.redos, m)
	r.mu.Unlock()
}

func (r *recorder) CanvasCleared(m protocol.ClearApplied) {
	r.mu.Lock()
	r.clears = append(r.clears, m)
	r.mu.Unlock()
}

func (r *recorder) MembersChanged(m protocol.UsersUpdated) {
	r.mu.Lock()
	r.members = append(r.members, m)
	r.mu.Unlock()
}

func (r *recorder) Notice(message string) {
	r.mu.Lock()
	r.notices = append(r.notices, message)
	r.mu.Unlock()
}

func (r *recorder) noticeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.PingInterval == 0 {
		// Keep the ping ticker out of send counts.
		opts.PingInterval = time.Hour
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestCursorThrottleCapsSendRate(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{transport}}
	clock := newFakeClock()
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Clock:    clock,
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, c.MoveCursor(float64(i), float64(i)))
		clock.Advance(10 * time.Millisecond)
	}

	sent := transport.sentOfType(protocol.TypeCursorMove)
	assert.Len(t, sent, 10, "100 moves over 1s at a 100ms throttle should produce 10 sends")
}

func TestCursorMoveDroppedWhileOffline(t *testing.T) {
	dialer := &fakeDialer{}
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Clock:    newFakeClock(),
	})

	require.NoError(t, c.MoveCursor(5, 5))
	assert.Equal(t, 0, c.QueuedEvents(), "cursor positions must not be buffered")
}

func TestDrawStartEchoesLocallyAndValidates(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{transport}}
	rec := &recorder{}
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: rec,
		UserID:   "user-local",
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	strokeID, err := c.DrawStart(10, 20, "#ff0000", 4, "brush")
	require.NoError(t, err)
	require.NotEmpty(t, strokeID)

	rec.mu.Lock()
	require.Len(t, rec.starts, 1)
	assert.Equal(t, strokeID, rec.starts[0].StrokeID)
	assert.Equal(t, "user-local", rec.starts[0].UserID)
	rec.mu.Unlock()

	require.Len(t, transport.sentOfType(protocol.TypeDrawStart), 1)

	_, err = c.DrawStart(10, 20, "not-a-color", 4, "brush")
	var verr *protocol.ValidationError
	require.ErrorAs(t, err, &verr)

	rec.mu.Lock()
	assert.Len(t, rec.starts, 1, "invalid gestures must not reach the renderer")
	rec.mu.Unlock()
	assert.Len(t, transport.sentOfType(protocol.TypeDrawStart), 1, "invalid gestures must not reach the wire")
}

func TestOfflineBufferReplayedInOrderOnReconnect(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{first, second}}
	release := make(chan struct{})
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Sleep:    func(time.Duration) { <-release },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	require.NoError(t, c.JoinRoom("room-7"))

	strokeID, err := c.DrawStart(0, 0, "#000", 2, "brush")
	require.NoError(t, err)

	first.breakSends()
	require.NoError(t, c.DrawMove(strokeID, 1, 1))
	require.Eventually(t, func() bool { return c.State() == StateReconnecting }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.DrawMove(strokeID, 2, 2))
	require.NoError(t, c.DrawMove(strokeID, 3, 3))
	require.Equal(t, 3, c.QueuedEvents())

	close(release)
	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.DrawEnd(strokeID))

	types := second.sentTypes()
	require.GreaterOrEqual(t, len(types), 5)
	assert.Equal(t, protocol.TypeJoinRoom, types[0], "reconnect must re-join the room first")
	assert.Equal(t, []string{
		protocol.TypeDrawMove,
		protocol.TypeDrawMove,
		protocol.TypeDrawMove,
		protocol.TypeDrawEnd,
	}, types[1:5])

	moves := second.sentOfType(protocol.TypeDrawMove)
	require.Len(t, moves, 3)
	for i, payload := range moves {
		var move protocol.DrawMove
		require.NoError(t, json.Unmarshal(payload, &move))
		assert.Equal(t, float64(i+1), move.X, "buffered moves must replay in arrival order")
	}
	assert.Equal(t, 0, c.QueuedEvents())
}

func TestEventSentDuringReplayIsNotStranded(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	second.gate = make(chan struct{})
	second.gateHit = make(chan struct{}, 8)
	dialer := &fakeDialer{supply: []*fakeTransport{first, second}}
	release := make(chan struct{})
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Sleep:    func(time.Duration) { <-release },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	require.NoError(t, c.JoinRoom("room-3"))

	strokeID, err := c.DrawStart(0, 0, "#000", 2, "brush")
	require.NoError(t, err)

	first.breakSends()
	require.NoError(t, c.DrawMove(strokeID, 1, 1))
	require.Eventually(t, func() bool { return c.State() == StateReconnecting }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, c.QueuedEvents())

	// Let the reconnect dial; the new transport stalls on its first send
	// (the re-join), so the replay is provably still in progress.
	close(release)
	<-second.gateHit
	require.Equal(t, StateReconnecting, c.State())

	// An event issued mid-replay lands in the queue again.
	require.NoError(t, c.DrawEnd(strokeID))
	require.Equal(t, 2, c.QueuedEvents())

	close(second.gate)
	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, c.QueuedEvents(), "nothing may stay behind once connected")
	assert.Equal(t, []string{
		protocol.TypeJoinRoom,
		protocol.TypeDrawMove,
		protocol.TypeDrawEnd,
	}, second.sentTypes())
}

func TestReconnectBudgetExhausted(t *testing.T) {
	first := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{first}}

	var delayMu sync.Mutex
	var delays []time.Duration
	var states []ConnState

	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Sleep: func(d time.Duration) {
			delayMu.Lock()
			delays = append(delays, d)
			delayMu.Unlock()
		},
		OnStateChange: func(s ConnState) {
			delayMu.Lock()
			states = append(states, s)
			delayMu.Unlock()
		},
	})
	require.NoError(t, c.Connect(context.Background()))

	// Server side drops the connection.
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool { return c.State() == StateFailed }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 11, dialer.dialCount(), "one initial dial plus ten reconnect attempts")

	delayMu.Lock()
	defer delayMu.Unlock()
	require.Len(t, delays, 10)
	assert.Equal(t, 1*time.Second, delays[0])
	assert.Equal(t, 2*time.Second, delays[1])
	assert.Equal(t, 4*time.Second, delays[2])
	assert.Equal(t, 16*time.Second, delays[4])
	assert.Equal(t, 30*time.Second, delays[5], "backoff caps at 30s")
	assert.Equal(t, 30*time.Second, delays[9])
	require.NotEmpty(t, states)
	assert.Equal(t, StateFailed, states[len(states)-1])
}

func TestServerMessagesReachRenderer(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{transport}}
	rec := &recorder{}
	c := newTestClient(t, Options{Dialer: dialer, Renderer: rec})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	deliver := func(msg protocol.ServerMessage) {
		payload, err := protocol.EncodeServer(msg)
		require.NoError(t, err)
		transport.incoming <- payload
	}

	deliver(protocol.RemoteDrawStart{X: 1, Y: 2, Color: "#abc", LineWidth: 3, Tool: "brush", StrokeID: "s1", UserID: "user-b"})
	deliver(protocol.RemoteDrawMove{X: 4, Y: 5, StrokeID: "s1", UserID: "user-b"})
	deliver(protocol.RemoteDrawEnd{StrokeID: "s1", UserID: "user-b"})
	deliver(protocol.RemoteCursor{X: 9, Y: 9, UserID: "user-b"})
	deliver(protocol.UndoApplied{StrokeID: "s1", UserID: "user-b"})
	deliver(protocol.UndoFailed{Message: "nothing to undo"})
	deliver(protocol.UsersUpdated{})

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.members) == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.starts, 1)
	assert.Equal(t, "user-b", rec.starts[0].UserID)
	require.Len(t, rec.moves, 1)
	require.Len(t, rec.ends, 1)
	require.Len(t, rec.cursors, 1)
	require.Len(t, rec.undos, 1)
	require.Equal(t, []string{"nothing to undo"}, rec.notices)
}

func TestUndecodableServerMessageIgnored(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{transport}}
	rec := &recorder{}
	c := newTestClient(t, Options{Dialer: dialer, Renderer: rec})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	transport.incoming <- []byte("{{{not json")
	payload, err := protocol.EncodeServer(protocol.UsersUpdated{})
	require.NoError(t, err)
	transport.incoming <- payload

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.members) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, c.State(), "a garbage frame must not drop the connection")
	assert.Equal(t, 0, rec.noticeCount())
}

func TestCloseStopsReconnect(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{supply: []*fakeTransport{transport}}
	c := newTestClient(t, Options{
		Dialer:   dialer,
		Renderer: &recorder{},
		Sleep:    func(time.Duration) {},
	})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, dialer.dialCount(), "a voluntary close must not dial again")
}
