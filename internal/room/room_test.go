package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/protocol"
)

// fakeConn records every payload the coordinator enqueues for it.
type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeConn) Enqueue(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return true
}

func (f *fakeConn) messages(t *testing.T) []protocol.ServerMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.ServerMessage, 0, len(f.payloads))
	for _, raw := range f.payloads {
		msg, err := protocol.DecodeServer(raw)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func (f *fakeConn) messagesOfType(t *testing.T, msgType string) []protocol.ServerMessage {
	t.Helper()
	var out []protocol.ServerMessage
	for _, msg := range f.messages(t) {
		if msg.MessageType() == msgType {
			out = append(out, msg)
		}
	}
	return out
}

// drain blocks until every previously posted command has been processed,
// by round-tripping a snapshot request through the mailbox.
func drain(t *testing.T, coord *Coordinator) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	blob, err := coord.Snapshot(ctx)
	require.NoError(t, err)
	return blob
}

func startRoom(t *testing.T) *Coordinator {
	t.Helper()
	coord := New("r1", nil)
	go coord.Run()
	t.Cleanup(coord.Close)
	return coord
}

func TestCoordinator_StartMoveEndScenario(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA", Name: "A"})
	coord.Join(connB, domain.User{ID: "uB", Name: "B"})

	coord.Dispatch(connA, protocol.DrawStart{X: 10, Y: 10, Color: "#000000", LineWidth: 5, Tool: "brush", StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawMove{X: 20, Y: 20, StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawEnd{StrokeID: "s1"})
	blob := drain(t, coord)

	state := domain.NewDrawingState()
	require.NoError(t, state.Deserialize(blob))
	require.Equal(t, []string{"s1"}, state.HistoryIDs())
	history := state.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0].Points, 2)
	assert.Equal(t, "uA", history[0].OwnerID)

	// The drawing member is excluded from draw-* fan-out: it already
	// rendered optimistically. The other member sees all three frames.
	assert.Empty(t, connA.messagesOfType(t, protocol.TypeDrawStart))
	starts := connB.messagesOfType(t, protocol.TypeDrawStart)
	require.Len(t, starts, 1)
	assert.Equal(t, "uA", starts[0].(protocol.RemoteDrawStart).UserID)
	assert.Len(t, connB.messagesOfType(t, protocol.TypeDrawMove), 1)
	assert.Len(t, connB.messagesOfType(t, protocol.TypeDrawEnd), 1)
}

func TestCoordinator_UndoByOtherMemberReachesEveryone(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})
	coord.Join(connB, domain.User{ID: "uB"})

	coord.Dispatch(connA, protocol.DrawStart{X: 1, Y: 1, Color: "#fff", LineWidth: 2, Tool: "brush", StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawEnd{StrokeID: "s1"})
	// Undo history is global per room: B undoes A's stroke.
	coord.Dispatch(connB, protocol.Undo{})
	blob := drain(t, coord)

	state := domain.NewDrawingState()
	require.NoError(t, state.Deserialize(blob))
	assert.Empty(t, state.HistoryIDs())
	assert.Equal(t, []string{"s1"}, state.RedoIDs())

	for _, conn := range []*fakeConn{connA, connB} {
		undos := conn.messagesOfType(t, protocol.TypeUndo)
		require.Len(t, undos, 1, "undo broadcasts to all members including the actor")
		applied := undos[0].(protocol.UndoApplied)
		assert.Equal(t, "s1", applied.StrokeID)
		assert.Equal(t, "uB", applied.UserID)
	}
}

func TestCoordinator_UndoFailureOnlyToActor(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})
	coord.Join(connB, domain.User{ID: "uB"})

	coord.Dispatch(connA, protocol.Undo{})
	coord.Dispatch(connA, protocol.Redo{})
	drain(t, coord)

	require.Len(t, connA.messagesOfType(t, protocol.TypeUndoFailed), 1)
	require.Len(t, connA.messagesOfType(t, protocol.TypeRedoFailed), 1)
	assert.Empty(t, connB.messagesOfType(t, protocol.TypeUndoFailed))
	assert.Empty(t, connB.messagesOfType(t, protocol.TypeRedoFailed))
}

func TestCoordinator_RedoCarriesFullStroke(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})

	coord.Dispatch(connA, protocol.DrawStart{X: 1, Y: 1, Color: "#abc", LineWidth: 3, Tool: "brush", StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawMove{X: 2, Y: 2, StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawEnd{StrokeID: "s1"})
	coord.Dispatch(connA, protocol.Undo{})
	coord.Dispatch(connA, protocol.Redo{})
	drain(t, coord)

	redos := connA.messagesOfType(t, protocol.TypeRedo)
	require.Len(t, redos, 1)
	stroke := redos[0].(protocol.RedoApplied).Stroke
	require.NotNil(t, stroke)
	assert.Equal(t, "s1", stroke.ID)
	assert.Len(t, stroke.Points, 2)
	assert.Equal(t, "#abc", stroke.Color)
}

func TestCoordinator_JoinerGetsSnapshotAndEveryoneGetsMembership(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA", Name: "A", Color: "#e74c3c"})
	coord.Dispatch(connA, protocol.DrawStart{X: 1, Y: 1, Color: "#000", LineWidth: 1, Tool: "brush", StrokeID: "s1"})
	coord.Dispatch(connA, protocol.DrawEnd{StrokeID: "s1"})
	drain(t, coord)

	connB := &fakeConn{}
	coord.Join(connB, domain.User{ID: "uB", Name: "B", Color: "#3498db"})
	drain(t, coord)

	// Snapshot goes to the joiner only.
	states := connB.messagesOfType(t, protocol.TypeCanvasState)
	require.Len(t, states, 1)
	snapshot := states[0].(protocol.CanvasState)
	require.Len(t, snapshot.History, 1)
	assert.Equal(t, "s1", snapshot.History[0].ID)

	// Both members got the two-user membership list.
	for _, conn := range []*fakeConn{connA, connB} {
		updates := conn.messagesOfType(t, protocol.TypeUsersUpdated)
		require.NotEmpty(t, updates)
		last := updates[len(updates)-1].(protocol.UsersUpdated)
		assert.Len(t, last.Users, 2)
	}
}

func TestCoordinator_CursorMoveExcludesSender(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})
	coord.Join(connB, domain.User{ID: "uB"})

	coord.Dispatch(connA, protocol.CursorMove{X: 42, Y: 43})
	drain(t, coord)

	assert.Empty(t, connA.messagesOfType(t, protocol.TypeCursorMove))
	cursors := connB.messagesOfType(t, protocol.TypeCursorMove)
	require.Len(t, cursors, 1)
	cursor := cursors[0].(protocol.RemoteCursor)
	assert.Equal(t, 42.0, cursor.X)
	assert.Equal(t, "uA", cursor.UserID)
}

func TestCoordinator_LeaveAutoEndsOwnedStrokes(t *testing.T) {
	coord := startRoom(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})
	coord.Join(connB, domain.User{ID: "uB"})

	coord.Dispatch(connA, protocol.DrawStart{X: 1, Y: 1, Color: "#000", LineWidth: 1, Tool: "brush", StrokeID: "s1"})
	coord.Leave(connA)
	blob := drain(t, coord)

	state := domain.NewDrawingState()
	require.NoError(t, state.Deserialize(blob))
	assert.Equal(t, []string{"s1"}, state.HistoryIDs(), "owner disconnect completes the stroke")

	ends := connB.messagesOfType(t, protocol.TypeDrawEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "s1", ends[0].(protocol.RemoteDrawEnd).StrokeID)
}

func TestCoordinator_EmptyRoomTriggersEviction(t *testing.T) {
	evicted := make(chan string, 1)
	coord := New("r1", func(roomID string) { evicted <- roomID })
	go coord.Run()
	defer coord.Close()

	conn := &fakeConn{}
	coord.Join(conn, domain.User{ID: "uA"})
	coord.Leave(conn)

	select {
	case id := <-evicted:
		assert.Equal(t, "r1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("eviction callback never fired")
	}
}

func TestCoordinator_LoadStateRebroadcastsCanvas(t *testing.T) {
	source := domain.NewDrawingState()
	source.StartStroke(&domain.Stroke{ID: "s1", OwnerID: "uX", Tool: domain.ToolBrush, Color: "#000", LineWidth: 1})
	source.EndStroke("s1")
	blob, err := source.Serialize()
	require.NoError(t, err)

	coord := startRoom(t)
	connA := &fakeConn{}
	coord.Join(connA, domain.User{ID: "uA"})
	drain(t, coord)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, coord.LoadState(ctx, blob))

	states := connA.messagesOfType(t, protocol.TypeCanvasState)
	require.Len(t, states, 2, "join snapshot plus load re-broadcast")
	loaded := states[1].(protocol.CanvasState)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "s1", loaded.History[0].ID)
}
