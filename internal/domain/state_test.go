package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStroke(id, owner string) *Stroke {
	return &Stroke{
		ID:        id,
		OwnerID:   owner,
		Points:    []Point{{X: 1, Y: 1, Timestamp: 1}},
		Color:     "#000000",
		LineWidth: 5,
		Tool:      ToolBrush,
		StartTime: 1,
	}
}

func TestDrawingState_HistoryOrderMatchesCompletionOrder(t *testing.T) {
	state := NewDrawingState()

	const n = 7
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		state.StartStroke(newTestStroke(id, "u1"))
		state.AddPoint(id, float64(i), float64(i))
		state.EndStroke(id)
	}

	ids := state.HistoryIDs()
	require.Len(t, ids, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("s%d", i), ids[i])
	}
}

func TestDrawingState_StartMoveEnd(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("s1", "u1"))
	state.AddPoint("s1", 20, 20)
	completed := state.EndStroke("s1")

	require.NotNil(t, completed)
	assert.Equal(t, []string{"s1"}, state.HistoryIDs())
	assert.Len(t, completed.Points, 2)
	assert.NotZero(t, completed.EndTime)
	assert.Empty(t, state.ActiveStrokes())
}

func TestDrawingState_StartStrokeDuplicateIDIsNoop(t *testing.T) {
	state := NewDrawingState()

	first := newTestStroke("s1", "u1")
	state.StartStroke(first)
	state.StartStroke(newTestStroke("s1", "u2"))

	active := state.ActiveStrokes()
	require.Len(t, active, 1)
	assert.Equal(t, "u1", active["s1"].OwnerID)

	// A completed id is also off-limits: ids are never reused.
	state.EndStroke("s1")
	state.StartStroke(newTestStroke("s1", "u2"))
	assert.Empty(t, state.ActiveStrokes())
}

func TestDrawingState_AddPointUnknownIDIsSilentlyIgnored(t *testing.T) {
	state := NewDrawingState()

	// Late-arriving point after the owner already ended the stroke.
	state.AddPoint("ghost", 10, 10)
	assert.Empty(t, state.ActiveStrokes())
	assert.Empty(t, state.HistoryIDs())
}

func TestDrawingState_EndStrokeClearsRedoStack(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("s1", "u1"))
	state.EndStroke("s1")
	_, err := state.Undo()
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, state.RedoIDs())

	state.StartStroke(newTestStroke("s2", "u1"))
	state.EndStroke("s2")

	assert.Empty(t, state.RedoIDs(), "completing a stroke invalidates redo")
	assert.Equal(t, []string{"s2"}, state.HistoryIDs())
}

func TestDrawingState_UndoRedoRoundTrip(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("s1", "u1"))
	state.EndStroke("s1")

	undone, err := state.Undo()
	require.NoError(t, err)
	assert.Equal(t, "s1", undone.ID)
	assert.Empty(t, state.HistoryIDs())
	assert.Equal(t, []string{"s1"}, state.RedoIDs())

	restored, err := state.Redo()
	require.NoError(t, err)
	assert.Equal(t, "s1", restored.ID)
	assert.Equal(t, []string{"s1"}, state.HistoryIDs())
	assert.Empty(t, state.RedoIDs())
}

func TestDrawingState_UndoEmptyHistory(t *testing.T) {
	state := NewDrawingState()

	stroke, err := state.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Nil(t, stroke)
	assert.Empty(t, state.HistoryIDs())
	assert.Empty(t, state.RedoIDs())
}

func TestDrawingState_RedoEmptyStack(t *testing.T) {
	state := NewDrawingState()

	stroke, err := state.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Nil(t, stroke)
}

func TestDrawingState_UndoRedoNeverTouchActiveStrokes(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("done", "u1"))
	state.EndStroke("done")
	state.StartStroke(newTestStroke("wip", "u1"))

	_, err := state.Undo()
	require.NoError(t, err)
	assert.Contains(t, state.ActiveStrokes(), "wip")

	_, err = state.Redo()
	require.NoError(t, err)
	assert.Contains(t, state.ActiveStrokes(), "wip")
}

func TestDrawingState_ClearEmptiesEverything(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("s1", "u1"))
	state.EndStroke("s1")
	state.StartStroke(newTestStroke("s2", "u2"))
	_, err := state.Undo()
	require.NoError(t, err)

	state.Clear()

	assert.Empty(t, state.HistoryIDs())
	assert.Empty(t, state.RedoIDs())
	assert.Empty(t, state.ActiveStrokes())
	assert.Empty(t, state.History())
}

func TestDrawingState_SerializeRoundTrip(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("s1", "u1"))
	state.AddPoint("s1", 2, 3)
	state.EndStroke("s1")
	state.StartStroke(newTestStroke("s2", "u1"))
	state.EndStroke("s2")
	_, err := state.Undo()
	require.NoError(t, err)
	// An in-progress stroke must be dropped on serialize.
	state.StartStroke(newTestStroke("wip", "u2"))

	blob, err := state.Serialize()
	require.NoError(t, err)

	restored := NewDrawingState()
	require.NoError(t, restored.Deserialize(blob))

	assert.Equal(t, []string{"s1"}, restored.HistoryIDs())
	assert.Equal(t, []string{"s2"}, restored.RedoIDs())
	assert.Empty(t, restored.ActiveStrokes())

	history := restored.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0].Points, 2)

	// The undone stroke's data survives so redo still works after a load.
	stroke, err := restored.Redo()
	require.NoError(t, err)
	assert.Equal(t, "s2", stroke.ID)
}

func TestDrawingState_DeserializeRejectsGarbage(t *testing.T) {
	state := NewDrawingState()
	assert.Error(t, state.Deserialize("{not json"))
}

func TestDrawingState_DeserializeRejectsDanglingReferences(t *testing.T) {
	state := NewDrawingState()
	state.StartStroke(newTestStroke("keep", "u1"))
	state.EndStroke("keep")

	cases := map[string]string{
		"history references missing stroke": `{"strokes":{},"history":["ghost"],"redoStack":[]}`,
		"redo references missing stroke":    `{"strokes":{},"history":[],"redoStack":["ghost"]}`,
		"null stroke entry":                 `{"strokes":{"s1":null},"history":["s1"],"redoStack":[]}`,
		"id in both stacks":                 `{"strokes":{"s1":{"id":"s1"}},"history":["s1"],"redoStack":["s1"]}`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, state.Deserialize(blob))
			// The rejected blob must not have touched the store: undo
			// still operates on the prior content.
			undone, err := state.Undo()
			require.NoError(t, err)
			require.NotNil(t, undone)
			assert.Equal(t, "keep", undone.ID)
			_, err = state.Redo()
			require.NoError(t, err)
		})
	}
}

func TestDrawingState_ActiveIDsOwnedBy(t *testing.T) {
	state := NewDrawingState()

	state.StartStroke(newTestStroke("a", "u1"))
	state.StartStroke(newTestStroke("b", "u2"))
	state.StartStroke(newTestStroke("c", "u1"))

	owned := state.ActiveIDsOwnedBy("u1")
	assert.ElementsMatch(t, []string{"a", "c"}, owned)
	assert.Empty(t, state.ActiveIDsOwnedBy("u3"))
}
