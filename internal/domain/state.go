package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel results for undo/redo on empty stacks. These are reported back
// to the requesting user only, never treated as failures of the room loop.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DrawingState is the authoritative stroke collection of one room.
//
// It is not safe for concurrent use. The room coordinator is the single
// writer: it processes mutations one at a time from its mailbox, which is
// what makes the no-op semantics and the history ordering below well
// defined without any locking here.
//
// Invariants:
//   - completed and active strokes are disjoint by id
//   - a stroke id is in at most one of history/redoStack, never both
//   - completing a stroke clears the redo stack (branching invalidates it)
//   - undo/redo never touch active strokes
type DrawingState struct {
	strokes   map[string]*Stroke // completed strokes by id
	active    map[string]*Stroke // in-progress strokes by id
	history   []string           // completed stroke ids in z-order
	redoStack []string           // undone stroke ids, most recent last
}

// NewDrawingState returns an empty store.
func NewDrawingState() *DrawingState {
	return &DrawingState{
		strokes: make(map[string]*Stroke),
		active:  make(map[string]*Stroke),
	}
}

// StartStroke begins a new active stroke with its first point. A no-op if
// the id is already active or already completed (ids are never reused).
func (d *DrawingState) StartStroke(stroke *Stroke) {
	if stroke == nil || stroke.ID == "" {
		return
	}
	if _, ok := d.active[stroke.ID]; ok {
		return
	}
	if _, ok := d.strokes[stroke.ID]; ok {
		return
	}
	d.active[stroke.ID] = stroke
}

// AddPoint appends a timestamped point to an active stroke. An unknown id
// is silently ignored: points routinely arrive after the owner already
// ended the stroke or disconnected, and that is not an error.
func (d *DrawingState) AddPoint(strokeID string, x, y float64) {
	stroke, ok := d.active[strokeID]
	if !ok {
		return
	}
	stroke.Points = append(stroke.Points, Point{
		X:         x,
		Y:         y,
		Timestamp: time.Now().UnixMilli(),
	})
}

// EndStroke completes an active stroke: it moves to the completed set, its
// id is appended to the history tail, and the redo stack is cleared. A
// no-op returning nil if the id is not active.
func (d *DrawingState) EndStroke(strokeID string) *Stroke {
	stroke, ok := d.active[strokeID]
	if !ok {
		return nil
	}
	delete(d.active, strokeID)
	stroke.EndTime = time.Now().UnixMilli()
	d.strokes[strokeID] = stroke
	d.history = append(d.history, strokeID)
	d.redoStack = nil
	return stroke
}

// Undo pops the history tail onto the redo stack and returns the removed
// stroke. Returns ErrNothingToUndo without mutation if history is empty.
func (d *DrawingState) Undo() (*Stroke, error) {
	if len(d.history) == 0 {
		return nil, ErrNothingToUndo
	}
	last := len(d.history) - 1
	id := d.history[last]
	d.history = d.history[:last]
	d.redoStack = append(d.redoStack, id)
	return d.strokes[id], nil
}

// Redo pops the redo stack back onto the history tail and returns the
// restored stroke. Returns ErrNothingToRedo without mutation if the redo
// stack is empty.
func (d *DrawingState) Redo() (*Stroke, error) {
	if len(d.redoStack) == 0 {
		return nil, ErrNothingToRedo
	}
	last := len(d.redoStack) - 1
	id := d.redoStack[last]
	d.redoStack = d.redoStack[:last]
	d.history = append(d.history, id)
	return d.strokes[id], nil
}

// Clear atomically empties all four collections.
func (d *DrawingState) Clear() {
	d.strokes = make(map[string]*Stroke)
	d.active = make(map[string]*Stroke)
	d.history = nil
	d.redoStack = nil
}

// History returns the completed strokes in history order. This order is
// the render/z-order contract: later entries draw over earlier ones, so
// overlapping concurrent strokes resolve last-applied-wins by arrival
// order at the coordinator, not by client timestamp.
func (d *DrawingState) History() []*Stroke {
	out := make([]*Stroke, 0, len(d.history))
	for _, id := range d.history {
		if s, ok := d.strokes[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// HistoryIDs returns the history id order. Mostly useful to tests and
// diagnostics.
func (d *DrawingState) HistoryIDs() []string {
	out := make([]string, len(d.history))
	copy(out, d.history)
	return out
}

// RedoIDs returns the redo stack ids, most recent last.
func (d *DrawingState) RedoIDs() []string {
	out := make([]string, len(d.redoStack))
	copy(out, d.redoStack)
	return out
}

// ActiveStrokes returns the in-progress strokes by id.
func (d *DrawingState) ActiveStrokes() map[string]*Stroke {
	out := make(map[string]*Stroke, len(d.active))
	for id, s := range d.active {
		out[id] = s
	}
	return out
}

// ActiveIDsOwnedBy returns the ids of active strokes owned by the given
// user. Used by the auto-end policy when a member disconnects mid-stroke.
func (d *DrawingState) ActiveIDsOwnedBy(ownerID string) []string {
	var out []string
	for id, s := range d.active {
		if s.OwnerID == ownerID {
			out = append(out, id)
		}
	}
	return out
}

// statePayload is the serialization envelope. Active strokes are not
// meaningfully resumable and are dropped on serialize.
type statePayload struct {
	Strokes   map[string]*Stroke `json:"strokes"`
	History   []string           `json:"history"`
	RedoStack []string           `json:"redoStack"`
}

// Serialize exports completed strokes, history and the redo stack as a
// JSON blob for the persistence collaborator and for new-joiner sync.
func (d *DrawingState) Serialize() (string, error) {
	payload := statePayload{
		Strokes:   d.strokes,
		History:   d.history,
		RedoStack: d.redoStack,
	}
	if payload.History == nil {
		payload.History = []string{}
	}
	if payload.RedoStack == nil {
		payload.RedoStack = []string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("state: failed to serialize: %w", err)
	}
	return string(raw), nil
}

// Deserialize replaces the store content with a previously serialized
// blob. Active strokes are reset. A blob whose stacks reference a stroke
// that is missing (or null) is rejected without mutating the store:
// admitting it would leave Undo/Redo returning nil strokes.
func (d *DrawingState) Deserialize(blob string) error {
	var payload statePayload
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return fmt.Errorf("state: failed to deserialize: %w", err)
	}
	if payload.Strokes == nil {
		payload.Strokes = make(map[string]*Stroke)
	}
	for id, s := range payload.Strokes {
		if s == nil {
			return fmt.Errorf("state: corrupt blob: stroke %q is null", id)
		}
	}
	seen := make(map[string]struct{}, len(payload.History)+len(payload.RedoStack))
	for _, stack := range [][]string{payload.History, payload.RedoStack} {
		for _, id := range stack {
			if _, ok := payload.Strokes[id]; !ok {
				return fmt.Errorf("state: corrupt blob: unknown stroke %q referenced", id)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("state: corrupt blob: stroke %q referenced twice", id)
			}
			seen[id] = struct{}{}
		}
	}

	d.strokes = payload.Strokes
	d.active = make(map[string]*Stroke)
	d.history = payload.History
	d.redoStack = payload.RedoStack
	return nil
}
