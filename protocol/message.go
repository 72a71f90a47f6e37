// Package protocol defines the wire messages exchanged between clients and
// the gateway, a strict decode step producing one tagged variant per event
// name, and the semantic validation applied before an event may reach a
// room. Decode failures and semantic (range) failures are distinct error
// paths.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client-originated event names.
const (
	TypeJoinRoom   = "join-room"
	TypeDrawStart  = "draw-start"
	TypeDrawMove   = "draw-move"
	TypeDrawEnd    = "draw-end"
	TypeCursorMove = "cursor-move"
	TypeUndo       = "undo"
	TypeRedo       = "redo"
	TypeClear      = "clear"
	TypePing       = "ping"
)

// Server-originated event names.
const (
	TypeCanvasState  = "canvas-state"
	TypeUndoFailed   = "undo-failed"
	TypeRedoFailed   = "redo-failed"
	TypeUsersUpdated = "users-updated"
	TypeError        = "error"
	TypePong         = "pong"
)

// Event is one decoded client message.
type Event interface {
	EventType() string
}

// JoinRoom asks to become a member of a room, leaving the previous one.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// DrawStart begins a stroke. StrokeID may be empty, in which case the
// gateway assigns one before the event reaches the room.
type DrawStart struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
	StrokeID  string  `json:"strokeId,omitempty"`
}

// DrawMove appends a point to an active stroke.
type DrawMove struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	StrokeID string  `json:"strokeId"`
}

// DrawEnd completes an active stroke.
type DrawEnd struct {
	StrokeID string `json:"strokeId"`
}

// CursorMove reports the pointer position for remote cursor display.
type CursorMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Undo removes the most recent completed stroke of the room (any owner).
type Undo struct{}

// Redo restores the most recently undone stroke.
type Redo struct{}

// Clear wipes the room canvas.
type Clear struct{}

// Ping carries a client timestamp; the gateway echoes it back as pong. The
// round trip is observational telemetry only.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

func (JoinRoom) EventType() string   { return TypeJoinRoom }
func (DrawStart) EventType() string  { return TypeDrawStart }
func (DrawMove) EventType() string   { return TypeDrawMove }
func (DrawEnd) EventType() string    { return TypeDrawEnd }
func (CursorMove) EventType() string { return TypeCursorMove }
func (Undo) EventType() string       { return TypeUndo }
func (Redo) EventType() string       { return TypeRedo }
func (Clear) EventType() string      { return TypeClear }
func (Ping) EventType() string       { return TypePing }

// DecodeError marks a message that could not be parsed into a known tagged
// variant. It is distinct from semantic validation failure.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: decode failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope carries only the discriminator; the concrete variant is
// re-parsed from the full raw payload.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses a raw message into its tagged variant. Unknown event names
// and malformed field types fail with *DecodeError.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	var (
		event Event
		err   error
	)
	switch env.Type {
	case TypeJoinRoom:
		event, err = decodeInto[JoinRoom](raw)
	case TypeDrawStart:
		event, err = decodeInto[DrawStart](raw)
	case TypeDrawMove:
		event, err = decodeInto[DrawMove](raw)
	case TypeDrawEnd:
		event, err = decodeInto[DrawEnd](raw)
	case TypeCursorMove:
		event, err = decodeInto[CursorMove](raw)
	case TypeUndo:
		event = Undo{}
	case TypeRedo:
		event = Redo{}
	case TypeClear:
		event = Clear{}
	case TypePing:
		event, err = decodeInto[Ping](raw)
	case "":
		return nil, &DecodeError{Reason: "missing event type"}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown event type %q", env.Type)}
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func decodeInto[T Event](raw []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("malformed %s payload", v.EventType()), Err: err}
	}
	return v, nil
}

// Encode marshals a client event with its type tag for the wire.
func Encode(event Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode %s: %w", event.EventType(), err)
	}
	return injectType(event.EventType(), body)
}

// injectType splices the type discriminator into an already-marshaled
// object.
func injectType(eventType string, body []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("protocol: failed to tag %s: %w", eventType, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	tag, _ := json.Marshal(eventType)
	fields["type"] = tag
	return json.Marshal(fields)
}
