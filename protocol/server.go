package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
)

// ServerMessage is one decoded server-originated message.
type ServerMessage interface {
	MessageType() string
}

// CanvasState is the full snapshot sent to a joining connection only:
// completed strokes in z-order plus the in-progress strokes, so the joiner
// can render mid-gesture lines.
type CanvasState struct {
	History      []*domain.Stroke          `json:"history"`
	CurrentState map[string]*domain.Stroke `json:"currentState"`
}

// RemoteDrawStart mirrors a draw-start from another member.
type RemoteDrawStart struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
	StrokeID  string  `json:"strokeId"`
	UserID    string  `json:"userId"`
}

// RemoteDrawMove mirrors a draw-move from another member.
type RemoteDrawMove struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	StrokeID string  `json:"strokeId"`
	UserID   string  `json:"userId"`
}

// RemoteDrawEnd mirrors a draw-end from another member.
type RemoteDrawEnd struct {
	StrokeID string `json:"strokeId"`
	UserID   string `json:"userId"`
}

// RemoteCursor mirrors a cursor-move from another member.
type RemoteCursor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"userId"`
}

// UndoApplied announces a room-wide undo, actor included.
type UndoApplied struct {
	StrokeID string `json:"strokeId"`
	UserID   string `json:"userId"`
}

// RedoApplied announces a room-wide redo with the full restored stroke.
type RedoApplied struct {
	Stroke *domain.Stroke `json:"stroke"`
	UserID string         `json:"userId"`
}

// UndoFailed tells the requesting actor only that there was nothing to
// undo.
type UndoFailed struct {
	Message string `json:"message"`
}

// RedoFailed tells the requesting actor only that there was nothing to
// redo.
type RedoFailed struct {
	Message string `json:"message"`
}

// ClearApplied announces a room-wide clear, actor included.
type ClearApplied struct {
	UserID string `json:"userId"`
}

// UsersUpdated carries the current membership list of the room.
type UsersUpdated struct {
	Users []domain.User `json:"users"`
}

// ErrorMessage is sent to the offending connection only; invalid data is
// never broadcast.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Pong echoes a ping timestamp back to the sender.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (CanvasState) MessageType() string     { return TypeCanvasState }
func (RemoteDrawStart) MessageType() string { return TypeDrawStart }
func (RemoteDrawMove) MessageType() string  { return TypeDrawMove }
func (RemoteDrawEnd) MessageType() string   { return TypeDrawEnd }
func (RemoteCursor) MessageType() string    { return TypeCursorMove }
func (UndoApplied) MessageType() string     { return TypeUndo }
func (RedoApplied) MessageType() string     { return TypeRedo }
func (UndoFailed) MessageType() string      { return TypeUndoFailed }
func (RedoFailed) MessageType() string      { return TypeRedoFailed }
func (ClearApplied) MessageType() string    { return TypeClear }
func (UsersUpdated) MessageType() string    { return TypeUsersUpdated }
func (ErrorMessage) MessageType() string    { return TypeError }
func (Pong) MessageType() string            { return TypePong }

// EncodeServer marshals a server message with its type tag.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode %s: %w", msg.MessageType(), err)
	}
	return injectType(msg.MessageType(), body)
}

// DecodeServer parses a raw server message into its tagged variant. Used
// by the client reconciliation layer.
func DecodeServer(raw []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	var msg ServerMessage
	var err error
	switch env.Type {
	case TypeCanvasState:
		msg, err = decodeServerInto[CanvasState](raw)
	case TypeDrawStart:
		msg, err = decodeServerInto[RemoteDrawStart](raw)
	case TypeDrawMove:
		msg, err = decodeServerInto[RemoteDrawMove](raw)
	case TypeDrawEnd:
		msg, err = decodeServerInto[RemoteDrawEnd](raw)
	case TypeCursorMove:
		msg, err = decodeServerInto[RemoteCursor](raw)
	case TypeUndo:
		msg, err = decodeServerInto[UndoApplied](raw)
	case TypeRedo:
		msg, err = decodeServerInto[RedoApplied](raw)
	case TypeUndoFailed:
		msg, err = decodeServerInto[UndoFailed](raw)
	case TypeRedoFailed:
		msg, err = decodeServerInto[RedoFailed](raw)
	case TypeClear:
		msg, err = decodeServerInto[ClearApplied](raw)
	case TypeUsersUpdated:
		msg, err = decodeServerInto[UsersUpdated](raw)
	case TypeError:
		msg, err = decodeServerInto[ErrorMessage](raw)
	case TypePong:
		msg, err = decodeServerInto[Pong](raw)
	case "":
		return nil, &DecodeError{Reason: "missing message type"}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown message type %q", env.Type)}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeServerInto[T ServerMessage](raw []byte) (ServerMessage, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("malformed %s payload", v.MessageType()), Err: err}
	}
	return v, nil
}
