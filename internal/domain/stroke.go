// Package domain defines the core data structures of the drawing platform.
package domain

// Tool identifies the drawing instrument used for a stroke.
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
)

// Valid reports whether the tool is one of the supported instruments.
func (t Tool) Valid() bool {
	return t == ToolBrush || t == ToolEraser
}

// Point is a single recorded position within a stroke. Immutable once
// appended.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// Stroke is one continuous drawing gesture: an ordered point sequence plus
// style metadata. The ID is unique within a room and stable across
// undo/redo; it is never reused for a different logical stroke.
type Stroke struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"ownerId"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      Tool    `json:"tool"`
	StartTime int64   `json:"startTime"`
	EndTime   int64   `json:"endTime,omitempty"` // zero while the stroke is active
}

// Clone returns a deep copy so callers outside the room coordinator can
// hold a stroke without aliasing the coordinator-owned point slice.
func (s *Stroke) Clone() *Stroke {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Points = make([]Point, len(s.Points))
	copy(cp.Points, s.Points)
	return &cp
}
