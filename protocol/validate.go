package protocol

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Canvas coordinate and style bounds. Events outside these ranges are
// rejected at the gateway (and pre-checked by the client SDK) and never
// applied or broadcast.
const (
	CoordMin     = 0
	CoordMax     = 10000
	LineWidthMin = 1
	LineWidthMax = 100
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidationError marks a well-formed message whose field values are out
// of range or otherwise semantically invalid.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("protocol: invalid %s: %s", e.Field, e.Reason)
}

// Validate applies the semantic rules for the given event. A nil return
// means the event may be routed to a room.
func Validate(event Event) error {
	switch ev := event.(type) {
	case JoinRoom:
		if strings.TrimSpace(ev.RoomID) == "" {
			return &ValidationError{Field: "roomId", Reason: "must be a non-empty identifier"}
		}
	case DrawStart:
		if err := validateCoords(ev.X, ev.Y); err != nil {
			return err
		}
		if !hexColorPattern.MatchString(ev.Color) && !strings.HasPrefix(ev.Color, "rgb") {
			return &ValidationError{Field: "color", Reason: "must be 3/6-digit hex or rgb()"}
		}
		if ev.LineWidth < LineWidthMin || ev.LineWidth > LineWidthMax || !isFinite(ev.LineWidth) {
			return &ValidationError{Field: "lineWidth", Reason: fmt.Sprintf("must be in [%d,%d]", LineWidthMin, LineWidthMax)}
		}
		if ev.Tool != "brush" && ev.Tool != "eraser" {
			return &ValidationError{Field: "tool", Reason: "must be brush or eraser"}
		}
	case DrawMove:
		if err := validateCoords(ev.X, ev.Y); err != nil {
			return err
		}
		if err := validateStrokeID(ev.StrokeID); err != nil {
			return err
		}
	case DrawEnd:
		if err := validateStrokeID(ev.StrokeID); err != nil {
			return err
		}
	case CursorMove:
		if err := validateCoords(ev.X, ev.Y); err != nil {
			return err
		}
	}
	return nil
}

func validateCoords(x, y float64) error {
	if !isFinite(x) || x < CoordMin || x > CoordMax {
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("must be a finite number in [%d,%d]", CoordMin, CoordMax)}
	}
	if !isFinite(y) || y < CoordMin || y > CoordMax {
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("must be a finite number in [%d,%d]", CoordMin, CoordMax)}
	}
	return nil
}

func validateStrokeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "strokeId", Reason: "must be a non-empty identifier"}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
