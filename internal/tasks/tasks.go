// Package tasks defines the asynq task types and payload constructors.
package tasks

import "encoding/json"

const (
	// TypeSessionAutosave sweeps all live rooms and saves their canvases.
	TypeSessionAutosave = "session:autosave"
)

// SessionAutosavePayload is the (currently empty) payload of the periodic
// autosave sweep. Kept as a struct so fields can be added without
// changing queued task compatibility.
type SessionAutosavePayload struct{}

// NewSessionAutosaveTask builds the payload bytes for an autosave task.
func NewSessionAutosaveTask() ([]byte, error) {
	return json.Marshal(SessionAutosavePayload{})
}
