package domain

import "time"

// SavedSession is a persisted canvas: the serialized DrawingState of a room
// at save time, stored as a JSON blob in a relational row. Rooms themselves
// are ephemeral; saved sessions are the only durable artifact.
type SavedSession struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Handle    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"handle"`
	RoomID    string    `gorm:"type:varchar(191);index;not null" json:"roomId"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	State     string    `gorm:"type:mediumtext;not null" json:"-"` // serialized DrawingState
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// SessionMeta is the listing view of a saved session, without the state
// blob.
type SessionMeta struct {
	Handle    string    `json:"handle"`
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meta projects the row to its listing view.
func (s *SavedSession) Meta() SessionMeta {
	return SessionMeta{
		Handle:    s.Handle,
		RoomID:    s.RoomID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
	}
}
