package room

// Registry is the pluggable lookup for live room coordinators. Rooms are
// created lazily on first join and evicted once empty; swapping the
// implementation (for sharding or persistence) must not touch protocol
// logic.
type Registry interface {
	// GetOrCreate returns the coordinator for the id, creating and
	// starting one if the room does not exist yet.
	GetOrCreate(id string) *Coordinator

	// Get returns the coordinator if the room is live.
	Get(id string) (*Coordinator, bool)

	// Evict removes and stops the room if it is live.
	Evict(id string)

	// ActiveIDs lists the ids of all live rooms.
	ActiveIDs() []string
}
