// Package registry provides the in-memory room registry. Rooms are
// ephemeral: nothing here survives a restart, saved sessions are the only
// durable artifact.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/room"
)

// Memory is a mutex-guarded map of live coordinators implementing
// room.Registry.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*room.Coordinator
	log   *logrus.Entry
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*room.Coordinator),
		log:   logrus.WithField("component", "room_registry"),
	}
}

// GetOrCreate returns the live coordinator for the id, creating one and
// starting its Run loop on first use.
func (m *Memory) GetOrCreate(id string) *room.Coordinator {
	m.mu.RLock()
	coord, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok && !coord.Closed() {
		return coord
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have created it between the locks. A closed
	// coordinator still in the map (its last member just left) is
	// replaced so the caller never joins a dead room.
	if coord, ok = m.rooms[id]; ok && !coord.Closed() {
		return coord
	}
	coord = room.New(id, m.Evict)
	m.rooms[id] = coord
	go coord.Run()
	m.log.WithField("room_id", id).Info("Room created")
	return coord
}

// Get returns the coordinator if the room is live.
func (m *Memory) Get(id string) (*room.Coordinator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coord, ok := m.rooms[id]
	if ok && coord.Closed() {
		return nil, false
	}
	return coord, ok
}

// Evict removes and stops a live room. Called by the coordinator itself
// when its last member leaves. The close is conditional: a join already
// queued behind that leave keeps the room alive.
func (m *Memory) Evict(id string) {
	m.mu.Lock()
	coord, ok := m.rooms[id]
	if ok && !coord.CloseIfIdle() {
		m.mu.Unlock()
		m.log.WithField("room_id", id).Debug("Eviction skipped, commands pending")
		return
	}
	if ok {
		delete(m.rooms, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.log.WithField("room_id", id).Info("Room evicted")
}

// ActiveIDs lists all live room ids, for the autosave worker.
func (m *Memory) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}
