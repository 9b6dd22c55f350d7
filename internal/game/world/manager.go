package world

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe access to the loaded room set, indexed by
// room ID for O(1) lookup.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	startRoom string
}

// NewManager creates a Manager from the given rooms. The first room is the
// default entry room.
//
// Precondition: rooms must contain at least one room.
// Postcondition: Returns a Manager with all rooms indexed by ID, or an error
// on duplicate room IDs.
func NewManager(rooms []*Room) (*Manager, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("at least one room is required")
	}
	m := &Manager{
		rooms:     make(map[string]*Room, len(rooms)),
		startRoom: rooms[0].ID,
	}
	for _, r := range rooms {
		if _, exists := m.rooms[r.ID]; exists {
			return nil, fmt.Errorf("duplicate room ID: %q", r.ID)
		}
		m.rooms[r.ID] = r
	}
	return m, nil
}

// ValidateGates checks that every gate target in every room resolves to a
// known room. Call this after NewManager to catch dangling references.
//
// Postcondition: Returns nil if all gates resolve, or an error naming the
// first dangling target.
func (m *Manager) ValidateGates() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, room := range m.rooms {
		for _, g := range room.Gates {
			if _, ok := m.rooms[g.TargetRoom]; !ok {
				return fmt.Errorf("room %q: gate %q targets unknown room %q", id, g.Direction, g.TargetRoom)
			}
		}
	}
	return nil
}

// Room returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (m *Manager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// StartRoom returns the ID of the default entry room.
func (m *Manager) StartRoom() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startRoom
}

// RoomCount returns the number of loaded rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
