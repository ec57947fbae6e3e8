// Package room tracks which connections belong to which rooms. Rooms
// hold connection ids only — weak references resolved through the
// connection registry at dispatch time — so membership never extends a
// connection's lifetime.
package room

import (
	"sync"

	"roomhub/pkg/types"
)

// Manager keeps both membership directions, room→connections and
// connection→rooms, under one lock. A single mutex is what makes the
// symmetry invariant atomic: no reader can observe a connection in a
// room's member set without the room in that connection's joined set,
// or vice versa. Rooms are created on first join and deleted when their
// last member leaves.
type Manager struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // room -> connID set
	joined  map[string]map[string]struct{} // connID -> room set
}

// NewManager creates an empty room manager.
func NewManager() *Manager {
	return &Manager{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a room, creating the room if absent.
// Idempotent: joining a room twice is a no-op.
func (m *Manager) Join(connID, roomName string) error {
	if !types.IsValidRoomName(roomName) {
		return ErrInvalidRoomName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[roomName] == nil {
		m.members[roomName] = make(map[string]struct{})
	}
	m.members[roomName][connID] = struct{}{}

	if m.joined[connID] == nil {
		m.joined[connID] = make(map[string]struct{})
	}
	m.joined[connID][roomName] = struct{}{}

	return nil
}

// Leave removes a connection from a room. Idempotent: leaving a room
// the connection never joined is a no-op, not an error. An emptied room
// is deleted.
func (m *Manager) Leave(connID, roomName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(connID, roomName)
}

// LeaveAll removes the connection from every room it was in and
// returns the affected room names so the presence layer can notify
// each. Called during disconnect teardown.
func (m *Manager) LeaveAll(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := m.joined[connID]
	if len(rooms) == 0 {
		delete(m.joined, connID)
		return nil
	}

	affected := make([]string, 0, len(rooms))
	for roomName := range rooms {
		affected = append(affected, roomName)
	}
	for _, roomName := range affected {
		m.leaveLocked(connID, roomName)
	}
	return affected
}

// Members returns the connection ids in a room. An unknown room yields
// an empty set, not an error.
func (m *Manager) Members(roomName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.members[roomName]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// MemberCount reports a room's size without copying the member set.
func (m *Manager) MemberCount(roomName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[roomName])
}

// RoomsOf returns the rooms a connection currently belongs to.
func (m *Manager) RoomsOf(connID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.joined[connID]
	if len(set) == 0 {
		return nil
	}
	rooms := make([]string, 0, len(set))
	for roomName := range set {
		rooms = append(rooms, roomName)
	}
	return rooms
}

// Rooms returns the names of all live rooms.
func (m *Manager) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	return names
}

// RoomCount reports the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members)
}

// leaveLocked removes one membership edge from both maps. Caller holds
// the write lock.
func (m *Manager) leaveLocked(connID, roomName string) {
	if set, ok := m.members[roomName]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(m.members, roomName)
		}
	}
	if set, ok := m.joined[connID]; ok {
		delete(set, roomName)
		if len(set) == 0 {
			delete(m.joined, connID)
		}
	}
}
