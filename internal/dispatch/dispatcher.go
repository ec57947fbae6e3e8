// Package dispatch computes target sets and pushes frames onto target
// outbound queues. The dispatcher owns no state of its own: every call
// is a pure function of registry and room state plus the frame, which
// keeps fan-out testable without a live transport.
package dispatch

import (
	"roomhub/internal/registry"
	"roomhub/internal/room"
	"roomhub/pkg/types"
)

// Dispatcher fans frames out to connection queues. Enqueueing never
// blocks: a full target queue evicts its own oldest frame, so one slow
// consumer cannot stall delivery to anyone else. For any two frames
// dispatched to the same target in order, enqueue order matches
// dispatch order; no ordering holds across different targets.
type Dispatcher struct {
	registry *registry.Registry
	rooms    *room.Manager
}

// NewDispatcher wires the dispatcher to the shared registries.
func NewDispatcher(reg *registry.Registry, rooms *room.Manager) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		rooms:    rooms,
	}
}

// SendAll enqueues the frame on every live connection except the
// excluded one. An empty exclude id excludes nobody.
func (d *Dispatcher) SendAll(frame *types.Frame, excludeConnID string) {
	for _, conn := range d.registry.Snapshot() {
		if conn.ID() == excludeConnID {
			continue
		}
		conn.Queue().Enqueue(frame)
	}
}

// SendRoom enqueues the frame on every member of a room except the
// excluded connection. Membership is a best-effort snapshot: a member
// leaving concurrently may still receive the frame, but a connection
// fully removed before the snapshot never does — its queue is already
// sealed.
func (d *Dispatcher) SendRoom(roomName string, frame *types.Frame, excludeConnID string) {
	for _, connID := range d.rooms.Members(roomName) {
		if connID == excludeConnID {
			continue
		}
		if conn, ok := d.registry.Lookup(connID); ok {
			conn.Queue().Enqueue(frame)
		}
	}
}

// SendUser enqueues the frame on every connection bound to an identity,
// covering multi-tab fan-out. Unknown identities deliver to nobody.
func (d *Dispatcher) SendUser(identity string, frame *types.Frame) {
	for _, conn := range d.registry.LookupByIdentity(identity) {
		conn.Queue().Enqueue(frame)
	}
}
