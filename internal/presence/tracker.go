// Package presence derives aggregate room state — member counts and
// typing flags — from membership events and pushes it to clients. All
// presence state is ephemeral: nothing here survives a disconnect, and
// typing indicators carry no server-side expiry.
package presence

import (
	"roomhub/internal/room"
	"roomhub/pkg/interfaces"
	"roomhub/pkg/types"
)

// Tracker turns membership transitions into presence frames. It reads
// counts from the room manager at notification time, so a frame always
// reflects the state after the transition that triggered it.
type Tracker struct {
	rooms      *room.Manager
	dispatcher interfaces.Dispatcher
}

// NewTracker wires the tracker to the room manager and dispatcher.
func NewTracker(rooms *room.Manager, dispatcher interfaces.Dispatcher) *Tracker {
	return &Tracker{
		rooms:      rooms,
		dispatcher: dispatcher,
	}
}

// OnJoinRoom announces the new member count to the whole room,
// including the connection that just joined.
func (t *Tracker) OnJoinRoom(roomName string) {
	t.notify(roomName)
}

// OnLeaveRoom announces the reduced member count to the remaining
// members. If the room emptied out there is nobody left to tell and
// the frame reaches no one.
func (t *Tracker) OnLeaveRoom(roomName string) {
	t.notify(roomName)
}

// OnDisconnect announces updated counts for every room the departed
// connection belonged to. Best-effort: each room is notified
// independently.
func (t *Tracker) OnDisconnect(rooms []string) {
	for _, roomName := range rooms {
		t.notify(roomName)
	}
}

// OnTyping relays a typing indicator to the room, excluding the typist.
// Pure relay: no debounce and no timeout-to-clear is applied here.
func (t *Tracker) OnTyping(from, fromConnID, roomName string, typing bool) {
	t.dispatcher.SendRoom(roomName, types.NewTypingFrame(from, roomName, typing), fromConnID)
}

func (t *Tracker) notify(roomName string) {
	count := t.rooms.MemberCount(roomName)
	t.dispatcher.SendRoom(roomName, types.NewPresenceFrame(roomName, count), "")
}
