// Package interfaces holds the contracts between the connection core
// and its collaborators. Components depend on these abstractions rather
// than concrete peers so each layer can be tested with fakes.
package interfaces

import (
	"roomhub/pkg/types"
)

// TokenVerifier validates an inbound identity claim. Implementations
// must be stateless and safe to call from any number of connection
// loops concurrently.
type TokenVerifier interface {
	// Verify returns the identity carried by the token, or
	// auth.ErrTokenExpired / auth.ErrTokenInvalid.
	Verify(token string) (string, error)
}

// Dispatcher fans frames out to connection outbound queues. An empty
// exclude id means no connection is excluded.
type Dispatcher interface {
	SendAll(frame *types.Frame, excludeConnID string)
	SendRoom(room string, frame *types.Frame, excludeConnID string)
	SendUser(identity string, frame *types.Frame)
}

// Presence receives membership transitions and pushes derived state to
// interested clients.
type Presence interface {
	OnJoinRoom(room string)
	OnLeaveRoom(room string)
	OnDisconnect(rooms []string)
	OnTyping(from, fromConnID, room string, typing bool)
}
