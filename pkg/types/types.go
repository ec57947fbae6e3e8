package types

import (
	"time"
)

// FrameType identifies an outbound envelope on the wire.
type FrameType string

const (
	FrameSystem         FrameType = "system"
	FrameMessage        FrameType = "message"
	FrameRoomMessage    FrameType = "room_message"
	FramePrivateMessage FrameType = "private_message"
	FramePresence       FrameType = "presence"
	FrameTyping         FrameType = "typing"
	FrameError          FrameType = "error"
)

// Error codes carried on error frames.
const (
	CodeNotAuthenticated  = "not_authenticated"
	CodeAlreadyIdentified = "already_identified"
	CodeRateLimited       = "rate_limited"
	CodeBadEvent          = "bad_event"
	CodeAuthFailed        = "auth_failed"
	CodeAuthExpired       = "auth_expired"
	CodeCapacityExceeded  = "capacity_exceeded"
)

// Frame is one delivery unit. The dispatcher enqueues the same Frame
// pointer on every target queue, so a Frame must not be mutated after
// it has been handed to a queue.
type Frame struct {
	Type      FrameType `json:"type"`
	From      string    `json:"from,omitempty"`
	Room      string    `json:"room,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Text      string    `json:"text,omitempty"`
	Typing    *bool     `json:"typing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code,omitempty"`
}

// NewSystemFrame builds a server-originated notice with no sender.
func NewSystemFrame(text string) *Frame {
	return &Frame{
		Type:      FrameSystem,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewBroadcastMessage builds a chat frame addressed to every connection.
func NewBroadcastMessage(from, text string) *Frame {
	return &Frame{
		Type:      FrameMessage,
		From:      from,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoomMessage builds a chat frame scoped to a single room.
func NewRoomMessage(from, room, text string) *Frame {
	return &Frame{
		Type:      FrameRoomMessage,
		From:      from,
		Room:      room,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewPrivateMessage builds a frame addressed to one identity.
func NewPrivateMessage(from, text string) *Frame {
	return &Frame{
		Type:      FramePrivateMessage,
		From:      from,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewPresenceFrame reports the current member count of a room.
func NewPresenceFrame(room string, count int) *Frame {
	return &Frame{
		Type:      FramePresence,
		Room:      room,
		Count:     &count,
		Timestamp: time.Now().UTC(),
	}
}

// NewTypingFrame relays a typing indicator. No expiry is attached;
// clearing a stale indicator is the client's concern.
func NewTypingFrame(from, room string, typing bool) *Frame {
	return &Frame{
		Type:      FrameTyping,
		From:      from,
		Room:      room,
		Typing:    &typing,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorFrame reports a rejected event back to its sender.
func NewErrorFrame(code, text string) *Frame {
	return &Frame{
		Type:      FrameError,
		Code:      code,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}
