package types

import (
	"encoding/json"
	"fmt"
)

// EventKind enumerates the inbound event types a client may send. The
// set is closed: SessionLifecycle matches it exhaustively, so adding a
// kind is a compile-visible change rather than a stringly-typed one.
type EventKind int

const (
	EventAuth EventKind = iota
	EventJoin
	EventLeave
	EventMessage
	EventPrivate
	EventTyping
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventAuth:
		return "auth"
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventMessage:
		return "message"
	case EventPrivate:
		return "private"
	case EventTyping:
		return "typing"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// InboundEvent is one parsed client frame.
type InboundEvent struct {
	Kind   EventKind
	Token  string // auth
	Room   string // join, leave, message, typing
	To     string // private: target identity
	Text   string // message, private
	Typing bool   // typing
}

// wireEvent mirrors the JSON envelope accepted from clients.
type wireEvent struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Room   string `json:"room,omitempty"`
	To     string `json:"to,omitempty"`
	Text   string `json:"text,omitempty"`
	Typing bool   `json:"typing,omitempty"`
}

// DecodeEvent parses a raw inbound frame into an InboundEvent. It
// rejects frames that are not JSON objects or whose type is not one of
// the six known kinds.
func DecodeEvent(data []byte) (*InboundEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var kind EventKind
	switch w.Type {
	case "auth":
		kind = EventAuth
	case "join":
		kind = EventJoin
	case "leave":
		kind = EventLeave
	case "message":
		kind = EventMessage
	case "private":
		kind = EventPrivate
	case "typing":
		kind = EventTyping
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
	}

	return &InboundEvent{
		Kind:   kind,
		Token:  w.Token,
		Room:   w.Room,
		To:     w.To,
		Text:   w.Text,
		Typing: w.Typing,
	}, nil
}

// EncodeEvent serializes an InboundEvent back to its wire form. Used by
// test clients; the server only decodes.
func EncodeEvent(ev *InboundEvent) ([]byte, error) {
	return json.Marshal(wireEvent{
		Type:   ev.Kind.String(),
		Token:  ev.Token,
		Room:   ev.Room,
		To:     ev.To,
		Text:   ev.Text,
		Typing: ev.Typing,
	})
}
