package types

import "unicode"

const (
	maxRoomNameLength = 128
	maxIdentityLength = 64
	maxTextLength     = 4096
)

// IsValidRoomName reports whether a room name is acceptable: non-empty,
// bounded, and free of control characters.
func IsValidRoomName(name string) bool {
	if name == "" || len(name) > maxRoomNameLength {
		return false
	}
	return printable(name)
}

// IsValidIdentity reports whether a user identity is acceptable.
func IsValidIdentity(identity string) bool {
	if identity == "" || len(identity) > maxIdentityLength {
		return false
	}
	return printable(identity)
}

// IsValidText bounds message bodies. Empty text is allowed; typing
// frames carry no text at all.
func IsValidText(text string) bool {
	return len(text) <= maxTextLength
}

func printable(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
