package room

import "errors"

var (
	ErrInvalidRoomName = errors.New("invalid room name")
)
