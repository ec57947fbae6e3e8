package registry

import "errors"

var (
	ErrCapacityExceeded  = errors.New("registry at connection capacity")
	ErrAlreadyIdentified = errors.New("connection already has an identity")
	ErrNotFound          = errors.New("connection not found")
	ErrInvalidIdentity   = errors.New("identity cannot be empty")
)
