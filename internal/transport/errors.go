package transport

import "errors"

var (
	ErrServerFull = errors.New("server at connection capacity")
)
