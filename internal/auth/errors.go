package auth

import "errors"

// Verification outcomes. Expired is kept distinct from invalid so the
// caller can choose a different client-facing message; both reject the
// claim.
var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)
