package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the username or password is
	// wrong. Callers must not distinguish which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a token cannot be parsed, is expired
	// or is signed with the wrong key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownUser is returned when a valid token names a deleted user.
	ErrUnknownUser = errors.New("unknown user")
)
