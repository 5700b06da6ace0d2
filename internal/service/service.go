package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidSegment       = errors.New("invalid segment")
	ErrOutOfOrderSegment    = errors.New("out of order segment")
	ErrConfigurationInvalid = errors.New("configuration invalid")

	ErrSessionClosed = errors.New("session closed")
	ErrTimeout       = errors.New("timeout")
)
