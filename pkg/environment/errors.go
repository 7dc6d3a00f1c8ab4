package environment

import "errors"

var (
	// ErrUnknownEnvironment is returned when resolving an environment
	// that is not configured.
	ErrUnknownEnvironment = errors.New("unknown environment")

	// ErrPoolExhausted is returned when a connection could not be
	// acquired within the environment's AcquireTimeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)
