package bus

import "errors"

var (
	// ErrStopped is returned when sending on a bus that has been stopped.
	ErrStopped = errors.New("bus is shutting down")

	// ErrTimeout is returned when the bus queue stays full for too long.
	ErrTimeout = errors.New("timeout waiting for bus queue")

	// ErrBusInUse is returned when another running bus owns the Redis prefix.
	ErrBusInUse = errors.New("redis bus prefix is owned by another process")
)
