package config

import "fmt"

// Error is returned by Load for any problem with the configuration source.
// It is fatal to startup.
type Error struct {
	// Path is the resolved config file path.
	Path string
	// Op names the failing stage: "resolve", "read", "decode" or "validate".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("config %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
