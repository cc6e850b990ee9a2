package endpoint

import "errors"

var (
	ErrInvalidConfig    = errors.New("endpoint: invalid config")
	ErrNoTransport      = errors.New("endpoint: no transport factory configured")
	ErrSessionClosed    = errors.New("endpoint: session is already closed")
	ErrNilSession       = errors.New("endpoint: nil session")
	ErrNotConnected     = errors.New("endpoint: client is not connected")
	ErrAlreadyConnected = errors.New("endpoint: client is already connected")
)
