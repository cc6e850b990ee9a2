package quic

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"
)

// Application error codes above the uint32 range are reserved for the host;
// codes within it carry the disconnect data of transport.Peer.Disconnect.
const (
	codeRefused     quic.ApplicationErrorCode = 1<<32 + 1
	codeBadHello    quic.ApplicationErrorCode = 1<<32 + 2
	codeHostClosing quic.ApplicationErrorCode = 1<<32 + 3
)

// Stream kinds announced by the first byte of a bidirectional stream.
const (
	streamHello   byte = 0x00
	streamChannel byte = 0x01
)

const (
	helloVersion   byte = 1
	maxPacketSize       = 1 << 20
	eventQueueSize      = 1024
)

var (
	ErrRefused       = errors.New("quic: connection refused by host")
	ErrBadHello      = errors.New("quic: malformed hello")
	ErrPacketTooLong = fmt.Errorf("quic: packet exceeds %d bytes", maxPacketSize)
)

type emptyAddr struct{}

func (emptyAddr) Network() string { return "none" }
func (emptyAddr) String() string  { return "uninitialized" }
