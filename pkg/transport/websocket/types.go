package websocket

import (
	"errors"
	"fmt"
	"time"

	"github.com/QYUbit/Tether/pkg/transport"
)

// Handshake headers. The dialer announces its channel count and connect data;
// the host answers with the connection id and the negotiated channel count.
const (
	headerChannels = "Tether-Channels"
	headerData     = "Tether-Data"
	headerID       = "Tether-Id"
)

const (
	DefaultPath = "/tether"

	closeTimeout     = time.Second
	handshakeTimeout = 5 * time.Second
	maxPacketSize    = 1 << 20
	eventQueueSize   = 1024
)

var (
	ErrRefused        = errors.New("websocket: connection refused by host")
	ErrBadHandshake   = errors.New("websocket: malformed handshake")
	ErrPacketTooLong  = fmt.Errorf("websocket: packet exceeds %d bytes", maxPacketSize)
	errUnknownModeTag = errors.New("websocket: unknown mode tag")
)

// Every mode travels over the same ordered connection; the tag only lets the
// receiver report the mode the sender asked for.
var modeTags = [...]transport.Mode{transport.Reliable, transport.Unsequenced, transport.Unreliable}

func modeTag(m transport.Mode) (byte, bool) {
	for i, mode := range modeTags {
		if mode == m {
			return byte(i), true
		}
	}
	return 0, false
}

func tagMode(b byte) (transport.Mode, error) {
	if int(b) >= len(modeTags) {
		return "", errUnknownModeTag
	}
	return modeTags[b], nil
}

type emptyAddr struct{}

func (emptyAddr) Network() string { return "none" }
func (emptyAddr) String() string  { return "uninitialized" }
