// Package transport describes the reliable-UDP style transport Tether runs on.
//
// A Host is serviced from a single goroutine: Service returns the next pending
// connect, receive or disconnect event, blocking at most for the given timeout.
package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// Mode selects the delivery guarantee of one outgoing packet.
type Mode string

const (
	// Reliable packets arrive once and in order within their channel.
	Reliable Mode = "reliable"
	// Unsequenced packets arrive once, in any order.
	Unsequenced Mode = "unsequenced"
	// Unreliable packets are best effort and unordered.
	Unreliable Mode = "unreliable"
)

// Valid reports whether m is one of the known delivery modes.
func (m Mode) Valid() bool {
	switch m {
	case Reliable, Unsequenced, Unreliable:
		return true
	}
	return false
}

func (m Mode) String() string {
	return string(m)
}

// MaxChannels is the upper bound on channels per connection.
const MaxChannels = 255

type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventReceive
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventReceive:
		return "receive"
	case EventDisconnect:
		return "disconnect"
	default:
		return "none"
	}
}

// Event is one occurrence yielded by Host.Service.
type Event struct {
	Type EventType
	Peer Peer

	// Data is the connect payload or disconnect code.
	Data uint32

	// Set for receive events only.
	ChannelID uint8
	Mode      Mode
	Packet    []byte
}

// Peer is a connection handle to one remote host. Peers compare by identity.
type Peer interface {
	// ID is the connection id assigned by the transport when the peer connected.
	ID() string
	RemoteAddr() net.Addr
	Send(channel uint8, data []byte, mode Mode) error

	// Disconnect requests a graceful disconnect. A disconnect event follows on
	// the local host.
	Disconnect(data uint32) error

	// DisconnectNow drops the connection without notifying the local host.
	DisconnectNow(data uint32) error
}

// Host owns the local socket and all of its peers.
type Host interface {
	Service(timeout time.Duration) (Event, error)
	Connect(ctx context.Context, address string, channels int, data uint32) (Peer, error)
	BytesSent() uint64
	BytesReceived() uint64

	// SetBandwidthLimit sets the incoming and outgoing limits in bytes per
	// second. Zero means unlimited.
	SetBandwidthLimit(in, out int)

	// Channels is the channel count the host was created with.
	Channels() int
	Addr() net.Addr
	Close() error
}

// HostOptions configure a Host created by a Factory. An empty Address creates
// a host that only dials out.
type HostOptions struct {
	Address      string
	MaxPeers     int
	Channels     int
	InBandwidth  int
	OutBandwidth int
}

// Factory creates hosts. Transport implementations expose one.
type Factory func(opts HostOptions) (Host, error)

var (
	ErrHostClosed     = errors.New("transport: host is closed")
	ErrPeerClosed     = errors.New("transport: peer is disconnected")
	ErrInvalidChannel = errors.New("transport: channel out of range")
	ErrInvalidMode    = errors.New("transport: invalid delivery mode")
	ErrNotListening   = errors.New("transport: host does not accept connections")
)
