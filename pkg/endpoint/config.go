package endpoint

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/QYUbit/Tether/pkg/codec"
	"github.com/QYUbit/Tether/pkg/delivery"
	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
)

const (
	DefaultAddress     = "localhost"
	DefaultPort        = 22122
	DefaultMaxPeers    = 64
	DefaultMaxChannels = 1

	// AnyPort makes a server listen on a port picked by the OS. Address
	// reports the port in use.
	AnyPort = -1
)

// Config configures a Server or a Client. Zero fields take their defaults.
// Both sides of a connection must agree on MaxChannels.
type Config struct {
	// Address and Port are the listen address of a server and the dial
	// target of a client. Port 0 means DefaultPort, AnyPort an OS-picked one.
	Address string
	Port    int

	// MaxPeers bounds the sessions of a server.
	MaxPeers    int
	MaxChannels int

	// Bandwidth limits in bytes per second, 0 meaning unlimited.
	InBandwidth  int
	OutBandwidth int

	// PollTimeout bounds how long Poll waits for the first event. 0 makes
	// Poll non-blocking.
	PollTimeout time.Duration

	DefaultMode    transport.Mode
	DefaultChannel int

	Codec     codec.Codec
	Logger    tlog.Logger
	Transport transport.Factory
}

// DefaultConfig returns a config with every default filled in except the
// transport factory.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxPeers == 0 {
		c.MaxPeers = DefaultMaxPeers
	}
	if c.MaxChannels == 0 {
		c.MaxChannels = DefaultMaxChannels
	}
	if c.DefaultMode == "" {
		c.DefaultMode = transport.Reliable
	}
	if c.Codec == nil {
		c.Codec = codec.CBOR()
	}
	c.Logger = tlog.OrNop(c.Logger)
	return c
}

// Validate checks a config after defaults are applied.
func (c Config) Validate() error {
	if c.Port < AnyPort || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxPeers < 1 {
		return fmt.Errorf("%w: max peers %d", ErrInvalidConfig, c.MaxPeers)
	}
	if c.MaxChannels < 1 || c.MaxChannels > transport.MaxChannels {
		return fmt.Errorf("%w: max channels %d not in [1, %d]", ErrInvalidConfig, c.MaxChannels, transport.MaxChannels)
	}
	if c.InBandwidth < 0 || c.OutBandwidth < 0 {
		return fmt.Errorf("%w: negative bandwidth limit", ErrInvalidConfig)
	}
	if c.PollTimeout < 0 {
		return fmt.Errorf("%w: negative poll timeout", ErrInvalidConfig)
	}
	if err := delivery.ValidateMode(c.DefaultMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := delivery.ValidateChannel(c.DefaultChannel, c.MaxChannels); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Transport == nil {
		return ErrNoTransport
	}
	return nil
}

// HostAddr joins Address and Port.
func (c Config) HostAddr() string {
	port := c.Port
	if port == AnyPort {
		port = 0
	}
	return net.JoinHostPort(c.Address, strconv.Itoa(port))
}
