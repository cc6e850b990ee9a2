package endpoint

import (
	"context"
	"fmt"

	"github.com/QYUbit/Tether/pkg/transport"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client holds one connection to a server. Handlers registered on a client
// receive a nil session.
type Client struct {
	*endpoint

	serverAddr string
	peer       transport.Peer
	state      ClientState
}

// NewClient creates a client for the server at cfg.Address and cfg.Port. It
// does not connect until Connect is called.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	e, err := newEndpoint(cfg, "")
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint:   e,
		serverAddr: cfg.HostAddr(),
	}, nil
}

// Connect dials the server, handing it data with the connect event. The
// "connect" event is dispatched by a later Poll.
func (c *Client) Connect(ctx context.Context, data uint32) error {
	if c.peer != nil {
		return ErrAlreadyConnected
	}

	c.state = StateConnecting
	peer, err := c.host.Connect(ctx, c.serverAddr, c.cfg.MaxChannels, data)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("failed to connect to %s: %w", c.serverAddr, err)
	}
	c.peer = peer
	c.logger.Info("connecting", "server", c.serverAddr, "peer", peer.ID())
	return nil
}

// Poll processes every pending transport event and dispatches the resulting
// application events on the calling goroutine.
func (c *Client) Poll(ctx context.Context) error {
	return c.poll(ctx, c)
}

func (c *Client) onConnect(ev transport.Event) {
	if c.peer == nil {
		c.peer = ev.Peer
	}
	if ev.Peer != c.peer {
		c.logger.Debug("ignoring connect of foreign peer", "peer", ev.Peer.ID())
		return
	}
	c.state = StateConnected
	c.lifecycle(EventConnect, ev.Data, nil)
}

func (c *Client) onReceive(ev transport.Event) {
	c.receive(ev, nil)
}

func (c *Client) onDisconnect(ev transport.Event) {
	if ev.Peer != c.peer {
		return
	}
	c.peer = nil
	c.state = StateDisconnected
	c.logger.Info("disconnected", "server", c.serverAddr, "data", ev.Data)
	c.lifecycle(EventDisconnect, ev.Data, nil)
}

// Send sends an event to the server.
func (c *Client) Send(name string, payload any) error {
	if c.peer == nil {
		c.delivery.Reset()
		return ErrNotConnected
	}
	return c.sendTo(c.peer, name, payload)
}

// Disconnect asks the server to disconnect gracefully. The "disconnect" event
// is dispatched by a later Poll.
func (c *Client) Disconnect(code uint32) error {
	if c.peer == nil {
		return ErrNotConnected
	}
	return c.peer.Disconnect(code)
}

// DisconnectNow drops the connection at once. No "disconnect" event is
// dispatched locally.
func (c *Client) DisconnectNow(code uint32) error {
	if c.peer == nil {
		return ErrNotConnected
	}
	err := c.peer.DisconnectNow(code)
	c.peer = nil
	c.state = StateDisconnected
	return err
}

func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

func (c *Client) State() ClientState {
	return c.state
}

// Stats snapshots the client counters. Sessions is 1 while connected.
func (c *Client) Stats() Stats {
	st := c.stats()
	if c.IsConnected() {
		st.Sessions = 1
	}
	return st
}

// ServerAddress returns the address Connect dials.
func (c *Client) ServerAddress() string {
	return c.serverAddr
}

// Close closes the host, dropping the connection.
func (c *Client) Close() error {
	c.peer = nil
	c.state = StateDisconnected
	return c.host.Close()
}
