// Package memory implements transport.Host in process. Packets are delivered
// immediately and in order regardless of mode, which makes it suitable for
// tests and local simulations.
package memory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/google/uuid"
)

var (
	ErrAddressInUse = errors.New("memory: address already in use")
	ErrUnreachable  = errors.New("memory: no host at address")
	ErrServerFull   = errors.New("memory: host has no free peer slots")
)

type Addr string

func (Addr) Network() string  { return "memory" }
func (a Addr) String() string { return string(a) }

// Network connects hosts created from the same instance.
type Network struct {
	mu      sync.Mutex
	hosts   map[string]*Host
	clients int
}

func NewNetwork() *Network {
	return &Network{hosts: make(map[string]*Host)}
}

// Factory returns a transport.Factory creating hosts on n.
func (n *Network) Factory() transport.Factory {
	return func(opts transport.HostOptions) (transport.Host, error) {
		return n.NewHost(opts)
	}
}

// NewHost creates a host. Hosts with an address accept connections.
func (n *Network) NewHost(opts transport.HostOptions) (*Host, error) {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Channels > transport.MaxChannels {
		return nil, fmt.Errorf("memory: %d channels exceeds %d", opts.Channels, transport.MaxChannels)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	listening := opts.Address != ""
	addr := opts.Address
	if !listening {
		n.clients++
		addr = fmt.Sprintf("client-%d", n.clients)
	}
	if _, ok := n.hosts[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}

	h := &Host{
		network:   n,
		addr:      Addr(addr),
		listening: listening,
		opts:      opts,
		peers:     make(map[*Peer]struct{}),
		notify:    make(chan struct{}, 1),
	}
	h.SetBandwidthLimit(opts.InBandwidth, opts.OutBandwidth)
	n.hosts[addr] = h
	return h, nil
}

func (n *Network) lookup(addr string) (*Host, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.hosts[addr]
	return h, ok
}

func (n *Network) remove(addr string) {
	n.mu.Lock()
	delete(n.hosts, addr)
	n.mu.Unlock()
}

type Host struct {
	network   *Network
	addr      Addr
	listening bool
	opts      transport.HostOptions

	mu     sync.Mutex
	queue  []transport.Event
	peers  map[*Peer]struct{}
	notify chan struct{}
	closed bool

	sent     atomic.Uint64
	received atomic.Uint64
	inLimit  atomic.Int64
	outLimit atomic.Int64
}

func (h *Host) push(ev transport.Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.queue = append(h.queue, ev)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Host) pop() (transport.Event, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return transport.Event{}, false, transport.ErrHostClosed
	}
	if len(h.queue) == 0 {
		return transport.Event{}, false, nil
	}
	ev := h.queue[0]
	h.queue[0] = transport.Event{}
	h.queue = h.queue[1:]
	return ev, true, nil
}

func (h *Host) Service(timeout time.Duration) (transport.Event, error) {
	ev, ok, err := h.pop()
	if err != nil || ok || timeout <= 0 {
		return ev, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-h.notify:
			ev, ok, err := h.pop()
			if err != nil || ok {
				return ev, err
			}
		case <-timer.C:
			ev, _, err := h.pop()
			return ev, err
		}
	}
}

// Pending reports the number of queued events.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

func (h *Host) Connect(ctx context.Context, address string, channels int, data uint32) (transport.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.isClosed() {
		return nil, transport.ErrHostClosed
	}

	remote, ok := h.network.lookup(address)
	if !ok || remote.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, address)
	}
	if !remote.listening {
		return nil, transport.ErrNotListening
	}

	if channels <= 0 || channels > h.opts.Channels {
		channels = h.opts.Channels
	}
	channels = min(channels, remote.opts.Channels)

	remote.mu.Lock()
	if remote.opts.MaxPeers > 0 && len(remote.peers) >= remote.opts.MaxPeers {
		remote.mu.Unlock()
		return nil, ErrServerFull
	}
	id := uuid.NewString()
	local := &Peer{id: id, host: h, channels: channels}
	far := &Peer{id: id, host: remote, channels: channels}
	local.remote, far.remote = far, local
	remote.peers[far] = struct{}{}
	remote.mu.Unlock()

	h.mu.Lock()
	h.peers[local] = struct{}{}
	h.mu.Unlock()

	remote.push(transport.Event{Type: transport.EventConnect, Peer: far, Data: data})
	h.push(transport.Event{Type: transport.EventConnect, Peer: local})

	return local, nil
}

func (h *Host) BytesSent() uint64     { return h.sent.Load() }
func (h *Host) BytesReceived() uint64 { return h.received.Load() }

// SetBandwidthLimit records the limits. In-memory links are not throttled.
func (h *Host) SetBandwidthLimit(in, out int) {
	h.inLimit.Store(int64(in))
	h.outLimit.Store(int64(out))
}

// BandwidthLimit returns the limits last set.
func (h *Host) BandwidthLimit() (in, out int) {
	return int(h.inLimit.Load()), int(h.outLimit.Load())
}

func (h *Host) Channels() int  { return h.opts.Channels }
func (h *Host) Addr() net.Addr { return h.addr }

func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close drops every peer; remote hosts observe a disconnect.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return transport.ErrHostClosed
	}
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		_ = p.DisconnectNow(0)
	}

	h.mu.Lock()
	h.closed = true
	h.queue = nil
	h.mu.Unlock()

	h.network.remove(string(h.addr))
	return nil
}

func (h *Host) forget(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// Peer is one end of an in-memory link.
type Peer struct {
	id       string
	host     *Host
	remote   *Peer
	channels int
	closed   atomic.Bool
}

func (p *Peer) ID() string           { return p.id }
func (p *Peer) RemoteAddr() net.Addr { return p.remote.host.addr }

func (p *Peer) Send(channel uint8, data []byte, mode transport.Mode) error {
	if p.closed.Load() {
		return transport.ErrPeerClosed
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", transport.ErrInvalidMode, mode)
	}
	if int(channel) >= p.channels {
		return fmt.Errorf("%w: %d >= %d", transport.ErrInvalidChannel, channel, p.channels)
	}

	packet := make([]byte, len(data))
	copy(packet, data)

	p.host.sent.Add(uint64(len(packet)))
	p.remote.host.received.Add(uint64(len(packet)))

	p.remote.host.push(transport.Event{
		Type:      transport.EventReceive,
		Peer:      p.remote,
		ChannelID: channel,
		Mode:      mode,
		Packet:    packet,
	})
	return nil
}

func (p *Peer) Disconnect(data uint32) error {
	if !p.drop() {
		return transport.ErrPeerClosed
	}
	p.remote.host.push(transport.Event{Type: transport.EventDisconnect, Peer: p.remote, Data: data})
	p.host.push(transport.Event{Type: transport.EventDisconnect, Peer: p, Data: data})
	return nil
}

func (p *Peer) DisconnectNow(data uint32) error {
	if !p.drop() {
		return transport.ErrPeerClosed
	}
	p.remote.host.push(transport.Event{Type: transport.EventDisconnect, Peer: p.remote, Data: data})
	return nil
}

func (p *Peer) drop() bool {
	if !p.closed.CompareAndSwap(false, true) {
		return false
	}
	p.remote.closed.Store(true)
	p.host.forget(p)
	p.remote.host.forget(p.remote)
	return true
}
