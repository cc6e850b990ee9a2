// Package websocket implements transport.Host over WebSocket connections
// using gorilla/websocket, for clients that cannot speak QUIC.
//
// Packets are binary messages framed as [channel][mode tag][payload]. The
// connection is a single ordered stream, so unsequenced and unreliable packets
// are delivered reliably and in order.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// Config holds the pieces of a Host that are not transport.HostOptions.
type Config struct {
	// Path served by listening hosts and dialed by clients.
	Path string
	// TLS makes listening hosts serve wss and dialing hosts use it.
	TLS    *tls.Config
	Logger tlog.Logger
}

// Factory returns a transport.Factory producing websocket hosts.
func Factory(cfg Config) transport.Factory {
	return func(opts transport.HostOptions) (transport.Host, error) {
		return NewHost(opts, cfg)
	}
}

// Implements transport.Host
type Host struct {
	opts     transport.HostOptions
	cfg      Config
	logger   tlog.Logger
	upgrader ws.Upgrader

	listener net.Listener
	server   *http.Server

	peers    map[*peer]struct{}
	reserved int
	peerMu   sync.Mutex

	events chan transport.Event

	sent      atomic.Uint64
	received  atomic.Uint64
	bandwidth transport.Bandwidth

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHost creates a host. With a non-empty opts.Address it serves websocket
// upgrades on cfg.Path.
func NewHost(opts transport.HostOptions, cfg Config) (*Host, error) {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Channels > transport.MaxChannels {
		return nil, fmt.Errorf("websocket: %d channels exceeds %d", opts.Channels, transport.MaxChannels)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		opts:   opts,
		cfg:    cfg,
		logger: tlog.OrNop(cfg.Logger),
		upgrader: ws.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		peers:  make(map[*peer]struct{}),
		events: make(chan transport.Event, eventQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	h.SetBandwidthLimit(opts.InBandwidth, opts.OutBandwidth)

	if opts.Address == "" {
		return h, nil
	}

	l, err := net.Listen("tcp", opts.Address)
	if err != nil {
		cancel()
		return nil, err
	}
	if cfg.TLS != nil {
		l = tls.NewListener(l, cfg.TLS)
	}
	h.listener = l

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, h.upgrade)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: handshakeTimeout,
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("websocket server failed", "error", err)
		}
	}()

	return h, nil
}

// ==================================================================
// Accepting
// ==================================================================

func (h *Host) upgrade(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "host closed", http.StatusServiceUnavailable)
		return
	}

	channels, err := strconv.Atoi(r.Header.Get(headerChannels))
	if err != nil || channels < 1 {
		http.Error(w, "bad handshake", http.StatusBadRequest)
		return
	}
	data, err := strconv.ParseUint(r.Header.Get(headerData), 10, 32)
	if err != nil {
		http.Error(w, "bad handshake", http.StatusBadRequest)
		return
	}
	channels = min(channels, h.opts.Channels)

	if !h.reserve() {
		h.logger.Warn("refusing peer, host is full", "remote", r.RemoteAddr, "max_peers", h.opts.MaxPeers)
		http.Error(w, "host is full", http.StatusServiceUnavailable)
		return
	}

	id := uuid.NewString()
	header := http.Header{}
	header.Set(headerID, id)
	header.Set(headerChannels, strconv.Itoa(channels))

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.release(nil)
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := newPeer(h, conn, id, channels)
	if !h.release(p) {
		_ = p.DisconnectNow(0)
		return
	}
	h.emit(transport.Event{Type: transport.EventConnect, Peer: p, Data: uint32(data)})
	p.start()
}

// reserve claims a peer slot for a pending upgrade.
func (h *Host) reserve() bool {
	h.peerMu.Lock()
	defer h.peerMu.Unlock()
	if h.opts.MaxPeers > 0 && len(h.peers)+h.reserved >= h.opts.MaxPeers {
		return false
	}
	h.reserved++
	return true
}

// release turns a reservation into p, or drops it when p is nil. It reports
// false when p was not kept because the host closed during the upgrade.
func (h *Host) release(p *peer) bool {
	h.peerMu.Lock()
	defer h.peerMu.Unlock()
	h.reserved--
	if p == nil {
		return false
	}
	return h.track(p)
}

// track adds p to the peer set and to the wait group of Close, unless Close
// has already taken its peer snapshot. Callers hold peerMu.
func (h *Host) track(p *peer) bool {
	if h.closed.Load() {
		return false
	}
	h.peers[p] = struct{}{}
	h.wg.Add(1)
	return true
}

// ==================================================================
// Dialing
// ==================================================================

func (h *Host) Connect(ctx context.Context, address string, channels int, data uint32) (transport.Peer, error) {
	if h.closed.Load() {
		return nil, transport.ErrHostClosed
	}
	if channels <= 0 || channels > h.opts.Channels {
		channels = h.opts.Channels
	}

	dialer := ws.Dialer{HandshakeTimeout: handshakeTimeout}
	u := url.URL{Scheme: "ws", Host: address, Path: h.cfg.Path}
	if h.cfg.TLS != nil {
		u.Scheme = "wss"
		dialer.TLSClientConfig = h.cfg.TLS
	}

	header := http.Header{}
	header.Set(headerChannels, strconv.Itoa(channels))
	header.Set(headerData, strconv.FormatUint(uint64(data), 10))

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
			return nil, ErrRefused
		}
		return nil, err
	}

	id := resp.Header.Get(headerID)
	negotiated, err := strconv.Atoi(resp.Header.Get(headerChannels))
	if id == "" || err != nil || negotiated < 1 || negotiated > channels {
		_ = conn.Close()
		return nil, ErrBadHandshake
	}

	p := newPeer(h, conn, id, negotiated)
	h.peerMu.Lock()
	ok := h.track(p)
	h.peerMu.Unlock()
	if !ok {
		_ = p.DisconnectNow(0)
		return nil, transport.ErrHostClosed
	}

	h.emit(transport.Event{Type: transport.EventConnect, Peer: p})
	p.start()

	return p, nil
}

// ==================================================================
// Events
// ==================================================================

func (h *Host) emit(ev transport.Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

func (h *Host) Service(timeout time.Duration) (transport.Event, error) {
	if h.closed.Load() {
		return transport.Event{}, transport.ErrHostClosed
	}

	if timeout <= 0 {
		select {
		case ev := <-h.events:
			return ev, nil
		default:
			return transport.Event{}, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-h.events:
		return ev, nil
	case <-timer.C:
		return transport.Event{}, nil
	case <-h.ctx.Done():
		return transport.Event{}, transport.ErrHostClosed
	}
}

func (h *Host) forget(p *peer) {
	h.peerMu.Lock()
	delete(h.peers, p)
	h.peerMu.Unlock()
}

// PeerCount returns the number of live connections.
func (h *Host) PeerCount() int {
	h.peerMu.Lock()
	defer h.peerMu.Unlock()
	return len(h.peers)
}

// ==================================================================
// Bandwidth
// ==================================================================

func (h *Host) BytesSent() uint64     { return h.sent.Load() }
func (h *Host) BytesReceived() uint64 { return h.received.Load() }

func (h *Host) SetBandwidthLimit(in, out int) {
	h.bandwidth.SetLimit(in, out)
}

// ==================================================================
// Lifecycle
// ==================================================================

func (h *Host) Channels() int { return h.opts.Channels }

func (h *Host) Addr() net.Addr {
	if h.listener == nil {
		return emptyAddr{}
	}
	return h.listener.Addr()
}

// Close drops all peers without local disconnect events and stops serving.
// Remote sides observe a disconnect with data 0.
func (h *Host) Close() error {
	var err error

	h.closeOnce.Do(func() {
		h.closed.Store(true)

		h.peerMu.Lock()
		peers := make([]*peer, 0, len(h.peers))
		for p := range h.peers {
			peers = append(peers, p)
		}
		h.peerMu.Unlock()

		for _, p := range peers {
			_ = p.DisconnectNow(0)
		}

		h.cancel()

		if h.server != nil {
			err = h.server.Close()
		}
		h.wg.Wait()
	})

	return err
}
