// Package quic implements transport.Host using quic-go.
//
// Reliable packets travel on one ordered stream per channel, unsequenced
// packets on a fresh unidirectional stream each and unreliable packets as
// datagrams.
package quic

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/rcrowley/go-metrics"
)

const helloTimeout = 5 * time.Second

// Config holds the pieces of a Host that are not transport.HostOptions.
type Config struct {
	TLS    *tls.Config
	QUIC   *quic.Config
	Logger tlog.Logger
}

// Factory returns a transport.Factory producing QUIC hosts.
func Factory(cfg Config) transport.Factory {
	return func(opts transport.HostOptions) (transport.Host, error) {
		return NewHost(opts, cfg)
	}
}

// Implements transport.Host
type Host struct {
	opts     transport.HostOptions
	tlsConf  *tls.Config
	quicConf *quic.Config
	logger   tlog.Logger

	listener *quic.Listener

	peers  map[*peer]struct{}
	peerMu sync.Mutex

	events chan transport.Event

	metrics   metrics.Registry
	sent      metrics.Counter
	received  metrics.Counter
	bandwidth transport.Bandwidth

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHost creates a host. With a non-empty opts.Address it listens for
// incoming connections, which requires cfg.TLS to carry a certificate.
func NewHost(opts transport.HostOptions, cfg Config) (*Host, error) {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Channels > transport.MaxChannels {
		return nil, fmt.Errorf("quic: %d channels exceeds %d", opts.Channels, transport.MaxChannels)
	}

	quicConf := cfg.QUIC
	if quicConf == nil {
		quicConf = DefaultQUICConfig()
	} else {
		quicConf = quicConf.Clone()
	}
	quicConf.EnableDatagrams = true

	ctx, cancel := context.WithCancel(context.Background())

	h := &Host{
		opts:     opts,
		tlsConf:  cfg.TLS,
		quicConf: quicConf,
		logger:   tlog.OrNop(cfg.Logger),
		peers:    make(map[*peer]struct{}),
		events:   make(chan transport.Event, eventQueueSize),
		metrics:  metrics.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.sent = metrics.GetOrRegisterCounter("bytes.sent", h.metrics)
	h.received = metrics.GetOrRegisterCounter("bytes.received", h.metrics)
	h.SetBandwidthLimit(opts.InBandwidth, opts.OutBandwidth)

	if opts.Address == "" {
		return h, nil
	}

	if h.tlsConf == nil {
		cancel()
		return nil, errors.New("quic: listening host requires a TLS config")
	}

	l, err := quic.ListenAddr(opts.Address, h.tlsConf, h.quicConf)
	if err != nil {
		cancel()
		return nil, err
	}
	h.listener = l

	h.wg.Add(1)
	go h.acceptConnections()

	return h, nil
}

// DefaultQUICConfig is used when Config.QUIC is nil.
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams:       true,
		MaxIdleTimeout:        30 * time.Second,
		KeepAlivePeriod:       10 * time.Second,
		MaxIncomingStreams:    transport.MaxChannels + 1,
		MaxIncomingUniStreams: 1024,
	}
}

// ==================================================================
// Accepting
// ==================================================================

func (h *Host) acceptConnections() {
	defer h.wg.Done()

	for {
		conn, err := h.listener.Accept(h.ctx)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			h.logger.Error("failed accepting connection", "error", err)
			continue
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.welcome(conn)
		}()
	}
}

func (h *Host) welcome(conn quic.Connection) {
	ctx, cancel := context.WithTimeout(h.ctx, helloTimeout)
	defer cancel()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		h.logger.Debug("peer sent no hello", "remote", conn.RemoteAddr(), "error", err)
		_ = conn.CloseWithError(codeBadHello, "no hello")
		return
	}
	defer stream.Close()

	r := bufio.NewReader(stream)
	kind, err := r.ReadByte()
	if err != nil || kind != streamHello {
		_ = conn.CloseWithError(codeBadHello, "bad hello")
		return
	}
	hi, err := readHello(r)
	if err != nil {
		_ = conn.CloseWithError(codeBadHello, "bad hello")
		return
	}

	channels := min(int(hi.channels), h.opts.Channels)

	h.peerMu.Lock()
	if h.opts.MaxPeers > 0 && len(h.peers) >= h.opts.MaxPeers {
		h.peerMu.Unlock()
		h.logger.Warn("refusing peer, host is full", "remote", conn.RemoteAddr(), "max_peers", h.opts.MaxPeers)
		_ = conn.CloseWithError(codeRefused, "host is full")
		return
	}
	p := newPeer(h, conn, uuid.NewString(), channels)
	h.peers[p] = struct{}{}
	h.peerMu.Unlock()

	if err := writeWelcome(stream, uint8(channels), p.id); err != nil {
		h.forget(p)
		_ = conn.CloseWithError(codeBadHello, "welcome failed")
		return
	}

	h.emit(transport.Event{Type: transport.EventConnect, Peer: p, Data: hi.data})
	p.start()
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

	tlsConf := h.tlsConf
	if tlsConf == nil {
		tlsConf = ClientTLS(true)
	}

	conn, err := quic.DialAddr(ctx, address, tlsConf, h.quicConf)
	if err != nil {
		return nil, err
	}

	id, negotiated, err := h.greet(ctx, conn, channels, data)
	if err != nil {
		var appErr *quic.ApplicationError
		if errors.As(err, &appErr) && appErr.ErrorCode == codeRefused {
			err = ErrRefused
		}
		_ = conn.CloseWithError(0, "")
		return nil, err
	}

	p := newPeer(h, conn, id, negotiated)
	h.peerMu.Lock()
	h.peers[p] = struct{}{}
	h.peerMu.Unlock()

	h.emit(transport.Event{Type: transport.EventConnect, Peer: p})
	p.start()

	return p, nil
}

func (h *Host) greet(ctx context.Context, conn quic.Connection, channels int, data uint32) (string, int, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return "", 0, err
	}
	defer stream.Close()

	if err := writeHello(stream, hello{channels: uint8(channels), data: data}); err != nil {
		return "", 0, err
	}

	negotiated, id, err := readWelcome(stream)
	if err != nil {
		if cause := context.Cause(conn.Context()); cause != nil {
			return "", 0, cause
		}
		return "", 0, err
	}
	return id, int(negotiated), nil
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

func (h *Host) BytesSent() uint64     { return uint64(h.sent.Count()) }
func (h *Host) BytesReceived() uint64 { return uint64(h.received.Count()) }

// Metrics exposes the byte counters.
func (h *Host) Metrics() metrics.Registry { return h.metrics }

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

// Close drops all peers without disconnect events and releases the socket.
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
			p.silent.Store(true)
			_ = p.conn.CloseWithError(codeHostClosing, "host closing")
		}

		h.cancel()

		if h.listener != nil {
			err = h.listener.Close()
		}
		h.wg.Wait()
	})

	return err
}
