// Package endpoint drives a transport host and turns its events into named
// application events. A Server tracks one Session per connected peer; a Client
// holds a single connection to a server.
//
// Endpoints are not safe for concurrent use. Poll, handlers and sends are meant
// to run on one goroutine.
package endpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/QYUbit/Tether/pkg/codec"
	"github.com/QYUbit/Tether/pkg/delivery"
	"github.com/QYUbit/Tether/pkg/event"
	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
	metrics "github.com/rcrowley/go-metrics"
)

// Names of the lifecycle events dispatched by Poll.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

type (
	Handler     = event.Handler[*Session]
	HandlerFunc = event.HandlerFunc[*Session]
	HandlerID   = event.HandlerID
)

// FallbackFunc runs for received events without a registered handler.
type FallbackFunc func(name string, data any, session *Session) error

// eventSink receives the classified transport events of one role.
type eventSink interface {
	onConnect(ev transport.Event)
	onReceive(ev transport.Event)
	onDisconnect(ev transport.Event)
}

// endpoint holds what servers and clients share.
type endpoint struct {
	cfg    Config
	logger tlog.Logger
	host   transport.Host
	codec  codec.Codec

	events   *event.Registry[*Session]
	delivery *delivery.Settings
	fallback FallbackFunc

	metrics         metrics.Registry
	packetsSent     metrics.Counter
	packetsReceived metrics.Counter

	lastService time.Duration
}

func newEndpoint(cfg Config, hostAddr string) (*endpoint, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	settings, err := delivery.New(cfg.MaxChannels, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := settings.SetDefaultMode(cfg.DefaultMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := settings.SetDefaultChannel(cfg.DefaultChannel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	host, err := cfg.Transport(transport.HostOptions{
		Address:      hostAddr,
		MaxPeers:     cfg.MaxPeers,
		Channels:     cfg.MaxChannels,
		InBandwidth:  cfg.InBandwidth,
		OutBandwidth: cfg.OutBandwidth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport host: %w", err)
	}

	reg := metrics.NewRegistry()
	return &endpoint{
		cfg:             cfg,
		logger:          cfg.Logger,
		host:            host,
		codec:           cfg.Codec,
		events:          event.NewRegistry[*Session](cfg.Logger),
		delivery:        settings,
		metrics:         reg,
		packetsSent:     metrics.GetOrRegisterCounter("packets.sent", reg),
		packetsReceived: metrics.GetOrRegisterCounter("packets.received", reg),
	}, nil
}

// ==================================================================
// Poll
// ==================================================================

// poll services the host until it has no pending event. Only the first
// Service call waits up to the poll timeout.
func (e *endpoint) poll(ctx context.Context, sink eventSink) error {
	start := time.Now()
	defer func() {
		e.lastService = time.Since(start)
	}()

	timeout := e.cfg.PollTimeout
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := e.host.Service(timeout)
		if err != nil {
			return err
		}
		timeout = 0

		switch ev.Type {
		case transport.EventNone:
			return nil
		case transport.EventConnect:
			sink.onConnect(ev)
		case transport.EventReceive:
			sink.onReceive(ev)
		case transport.EventDisconnect:
			sink.onDisconnect(ev)
		default:
			e.logger.Warn("ignoring unknown transport event", "type", ev.Type)
		}
	}
}

// receive decodes a packet and dispatches it. Every receive event is counted,
// undecodable ones included.
func (e *endpoint) receive(ev transport.Event, session *Session) {
	e.packetsReceived.Inc(1)

	env, err := codec.Decode(e.codec, ev.Packet)
	if err != nil {
		e.logger.Warn("dropping undecodable packet", "peer", ev.Peer.ID(), "channel", ev.ChannelID, "error", err)
		return
	}

	if e.events.Dispatch(env.Name, env.Payload, session) {
		return
	}

	e.logger.Warn("no handler for event", "event", env.Name)
	if e.fallback != nil {
		if err := e.runFallback(env.Name, env.Payload, session); err != nil {
			e.logger.Error("fallback handler failed", "event", env.Name, "error", err)
		}
	}
}

func (e *endpoint) runFallback(name string, data any, session *Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return e.fallback(name, data, session)
}

// lifecycle dispatches connect and disconnect. Missing handlers are normal
// here and only logged at debug level.
func (e *endpoint) lifecycle(name string, data uint32, session *Session) {
	if !e.events.Dispatch(name, data, session) {
		e.logger.Debug("no handler for event", "event", name)
	}
}

// ==================================================================
// Send
// ==================================================================

func (e *endpoint) encode(name string, payload any) ([]byte, error) {
	return codec.Encode(e.codec, codec.Envelope{Name: name, Payload: payload})
}

// sendTo sends one event to peer with the current delivery settings, which are
// reset afterwards whatever the outcome.
func (e *endpoint) sendTo(peer transport.Peer, name string, payload any) error {
	defer e.delivery.Reset()

	data, err := e.encode(name, payload)
	if err != nil {
		return err
	}

	mode, channel := e.delivery.Current()
	if err := peer.Send(channel, data, mode); err != nil {
		return fmt.Errorf("failed to send %q: %w", name, err)
	}
	e.packetsSent.Inc(1)
	return nil
}

// ==================================================================
// Events
// ==================================================================

// Handle registers handler for the event name. Handlers of one event run in
// registration order. On a server the session is never nil: packets from
// peers without a session are dropped before dispatch. Client handlers get a
// nil session.
func (e *endpoint) Handle(name string, handler Handler) HandlerID {
	return e.events.Register(name, handler)
}

// HandleFunc is Handle for plain functions.
func (e *endpoint) HandleFunc(name string, fn func(data any, session *Session) error) HandlerID {
	return e.events.RegisterFunc(name, fn)
}

// Unhandle removes a registration and returns the number of handlers removed.
func (e *endpoint) Unhandle(name string, id HandlerID) int {
	return e.events.Unregister(name, id)
}

// HandleFallback sets the handler for received events nobody handles. A nil
// fn removes it.
func (e *endpoint) HandleFallback(fn FallbackFunc) {
	e.fallback = fn
}

// SetSchema binds positional payloads of name to the given field names before
// dispatch. No fields clears the schema.
func (e *endpoint) SetSchema(name string, fields ...string) {
	e.events.SetSchema(name, fields)
}

// ==================================================================
// Delivery
// ==================================================================

// SetMode overrides the delivery mode of the next send only. Invalid modes
// fall back to reliable.
func (e *endpoint) SetMode(mode transport.Mode) {
	e.delivery.SetMode(mode)
}

// SetChannel overrides the channel of the next send only. Invalid channels
// fall back to channel 0.
func (e *endpoint) SetChannel(channel int) {
	e.delivery.SetChannel(channel)
}

func (e *endpoint) SetDefaultMode(mode transport.Mode) error {
	return e.delivery.SetDefaultMode(mode)
}

func (e *endpoint) SetDefaultChannel(channel int) error {
	return e.delivery.SetDefaultChannel(channel)
}

// Delivery returns the mode and channel the next send will use.
func (e *endpoint) Delivery() (transport.Mode, uint8) {
	return e.delivery.Current()
}

// ==================================================================
// Stats
// ==================================================================

func (e *endpoint) BytesSent() uint64     { return e.host.BytesSent() }
func (e *endpoint) BytesReceived() uint64 { return e.host.BytesReceived() }

// SetBandwidthLimit limits the host in bytes per second, 0 meaning unlimited.
func (e *endpoint) SetBandwidthLimit(in, out int) {
	e.host.SetBandwidthLimit(in, out)
}

func (e *endpoint) PacketsSent() int64     { return e.packetsSent.Count() }
func (e *endpoint) PacketsReceived() int64 { return e.packetsReceived.Count() }

// Stats is a point in time copy of an endpoint's counters.
type Stats struct {
	Sessions        int
	PacketsSent     int64
	PacketsReceived int64
	BytesSent       uint64
	BytesReceived   uint64
	LastService     time.Duration
}

func (e *endpoint) stats() Stats {
	return Stats{
		PacketsSent:     e.PacketsSent(),
		PacketsReceived: e.PacketsReceived(),
		BytesSent:       e.BytesSent(),
		BytesReceived:   e.BytesReceived(),
		LastService:     e.lastService,
	}
}

// Metrics exposes the packet counters for reporting.
func (e *endpoint) Metrics() metrics.Registry {
	return e.metrics
}

// LastServiceDuration reports how long the last Poll took.
func (e *endpoint) LastServiceDuration() time.Duration {
	return e.lastService
}

// Host returns the underlying transport host.
func (e *endpoint) Host() transport.Host {
	return e.host
}

func (e *endpoint) MaxChannels() int {
	return e.cfg.MaxChannels
}
