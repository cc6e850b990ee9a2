package quic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/quic-go/quic-go"
)

// peer implements transport.Peer for one QUIC connection.
type peer struct {
	host     *Host
	conn     quic.Connection
	id       string
	channels int

	// Outgoing ordered streams, one per channel, opened lazily.
	streams  map[uint8]quic.Stream
	streamMu sync.Mutex

	closing   atomic.Bool
	silent    atomic.Bool
	localCode atomic.Uint32
}

func newPeer(h *Host, conn quic.Connection, id string, channels int) *peer {
	return &peer{
		host:     h,
		conn:     conn,
		id:       id,
		channels: channels,
		streams:  make(map[uint8]quic.Stream),
	}
}

func (p *peer) ID() string           { return p.id }
func (p *peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

func (p *peer) start() {
	pumps := []func(context.Context){p.streamPump, p.uniStreamPump, p.datagramPump}
	ctx := p.conn.Context()

	for _, pump := range pumps {
		pump := pump
		p.host.wg.Add(1)
		go func() {
			defer p.host.wg.Done()
			pump(ctx)
		}()
	}

	p.host.wg.Add(1)
	go func() {
		defer p.host.wg.Done()
		p.watch(ctx)
	}()
}

// ==================================================================
// Send
// ==================================================================

func (p *peer) Send(channel uint8, data []byte, mode transport.Mode) error {
	if p.closing.Load() {
		return transport.ErrPeerClosed
	}
	if int(channel) >= p.channels {
		return fmt.Errorf("%w: %d >= %d", transport.ErrInvalidChannel, channel, p.channels)
	}
	if len(data) > maxPacketSize {
		return ErrPacketTooLong
	}
	if err := p.host.bandwidth.WaitOut(p.host.ctx, len(data)); err != nil {
		return err
	}

	var err error
	switch mode {
	case transport.Reliable:
		err = p.sendOrdered(channel, data)
	case transport.Unsequenced:
		err = p.sendUnsequenced(channel, data)
	case transport.Unreliable:
		err = p.sendDatagram(channel, data)
	default:
		return fmt.Errorf("%w: %q", transport.ErrInvalidMode, mode)
	}
	if err != nil {
		return err
	}

	p.host.sent.Inc(int64(len(data)))
	return nil
}

func (p *peer) sendOrdered(channel uint8, data []byte) error {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()

	stream, ok := p.streams[channel]
	if !ok {
		s, err := p.conn.OpenStreamSync(p.conn.Context())
		if err != nil {
			return err
		}
		if _, err := s.Write([]byte{streamChannel, channel}); err != nil {
			return err
		}
		p.streams[channel] = s
		stream = s
	}

	if err := writeFrame(stream, data); err != nil {
		delete(p.streams, channel)
		stream.CancelWrite(0)
		return err
	}
	return nil
}

func (p *peer) sendUnsequenced(channel uint8, data []byte) error {
	stream, err := p.conn.OpenUniStreamSync(p.conn.Context())
	if err != nil {
		return err
	}
	if _, err := stream.Write(append([]byte{channel}, data...)); err != nil {
		stream.CancelWrite(0)
		return err
	}
	return stream.Close()
}

func (p *peer) sendDatagram(channel uint8, data []byte) error {
	// Datagrams are negotiated; without them unreliable degrades to unsequenced.
	if !p.conn.ConnectionState().SupportsDatagrams {
		return p.sendUnsequenced(channel, data)
	}

	err := p.conn.SendDatagram(append([]byte{channel}, data...))
	var tooLarge *quic.DatagramTooLargeError
	if errors.As(err, &tooLarge) {
		return p.sendUnsequenced(channel, data)
	}
	return err
}

// ==================================================================
// Receive
// ==================================================================

func (p *peer) receive(channel uint8, mode transport.Mode, packet []byte) {
	if int(channel) >= p.channels {
		p.host.logger.Debug("dropping packet on unknown channel", "peer", p.id, "channel", channel)
		return
	}
	if err := p.host.bandwidth.WaitIn(p.host.ctx, len(packet)); err != nil {
		return
	}
	p.host.received.Inc(int64(len(packet)))
	p.host.emit(transport.Event{
		Type:      transport.EventReceive,
		Peer:      p,
		ChannelID: channel,
		Mode:      mode,
		Packet:    packet,
	})
}

func (p *peer) streamPump(ctx context.Context) {
	for {
		stream, err := p.conn.AcceptStream(ctx)
		if err != nil {
			return
		}

		p.host.wg.Add(1)
		go func() {
			defer p.host.wg.Done()
			p.readOrdered(stream)
		}()
	}
}

func (p *peer) readOrdered(stream quic.Stream) {
	defer stream.CancelRead(0)

	r := bufio.NewReader(stream)

	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return
	}
	if head[0] != streamChannel {
		p.host.logger.Debug("unexpected stream kind", "peer", p.id, "kind", head[0])
		return
	}

	for {
		packet, err := readFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && p.conn.Context().Err() == nil {
				p.host.logger.Debug("failed reading reliable packet", "peer", p.id, "error", err)
			}
			return
		}
		p.receive(head[1], transport.Reliable, packet)
	}
}

func (p *peer) uniStreamPump(ctx context.Context) {
	for {
		stream, err := p.conn.AcceptUniStream(ctx)
		if err != nil {
			return
		}

		p.host.wg.Add(1)
		go func() {
			defer p.host.wg.Done()

			b, err := io.ReadAll(io.LimitReader(stream, maxPacketSize+1))
			if err != nil || len(b) == 0 || len(b) > maxPacketSize {
				stream.CancelRead(0)
				return
			}
			p.receive(b[0], transport.Unsequenced, b[1:])
		}()
	}
}

func (p *peer) datagramPump(ctx context.Context) {
	for {
		b, err := p.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		if len(b) == 0 {
			continue
		}
		p.receive(b[0], transport.Unreliable, b[1:])
	}
}

// ==================================================================
// Disconnect
// ==================================================================

func (p *peer) Disconnect(data uint32) error {
	if !p.closing.CompareAndSwap(false, true) {
		return transport.ErrPeerClosed
	}
	p.localCode.Store(data)
	return p.conn.CloseWithError(quic.ApplicationErrorCode(data), "")
}

func (p *peer) DisconnectNow(data uint32) error {
	if !p.closing.CompareAndSwap(false, true) {
		return transport.ErrPeerClosed
	}
	p.silent.Store(true)
	return p.conn.CloseWithError(quic.ApplicationErrorCode(data), "")
}

// watch waits for the connection to end and reports the disconnect.
func (p *peer) watch(ctx context.Context) {
	<-ctx.Done()

	p.closing.Store(true)
	p.host.forget(p)

	if p.silent.Load() {
		return
	}

	var data uint32
	var appErr *quic.ApplicationError
	switch cause := context.Cause(ctx); {
	case errors.As(cause, &appErr) && appErr.Remote:
		if appErr.ErrorCode <= quic.ApplicationErrorCode(^uint32(0)) {
			data = uint32(appErr.ErrorCode)
		}
	default:
		data = p.localCode.Load()
	}

	p.host.emit(transport.Event{Type: transport.EventDisconnect, Peer: p, Data: data})
}
