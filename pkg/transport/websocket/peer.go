package websocket

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QYUbit/Tether/pkg/transport"
	ws "github.com/gorilla/websocket"
)

// peer implements transport.Peer for one websocket connection.
type peer struct {
	host     *Host
	conn     *ws.Conn
	id       string
	channels int

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex

	closing   atomic.Bool
	initiated atomic.Bool
	silent    atomic.Bool
	localCode atomic.Uint32
}

func newPeer(h *Host, conn *ws.Conn, id string, channels int) *peer {
	conn.SetReadLimit(maxPacketSize + 2)
	return &peer{
		host:     h,
		conn:     conn,
		id:       id,
		channels: channels,
	}
}

func (p *peer) ID() string           { return p.id }
func (p *peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// start runs the read loop. The host counted p in its wait group when it
// tracked it.
func (p *peer) start() {
	go func() {
		defer p.host.wg.Done()
		p.read()
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
	tag, ok := modeTag(mode)
	if !ok {
		return fmt.Errorf("%w: %q", transport.ErrInvalidMode, mode)
	}
	if len(data) > maxPacketSize {
		return ErrPacketTooLong
	}
	if err := p.host.bandwidth.WaitOut(p.host.ctx, len(data)); err != nil {
		return err
	}

	msg := make([]byte, 2+len(data))
	msg[0] = channel
	msg[1] = tag
	copy(msg[2:], data)

	p.writeMu.Lock()
	err := p.conn.WriteMessage(ws.BinaryMessage, msg)
	p.writeMu.Unlock()
	if err != nil {
		return err
	}

	p.host.sent.Add(uint64(len(data)))
	return nil
}

// ==================================================================
// Receive
// ==================================================================

func (p *peer) read() {
	for {
		kind, msg, err := p.conn.ReadMessage()
		if err != nil {
			p.finish(err)
			return
		}
		if kind != ws.BinaryMessage || len(msg) < 2 {
			p.host.logger.Debug("dropping malformed message", "peer", p.id, "kind", kind, "size", len(msg))
			continue
		}

		channel := msg[0]
		mode, err := tagMode(msg[1])
		if err != nil || int(channel) >= p.channels {
			p.host.logger.Debug("dropping packet", "peer", p.id, "channel", channel, "tag", msg[1])
			continue
		}

		packet := msg[2:]
		if err := p.host.bandwidth.WaitIn(p.host.ctx, len(packet)); err != nil {
			continue
		}
		p.host.received.Add(uint64(len(packet)))
		p.host.emit(transport.Event{
			Type:      transport.EventReceive,
			Peer:      p,
			ChannelID: channel,
			Mode:      mode,
			Packet:    packet,
		})
	}
}

// finish reports the end of the connection. Disconnect data comes from the
// remote close frame, or from Disconnect when this side closed first.
func (p *peer) finish(err error) {
	p.closing.Store(true)
	p.host.forget(p)
	_ = p.conn.Close()

	if p.silent.Load() {
		return
	}

	var data uint32
	var closeErr *ws.CloseError
	switch {
	case p.initiated.Load():
		data = p.localCode.Load()
	case errors.As(err, &closeErr):
		if v, perr := strconv.ParseUint(closeErr.Text, 10, 32); perr == nil {
			data = uint32(v)
		}
	}

	p.host.emit(transport.Event{Type: transport.EventDisconnect, Peer: p, Data: data})
}

// ==================================================================
// Disconnect
// ==================================================================

func (p *peer) Disconnect(data uint32) error {
	if !p.closing.CompareAndSwap(false, true) {
		return transport.ErrPeerClosed
	}
	p.initiated.Store(true)
	p.localCode.Store(data)

	err := p.writeClose(data)
	// The read loop ends on the echoed close frame or on this deadline.
	_ = p.conn.SetReadDeadline(time.Now().Add(closeTimeout))
	return err
}

func (p *peer) DisconnectNow(data uint32) error {
	if !p.closing.CompareAndSwap(false, true) {
		return transport.ErrPeerClosed
	}
	p.silent.Store(true)

	err := p.writeClose(data)
	_ = p.conn.Close()
	return err
}

func (p *peer) writeClose(data uint32) error {
	msg := ws.FormatCloseMessage(ws.CloseNormalClosure, strconv.FormatUint(uint64(data), 10))
	return p.conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(closeTimeout))
}
