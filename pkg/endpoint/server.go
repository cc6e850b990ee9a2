package endpoint

import (
	"context"
	"errors"

	"github.com/QYUbit/Tether/pkg/transport"
)

// Server accepts peers and keeps one Session per connected peer.
type Server struct {
	*endpoint
	sessions *sessionManager
}

// NewServer creates a listening server on cfg.Address and cfg.Port.
func NewServer(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()
	e, err := newEndpoint(cfg, cfg.HostAddr())
	if err != nil {
		return nil, err
	}

	e.logger.Info("server listening", "address", e.host.Addr(), "max_peers", cfg.MaxPeers, "channels", cfg.MaxChannels)
	return &Server{
		endpoint: e,
		sessions: newSessionManager(),
	}, nil
}

// Poll processes every pending transport event and dispatches the resulting
// application events on the calling goroutine.
func (s *Server) Poll(ctx context.Context) error {
	return s.poll(ctx, s)
}

func (s *Server) onConnect(ev transport.Event) {
	ses := s.sessions.add(ev.Peer, s)
	s.logger.Debug("peer connected", "session", ses.id, "remote", ev.Peer.RemoteAddr())
	s.lifecycle(EventConnect, ev.Data, ses)
}

func (s *Server) onReceive(ev transport.Event) {
	ses, ok := s.sessions.byPeerLookup(ev.Peer)
	if !ok {
		// Packets still queued after a session was dropped.
		s.packetsReceived.Inc(1)
		s.logger.Warn("dropping packet from unknown peer", "peer", ev.Peer.ID(), "channel", ev.ChannelID)
		return
	}
	s.receive(ev, ses)
}

func (s *Server) onDisconnect(ev transport.Event) {
	ses := s.sessions.remove(ev.Peer)
	if ses == nil {
		return
	}
	s.logger.Debug("peer disconnected", "session", ses.id, "data", ev.Data)
	s.lifecycle(EventDisconnect, ev.Data, ses)
	ses.closed.Store(true)
}

// ==================================================================
// Send
// ==================================================================

// Send sends an event to one session.
func (s *Server) Send(session *Session, name string, payload any) error {
	if session == nil {
		s.delivery.Reset()
		return ErrNilSession
	}
	if session.IsClosed() {
		s.delivery.Reset()
		return ErrSessionClosed
	}
	return s.sendTo(session.peer, name, payload)
}

// SendToPeer sends an event to a raw transport peer.
func (s *Server) SendToPeer(peer transport.Peer, name string, payload any) error {
	return s.sendTo(peer, name, payload)
}

// Broadcast sends an event to every connected peer except the one of exclude,
// which may be nil. The payload is encoded once and the delivery settings are
// reset once after all sends. Failed sends are joined into the returned error.
func (s *Server) Broadcast(name string, payload any, exclude *Session) error {
	defer s.delivery.Reset()

	data, err := s.encode(name, payload)
	if err != nil {
		return err
	}

	var skip transport.Peer
	if exclude != nil {
		skip = exclude.peer
	}

	mode, channel := s.delivery.Current()

	var errs []error
	for _, peer := range s.peerSnapshot() {
		if skip != nil && peer == skip {
			continue
		}
		if err := peer.Send(channel, data, mode); err != nil {
			errs = append(errs, err)
			continue
		}
		s.packetsSent.Inc(1)
	}
	return errors.Join(errs...)
}

func (s *Server) peerSnapshot() []transport.Peer {
	out := make([]transport.Peer, len(s.sessions.peers))
	copy(out, s.sessions.peers)
	return out
}

// ==================================================================
// Sessions
// ==================================================================

// Sessions returns a snapshot of the connected sessions in connect order.
func (s *Server) Sessions() []*Session {
	return s.sessions.snapshot()
}

func (s *Server) SessionCount() int {
	return s.sessions.len()
}

// Session looks a session up by id.
func (s *Server) Session(id string) (*Session, bool) {
	return s.sessions.lookup(id)
}

// SessionByPeer looks a session up by its transport peer.
func (s *Server) SessionByPeer(peer transport.Peer) (*Session, bool) {
	return s.sessions.byPeerLookup(peer)
}

// Stats snapshots the server counters.
func (s *Server) Stats() Stats {
	st := s.stats()
	st.Sessions = s.sessions.len()
	return st
}

func (s *Server) MaxPeers() int {
	return s.cfg.MaxPeers
}

// Address returns the address the host listens on.
func (s *Server) Address() string {
	return s.host.Addr().String()
}

// Close closes the host, dropping every peer. Sessions are closed without
// dispatching disconnect events.
func (s *Server) Close() error {
	for _, ses := range s.sessions.clear() {
		ses.closed.Store(true)
	}
	s.logger.Info("server closed")
	return s.host.Close()
}
