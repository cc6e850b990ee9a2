package endpoint

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/QYUbit/Tether/pkg/transport"
)

// The Session struct wraps a connected peer on the server side. It carries the
// peer's id and a session store (hash map).
type Session struct {
	server *Server
	peer   transport.Peer

	id   string
	data sync.Map

	closed atomic.Bool
}

func newSession(peer transport.Peer, server *Server) *Session {
	return &Session{
		server: server,
		peer:   peer,
		id:     peer.ID(),
	}
}

// ==================================================================
// Lifecycle
// ==================================================================

// Disconnect asks the peer to disconnect gracefully. The session is removed
// once the disconnect event has been polled.
func (s *Session) Disconnect(code uint32) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	return s.peer.Disconnect(code)
}

// DisconnectNow drops the peer without waiting for acknowledgement. The remote
// side is notified but no local disconnect event follows, so the session is
// removed right away.
func (s *Session) DisconnectNow(code uint32) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	err := s.peer.DisconnectNow(code)
	s.server.sessions.remove(s.peer)
	s.closed.Store(true)
	return err
}

// IsClosed reports whether the session has been removed from its server.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// ==================================================================
// ID
// ==================================================================

// ID retrieves the id of a session. It equals the id of its peer.
func (s *Session) ID() string {
	return s.id
}

// ==================================================================
// Low level
// ==================================================================

// Peer returns the session's low level peer.
func (s *Session) Peer() transport.Peer {
	return s.peer
}

func (s *Session) RemoteAddr() net.Addr {
	return s.peer.RemoteAddr()
}

// ==================================================================
// Send
// ==================================================================

// Send sends an event to the session's peer using the server's delivery
// settings.
func (s *Session) Send(name string, payload any) error {
	return s.server.Send(s, name, payload)
}

// ==================================================================
// State
// ==================================================================

// Set sets a value in the session's store.
func (s *Session) Set(key string, value any) {
	s.data.Store(key, value)
}

// Get retrieves a value from the session's store.
func (s *Session) Get(key string) (any, bool) {
	return s.data.Load(key)
}

// Has reports whether the session's store contains the specified key.
func (s *Session) Has(key string) bool {
	_, ok := s.data.Load(key)
	return ok
}

// Delete removes a key from the session's store.
func (s *Session) Delete(key string) {
	s.data.Delete(key)
}
