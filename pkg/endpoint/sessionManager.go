package endpoint

import "github.com/QYUbit/Tether/pkg/transport"

// The sessionManager keeps the sessions and peers of a server in lock-step:
// sessions[i] always wraps peers[i].
type sessionManager struct {
	sessions []*Session
	peers    []transport.Peer

	byPeer map[transport.Peer]*Session
	byID   map[string]*Session
}

func newSessionManager() *sessionManager {
	return &sessionManager{
		byPeer: make(map[transport.Peer]*Session),
		byID:   make(map[string]*Session),
	}
}

// add registers a session for peer. A peer that is already known keeps its
// session.
func (m *sessionManager) add(peer transport.Peer, server *Server) *Session {
	if ses, ok := m.byPeer[peer]; ok {
		return ses
	}

	ses := newSession(peer, server)
	m.sessions = append(m.sessions, ses)
	m.peers = append(m.peers, peer)
	m.byPeer[peer] = ses
	m.byID[ses.id] = ses
	return ses
}

// remove drops the session of peer and returns it. Unknown peers are a no-op
// returning nil.
func (m *sessionManager) remove(peer transport.Peer) *Session {
	ses, ok := m.byPeer[peer]
	if !ok {
		return nil
	}

	for i, p := range m.peers {
		if p == peer {
			m.peers = append(m.peers[:i], m.peers[i+1:]...)
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	delete(m.byPeer, peer)
	if m.byID[ses.id] == ses {
		delete(m.byID, ses.id)
	}
	return ses
}

func (m *sessionManager) byPeerLookup(peer transport.Peer) (*Session, bool) {
	ses, ok := m.byPeer[peer]
	return ses, ok
}

func (m *sessionManager) lookup(id string) (*Session, bool) {
	ses, ok := m.byID[id]
	return ses, ok
}

func (m *sessionManager) len() int {
	return len(m.sessions)
}

// snapshot returns a copy of the session list, safe to iterate while handlers
// add or remove sessions.
func (m *sessionManager) snapshot() []*Session {
	out := make([]*Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

func (m *sessionManager) clear() []*Session {
	out := m.sessions
	m.sessions = nil
	m.peers = nil
	clear(m.byPeer)
	clear(m.byID)
	return out
}
