package endpoint

import (
	"context"
	"testing"

	"github.com/QYUbit/Tether/pkg/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	n := memory.NewNetwork()
	srv := newTestServer(t, n, nil)
	_, peer := dialRaw(t, n, srv, 1)

	ses, ok := srv.Session(peer.ID())
	require.True(t, ok)

	assert.False(t, ses.Has("name"))
	ses.Set("name", "ada")
	v, ok := ses.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "ada", v)

	ses.Delete("name")
	assert.False(t, ses.Has("name"))
	assert.NotNil(t, ses.RemoteAddr())
}

func TestSessionDisconnect(t *testing.T) {
	n := memory.NewNetwork()
	srv := newTestServer(t, n, nil)
	h, peer := dialRaw(t, n, srv, 1)
	ses, _ := srv.Session(peer.ID())

	require.NoError(t, ses.Disconnect(4))
	assert.False(t, ses.IsClosed(), "closed once the disconnect event is polled")

	require.NoError(t, srv.Poll(context.Background()))
	assert.True(t, ses.IsClosed())
	assert.ErrorIs(t, ses.Disconnect(0), ErrSessionClosed)

	ev, err := h.Service(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), ev.Data)
}

func TestSessionManagerLockStep(t *testing.T) {
	n := memory.NewNetwork()
	srv := newTestServer(t, n, nil)
	var peers []string
	for j := 0; j < 4; j++ {
		_, p := dialRaw(t, n, srv, 1)
		peers = append(peers, p.ID())
	}

	m := srv.sessions
	ses, _ := srv.Session(peers[1])
	require.Same(t, ses, m.remove(ses.peer))
	assert.Nil(t, m.remove(ses.peer))

	require.Len(t, m.sessions, 3)
	require.Len(t, m.peers, 3)
	for i, s := range m.sessions {
		assert.Same(t, s, m.byPeer[m.peers[i]])
		assert.Equal(t, s.peer, m.peers[i])
	}

	again := m.add(m.peers[0], srv)
	assert.Same(t, m.sessions[0], again)
	assert.Len(t, m.sessions, 3)
}
