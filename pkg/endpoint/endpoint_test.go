package endpoint

import (
	"context"
	"testing"

	"github.com/QYUbit/Tether/pkg/codec"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/QYUbit/Tether/pkg/transport/memory"
	"github.com/stretchr/testify/require"
)

const (
	testHost = "server"
	testPort = 7000
	testAddr = "server:7000"
)

func testConfig(n *memory.Network) Config {
	return Config{
		Address:   testHost,
		Port:      testPort,
		Transport: n.Factory(),
	}
}

func newTestServer(t *testing.T, n *memory.Network, configure func(*Config)) *Server {
	t.Helper()
	cfg := testConfig(n)
	if configure != nil {
		configure(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestClient(t *testing.T, n *memory.Network, configure func(*Config)) *Client {
	t.Helper()
	cfg := testConfig(n)
	if configure != nil {
		configure(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// dialRaw connects a bare memory host to srv, so tests can inspect the packets
// the server sends.
func dialRaw(t *testing.T, n *memory.Network, srv *Server, channels int) (*memory.Host, transport.Peer) {
	t.Helper()
	h, err := n.NewHost(transport.HostOptions{Channels: channels})
	require.NoError(t, err)

	peer, err := h.Connect(context.Background(), testAddr, channels, 0)
	require.NoError(t, err)

	ev, err := h.Service(0)
	require.NoError(t, err)
	require.Equal(t, transport.EventConnect, ev.Type)

	require.NoError(t, srv.Poll(context.Background()))
	return h, peer
}

func nextPacket(t *testing.T, h *memory.Host) (transport.Event, codec.Envelope) {
	t.Helper()
	ev, err := h.Service(0)
	require.NoError(t, err)
	require.Equal(t, transport.EventReceive, ev.Type)

	env, err := codec.Decode(codec.CBOR(), ev.Packet)
	require.NoError(t, err)
	return ev, env
}

func sendRaw(t *testing.T, peer transport.Peer, name string, payload any) {
	t.Helper()
	data, err := codec.Encode(codec.CBOR(), codec.Envelope{Name: name, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, peer.Send(0, data, transport.Reliable))
}
