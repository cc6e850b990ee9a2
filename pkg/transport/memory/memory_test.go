package memory

import (
	"context"
	"testing"
	"time"

	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, channels int) (*Host, *Host, transport.Peer) {
	t.Helper()
	n := NewNetwork()

	server, err := n.NewHost(transport.HostOptions{Address: "srv", Channels: channels, MaxPeers: 2})
	require.NoError(t, err)
	client, err := n.NewHost(transport.HostOptions{Channels: channels})
	require.NoError(t, err)

	peer, err := client.Connect(context.Background(), "srv", channels, 5)
	require.NoError(t, err)
	return server, client, peer
}

func TestConnectEvents(t *testing.T) {
	server, client, peer := newPair(t, 1)

	ev, err := server.Service(0)
	require.NoError(t, err)
	assert.Equal(t, transport.EventConnect, ev.Type)
	assert.Equal(t, uint32(5), ev.Data)
	assert.Equal(t, peer.ID(), ev.Peer.ID())
	assert.Equal(t, Addr("client-1"), ev.Peer.RemoteAddr())

	ev, err = client.Service(0)
	require.NoError(t, err)
	assert.Equal(t, transport.EventConnect, ev.Type)
	assert.Same(t, peer, ev.Peer)
}

func TestSendDelivers(t *testing.T) {
	server, _, peer := newPair(t, 2)
	_, _ = server.Service(0)

	data := []byte("hi")
	require.NoError(t, peer.Send(1, data, transport.Unsequenced))
	data[0] = 'x'

	ev, err := server.Service(0)
	require.NoError(t, err)
	assert.Equal(t, transport.EventReceive, ev.Type)
	assert.Equal(t, uint8(1), ev.ChannelID)
	assert.Equal(t, transport.Unsequenced, ev.Mode)
	assert.Equal(t, []byte("hi"), ev.Packet)
	assert.Equal(t, uint64(2), server.BytesReceived())

	assert.ErrorIs(t, peer.Send(2, data, transport.Reliable), transport.ErrInvalidChannel)
	assert.ErrorIs(t, peer.Send(0, data, "bogus"), transport.ErrInvalidMode)
}

func TestDisconnect(t *testing.T) {
	server, client, peer := newPair(t, 1)
	_, _ = server.Service(0)
	_, _ = client.Service(0)

	require.NoError(t, peer.Disconnect(3))
	assert.ErrorIs(t, peer.Disconnect(3), transport.ErrPeerClosed)

	for _, h := range []*Host{server, client} {
		ev, err := h.Service(0)
		require.NoError(t, err)
		assert.Equal(t, transport.EventDisconnect, ev.Type)
		assert.Equal(t, uint32(3), ev.Data)
	}
	assert.ErrorIs(t, peer.Send(0, nil, transport.Reliable), transport.ErrPeerClosed)
}

func TestDisconnectNowIsSilentLocally(t *testing.T) {
	server, client, peer := newPair(t, 1)
	_, _ = server.Service(0)
	_, _ = client.Service(0)

	require.NoError(t, peer.DisconnectNow(1))
	assert.Zero(t, client.Pending())
	assert.Equal(t, 1, server.Pending())
}

func TestServiceTimeout(t *testing.T) {
	n := NewNetwork()
	h, err := n.NewHost(transport.HostOptions{})
	require.NoError(t, err)

	start := time.Now()
	ev, err := h.Service(15 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, transport.EventNone, ev.Type)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestServiceWakesOnEvent(t *testing.T) {
	server, _, peer := newPair(t, 1)
	_, _ = server.Service(0)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = peer.Send(0, []byte("late"), transport.Reliable)
	}()

	ev, err := server.Service(time.Second)
	require.NoError(t, err)
	assert.Equal(t, transport.EventReceive, ev.Type)
}

func TestConnectErrors(t *testing.T) {
	n := NewNetwork()
	_, err := n.NewHost(transport.HostOptions{Address: "srv", MaxPeers: 1})
	require.NoError(t, err)
	_, err = n.NewHost(transport.HostOptions{Address: "srv"})
	assert.ErrorIs(t, err, ErrAddressInUse)

	a, err := n.NewHost(transport.HostOptions{})
	require.NoError(t, err)
	b, err := n.NewHost(transport.HostOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.Connect(ctx, "nowhere", 1, 0)
	assert.ErrorIs(t, err, ErrUnreachable)
	_, err = a.Connect(ctx, "client-2", 1, 0)
	assert.ErrorIs(t, err, transport.ErrNotListening)

	_, err = a.Connect(ctx, "srv", 1, 0)
	require.NoError(t, err)
	_, err = b.Connect(ctx, "srv", 1, 0)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestCloseDisconnectsRemotes(t *testing.T) {
	server, client, _ := newPair(t, 1)
	_, _ = client.Service(0)

	require.NoError(t, server.Close())
	assert.ErrorIs(t, server.Close(), transport.ErrHostClosed)

	ev, err := client.Service(0)
	require.NoError(t, err)
	assert.Equal(t, transport.EventDisconnect, ev.Type)

	_, err = server.Service(0)
	assert.ErrorIs(t, err, transport.ErrHostClosed)
}
