package quic

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHello(&buf, hello{channels: 3, data: 0xdeadbeef}))

	kind, err := buf.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, streamHello, kind)

	got, err := readHello(&buf)
	require.NoError(t, err)
	assert.Equal(t, hello{channels: 3, data: 0xdeadbeef}, got)
}

func TestReadHelloRejectsBadInput(t *testing.T) {
	tests := map[string][]byte{
		"version":     {helloVersion + 1, 1, 0, 0, 0, 0},
		"no channels": {helloVersion, 0, 0, 0, 0, 0},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readHello(bytes.NewReader(in))
			assert.ErrorIs(t, err, ErrBadHello)
		})
	}

	_, err := readHello(bytes.NewReader([]byte{helloVersion, 1}))
	assert.Error(t, err)
}

func TestWelcomeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeWelcome(&buf, 2, "peer-1"))

	channels, id, err := readWelcome(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), channels)
	assert.Equal(t, "peer-1", id)

	_, _, err = readWelcome(bytes.NewReader([]byte{0, 1, 'x'}))
	assert.ErrorIs(t, err, ErrBadHello)
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	packets := [][]byte{[]byte("a"), {}, bytes.Repeat([]byte{7}, 300)}
	for _, p := range packets {
		require.NoError(t, writeFrame(&buf, p))
	}

	r := bufio.NewReader(&buf)
	for _, want := range packets {
		got, err := readFrame(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadFrameTooLong(t *testing.T) {
	var head [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(head[:], maxPacketSize+1)

	_, err := readFrame(bufio.NewReader(bytes.NewReader(head[:n])))
	assert.ErrorIs(t, err, ErrPacketTooLong)
}
