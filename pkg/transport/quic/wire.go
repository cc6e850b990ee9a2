package quic

import (
	"bufio"
	"encoding/binary"
	"io"
)

// hello is written by the dialing side on its first stream.
//
//	[streamHello][version][channels][data:4]
type hello struct {
	channels uint8
	data     uint32
}

func writeHello(w io.Writer, h hello) error {
	var buf [7]byte
	buf[0] = streamHello
	buf[1] = helloVersion
	buf[2] = h.channels
	binary.BigEndian.PutUint32(buf[3:], h.data)
	_, err := w.Write(buf[:])
	return err
}

// readHello reads the hello body; the stream kind byte is already consumed.
func readHello(r io.Reader) (hello, error) {
	var buf [6]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return hello{}, err
	}
	if buf[0] != helloVersion || buf[1] == 0 {
		return hello{}, ErrBadHello
	}
	return hello{channels: buf[1], data: binary.BigEndian.Uint32(buf[2:])}, nil
}

// The accepting side answers with the negotiated channel count and the
// connection id.
//
//	[channels][idLen][id]
func writeWelcome(w io.Writer, channels uint8, id string) error {
	buf := make([]byte, 0, 2+len(id))
	buf = append(buf, channels, byte(len(id)))
	buf = append(buf, id...)
	_, err := w.Write(buf)
	return err
}

func readWelcome(r io.Reader) (uint8, string, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, "", err
	}
	id := make([]byte, head[1])
	if _, err := io.ReadFull(r, id); err != nil {
		return 0, "", err
	}
	if head[0] == 0 || len(id) == 0 {
		return 0, "", ErrBadHello
	}
	return head[0], string(id), nil
}

func writeFrame(w io.Writer, p []byte) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(p)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := w.Write(p)
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxPacketSize {
		return nil, ErrPacketTooLong
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, err
	}
	return p, nil
}
