// Package codec converts message envelopes to and from transport payloads.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName         = errors.New("codec: envelope name is empty")
	ErrMalformedEnvelope = errors.New("codec: malformed envelope")
	ErrUnknownCodec      = errors.New("codec: unknown codec")
)

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

// Codec serializes arbitrary nested values. Implementations must round-trip
// maps, slices, strings, numbers, booleans and nil.
type Codec interface {
	Marshaler
	Unmarshaler
	Name() string
}

// Envelope is the unit exchanged between endpoints.
type Envelope struct {
	Name    string
	Payload any
}

// Encode writes env as the two element sequence [name, payload].
func Encode(c Codec, env Envelope) ([]byte, error) {
	if env.Name == "" {
		return nil, ErrEmptyName
	}
	return c.Marshal([]any{env.Name, env.Payload})
}

// Decode reads an envelope written by Encode.
func Decode(c Codec, data []byte) (Envelope, error) {
	var raw []any
	if err := c.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if len(raw) != 2 {
		return Envelope{}, fmt.Errorf("%w: %d elements", ErrMalformedEnvelope, len(raw))
	}
	name, ok := raw[0].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: name is %T", ErrMalformedEnvelope, raw[0])
	}
	if name == "" {
		return Envelope{}, ErrEmptyName
	}
	return Envelope{Name: name, Payload: raw[1]}, nil
}

// ByName returns one of the built-in codecs: "cbor" or "json".
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cbor":
		return CBOR(), nil
	case "json":
		return JSON(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}
