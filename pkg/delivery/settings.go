// Package delivery holds the per endpoint delivery mode and channel state.
//
// Overrides set with SetMode and SetChannel apply to the next send only; the
// endpoint calls Reset after every send, returning to the defaults.
package delivery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
)

var (
	ErrInvalidMode    = errors.New("delivery: invalid mode")
	ErrInvalidChannel = errors.New("delivery: channel out of range")
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (transport.Mode, error) {
	m := transport.Mode(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateMode(m); err != nil {
		return "", err
	}
	return m, nil
}

// ValidateMode fails for unknown modes.
func ValidateMode(m transport.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	return nil
}

// ValidateChannel fails unless 0 <= ch < maxChannels.
func ValidateChannel(ch, maxChannels int) error {
	if ch < 0 || ch >= maxChannels {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidChannel, ch, maxChannels)
	}
	return nil
}

// CorrectMode returns m if valid, otherwise transport.Reliable and false.
func CorrectMode(m transport.Mode) (transport.Mode, bool) {
	if !m.Valid() {
		return transport.Reliable, false
	}
	return m, true
}

// CorrectChannel returns ch if in range, otherwise 0 and false.
func CorrectChannel(ch, maxChannels int) (uint8, bool) {
	if ValidateChannel(ch, maxChannels) != nil {
		return 0, false
	}
	return uint8(ch), true
}

// Settings is not safe for concurrent use.
type Settings struct {
	maxChannels int
	logger      tlog.Logger

	mode    transport.Mode
	channel uint8

	defaultMode    transport.Mode
	defaultChannel uint8
}

// New returns settings defaulting to reliable delivery on channel 0.
func New(maxChannels int, logger tlog.Logger) (*Settings, error) {
	if maxChannels < 1 || maxChannels > transport.MaxChannels {
		return nil, fmt.Errorf("%w: max channels %d not in [1, %d]", ErrInvalidChannel, maxChannels, transport.MaxChannels)
	}
	return &Settings{
		maxChannels:    maxChannels,
		logger:         tlog.OrNop(logger),
		mode:           transport.Reliable,
		defaultMode:    transport.Reliable,
		channel:        0,
		defaultChannel: 0,
	}, nil
}

func (s *Settings) MaxChannels() int { return s.maxChannels }

// Current returns the mode and channel the next send uses.
func (s *Settings) Current() (transport.Mode, uint8) {
	return s.mode, s.channel
}

// Defaults returns the values Reset reverts to.
func (s *Settings) Defaults() (transport.Mode, uint8) {
	return s.defaultMode, s.defaultChannel
}

// SetMode overrides the mode of the next send. Invalid modes fall back to
// reliable with a warning.
func (s *Settings) SetMode(m transport.Mode) {
	mode, ok := CorrectMode(m)
	if !ok {
		s.logger.Warn("invalid send mode, using reliable", "mode", string(m))
	}
	s.mode = mode
}

// SetChannel overrides the channel of the next send. Out of range channels
// fall back to 0 with a warning.
func (s *Settings) SetChannel(ch int) {
	channel, ok := CorrectChannel(ch, s.maxChannels)
	if !ok {
		s.logger.Warn("invalid send channel, using channel 0", "channel", ch, "max_channels", s.maxChannels)
	}
	s.channel = channel
}

// SetDefaultMode changes the mode restored after each send. An invalid mode
// leaves the settings untouched.
func (s *Settings) SetDefaultMode(m transport.Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}
	s.defaultMode = m
	s.mode = m
	return nil
}

// SetDefaultChannel changes the channel restored after each send. An out of
// range channel leaves the settings untouched.
func (s *Settings) SetDefaultChannel(ch int) error {
	if err := ValidateChannel(ch, s.maxChannels); err != nil {
		return err
	}
	s.defaultChannel = uint8(ch)
	s.channel = uint8(ch)
	return nil
}

// Reset reverts any override to the defaults.
func (s *Settings) Reset() {
	s.mode = s.defaultMode
	s.channel = s.defaultChannel
}
