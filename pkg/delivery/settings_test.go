package delivery

import (
	"testing"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/tlog/logmock"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newSettings(t *testing.T, maxChannels int) *Settings {
	t.Helper()
	s, err := New(maxChannels, tlog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewDefaults(t *testing.T) {
	s := newSettings(t, 4)

	mode, ch := s.Current()
	assert.Equal(t, transport.Reliable, mode)
	assert.Equal(t, uint8(0), ch)
	assert.Equal(t, 4, s.MaxChannels())
}

func TestNewRejectsChannelCount(t *testing.T) {
	for _, n := range []int{0, -1, 256} {
		_, err := New(n, nil)
		assert.ErrorIs(t, err, ErrInvalidChannel, "max channels %d", n)
	}
}

func TestSetChannelAppliesOnce(t *testing.T) {
	s := newSettings(t, 8)

	for c := 0; c < 8; c++ {
		s.SetChannel(c)
		_, ch := s.Current()
		assert.Equal(t, uint8(c), ch)

		s.Reset()
		_, ch = s.Current()
		assert.Equal(t, uint8(0), ch)
	}
}

func TestSetChannelOutOfRangeWarns(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := logmock.NewMockLogger(ctrl)
	logger.EXPECT().Warn("invalid send channel, using channel 0", gomock.Any()).Times(3)

	s, err := New(2, logger)
	require.NoError(t, err)

	for _, c := range []int{2, 200, -1} {
		s.SetChannel(1)
		s.SetChannel(c)
		_, ch := s.Current()
		assert.Equal(t, uint8(0), ch, "channel %d", c)
	}
}

func TestSetModeInvalidFallsBackToReliable(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := logmock.NewMockLogger(ctrl)
	logger.EXPECT().Warn("invalid send mode, using reliable", gomock.Any()).Times(1)

	s, err := New(1, logger)
	require.NoError(t, err)
	require.NoError(t, s.SetDefaultMode(transport.Unreliable))

	s.SetMode("bogus")
	mode, _ := s.Current()
	assert.Equal(t, transport.Reliable, mode)

	s.Reset()
	mode, _ = s.Current()
	assert.Equal(t, transport.Unreliable, mode)
}

func TestSetModeAppliesOnce(t *testing.T) {
	s := newSettings(t, 1)

	s.SetMode(transport.Unsequenced)
	mode, _ := s.Current()
	assert.Equal(t, transport.Unsequenced, mode)

	s.Reset()
	s.Reset()
	mode, _ = s.Current()
	assert.Equal(t, transport.Reliable, mode)
}

func TestSetDefaultModeInvalidKeepsPrevious(t *testing.T) {
	s := newSettings(t, 1)
	require.NoError(t, s.SetDefaultMode(transport.Unsequenced))

	err := s.SetDefaultMode("bogus")
	require.ErrorIs(t, err, ErrInvalidMode)

	def, _ := s.Defaults()
	assert.Equal(t, transport.Unsequenced, def)
	mode, _ := s.Current()
	assert.Equal(t, transport.Unsequenced, mode)
}

func TestSetDefaultChannel(t *testing.T) {
	s := newSettings(t, 3)

	require.NoError(t, s.SetDefaultChannel(2))
	s.SetChannel(1)
	s.Reset()
	_, ch := s.Current()
	assert.Equal(t, uint8(2), ch)

	require.ErrorIs(t, s.SetDefaultChannel(3), ErrInvalidChannel)
	_, def := s.Defaults()
	assert.Equal(t, uint8(2), def)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Unreliable ")
	require.NoError(t, err)
	assert.Equal(t, transport.Unreliable, m)

	_, err = ParseMode("ordered")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCorrectors(t *testing.T) {
	ch, ok := CorrectChannel(3, 4)
	assert.True(t, ok)
	assert.Equal(t, uint8(3), ch)

	ch, ok = CorrectChannel(4, 4)
	assert.False(t, ok)
	assert.Equal(t, uint8(0), ch)

	m, ok := CorrectMode(transport.Unsequenced)
	assert.True(t, ok)
	assert.Equal(t, transport.Unsequenced, m)

	m, ok = CorrectMode("")
	assert.False(t, ok)
	assert.Equal(t, transport.Reliable, m)
}
