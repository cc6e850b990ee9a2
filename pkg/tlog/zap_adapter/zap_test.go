package zapadapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ tlog.Logger = (*Adapter)(nil)

func TestAdapterForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := New(zap.New(core))

	a.Info("server listening", "address", "localhost:22122")
	a.Warn("no handler for event", "event", "chat")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "localhost:22122", entries[0].ContextMap()["address"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "chat", entries[1].ContextMap()["event"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel(" Debug "))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tether.log")
	logger, err := Setup(Config{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{path},
		Rotation: RotationConfig{
			Enable:    true,
			MaxSizeMB: 1,
		},
	})
	require.NoError(t, err)

	New(logger).Debug("hello", "k", "v")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}
