package slogadapter

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/stretchr/testify/assert"
)

var _ tlog.Logger = (*Adapter)(nil)

func TestAdapterWith(t *testing.T) {
	var buf bytes.Buffer
	a := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	a.With("peer", "p1").Debug("peer connected", "remote", "client-1")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="peer connected"`)
	assert.Contains(t, out, "peer=p1")
	assert.Contains(t, out, "remote=client-1")
}

func TestSetupJSONFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	a := New(Setup(&buf, "warn", "json"))

	a.Info("hidden")
	a.Warn("dropping packet", "channel", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"msg":"dropping packet"`)
	assert.Contains(t, out, `"channel":2`)
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	New(Setup(&buf, "debug", "console")).Debug("peer connected")

	assert.Contains(t, buf.String(), `level=DEBUG msg="peer connected"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}
