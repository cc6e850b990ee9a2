package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/QYUbit/Tether/pkg/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "tether.yaml", `
endpoint:
  address: 0.0.0.0
  port: 9100
  max_channels: 4
  poll_timeout: 50ms
  default_mode: unsequenced
  codec: json
  transport: websocket
log:
  level: debug
  outputs: [stderr]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Endpoint.Address)
	assert.Equal(t, 9100, cfg.Endpoint.Port)
	assert.Equal(t, 4, cfg.Endpoint.MaxChannels)
	assert.Equal(t, 64, cfg.Endpoint.MaxPeers)
	assert.Equal(t, 50*time.Millisecond, cfg.Endpoint.PollTimeout)
	assert.Equal(t, "unsequenced", cfg.Endpoint.DefaultMode)
	assert.Equal(t, "websocket", cfg.Endpoint.Transport)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
}

func TestLoadLogBackends(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog", "slog"} {
		t.Run(backend, func(t *testing.T) {
			path := writeFile(t, "tether.yaml", "log:\n  backend: "+backend+"\n  format: json\n")

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, backend, cfg.Log.Backend)
			assert.Equal(t, "json", cfg.Log.Format)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TETHER_ENDPOINT_PORT", "9200")
	t.Setenv("TETHER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Endpoint.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"level":     "log:\n  level: loud\n",
		"mode":      "endpoint:\n  default_mode: carrier-pigeon\n",
		"codec":     "endpoint:\n  codec: xml\n",
		"tls":       "tls:\n  cert_file: cert.pem\n",
		"backend":   "log:\n  backend: printf\n",
		"transport": "endpoint:\n  transport: carrier-pigeon\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "tether.yaml", body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildEndpointConfig(t *testing.T) {
	cfg := Default()
	cfg.Endpoint.DefaultMode = "Unreliable"
	cfg.Endpoint.Codec = "json"

	factory := memory.NewNetwork().Factory()
	ec, err := cfg.Endpoint.Build(factory, nil)
	require.NoError(t, err)

	assert.Equal(t, transport.Unreliable, ec.DefaultMode)
	assert.Equal(t, "json", ec.Codec.Name())
	assert.Equal(t, "localhost:22122", ec.HostAddr())
	assert.NotNil(t, ec.Transport)

	cfg.Endpoint.DefaultMode = "bogus"
	_, err = cfg.Endpoint.Build(factory, nil)
	assert.Error(t, err)
}

func TestLogZap(t *testing.T) {
	cfg := Default()
	cfg.Log.Rotation.Enable = true

	z := cfg.Log.Zap()
	assert.Equal(t, "info", z.Level)
	assert.Equal(t, []string{"stdout"}, z.Outputs)
	assert.True(t, z.Rotation.Enable)
	assert.Equal(t, 50, z.Rotation.MaxSizeMB)
}
