// Package config loads Tether node configuration from files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/QYUbit/Tether/pkg/codec"
	"github.com/QYUbit/Tether/pkg/delivery"
	"github.com/QYUbit/Tether/pkg/endpoint"
	"github.com/QYUbit/Tether/pkg/tlog"
	zapadapter "github.com/QYUbit/Tether/pkg/tlog/zap_adapter"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
}

// EndpointConfig mirrors endpoint.Config in file form.
type EndpointConfig struct {
	Address        string        `mapstructure:"address"`
	Port           int           `mapstructure:"port"`
	MaxPeers       int           `mapstructure:"max_peers"`
	MaxChannels    int           `mapstructure:"max_channels"`
	InBandwidth    int           `mapstructure:"in_bandwidth"`
	OutBandwidth   int           `mapstructure:"out_bandwidth"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	DefaultMode    string        `mapstructure:"default_mode"`
	DefaultChannel int           `mapstructure:"default_channel"`
	// Codec: cbor or json
	Codec string `mapstructure:"codec"`
	// Transport: quic or websocket
	Transport string `mapstructure:"transport"`
}

// TLSConfig points at the server certificate. Without files a self signed
// certificate is generated.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// Insecure skips server certificate verification when dialing.
	Insecure bool `mapstructure:"insecure"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Backend: zap, zerolog or slog
	Backend string `mapstructure:"backend"`
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Development bool           `mapstructure:"development"`
	Rotation    RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with the endpoint defaults.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Address:     endpoint.DefaultAddress,
			Port:        endpoint.DefaultPort,
			MaxPeers:    endpoint.DefaultMaxPeers,
			MaxChannels: endpoint.DefaultMaxChannels,
			DefaultMode: string(transport.Reliable),
			Codec:       "cbor",
			Transport:   "quic",
		},
		TLS:     TLSConfig{Insecure: true},
		Metrics: MetricsConfig{Namespace: "tether"},
		Log: LogConfig{
			Backend: "zap",
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path, or searches ./tether.* and
// ~/.tether/tether.* when path is empty. Environment variables prefixed with
// TETHER override file values, e.g. TETHER_ENDPOINT_PORT=9000.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("TETHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("endpoint.address", cfg.Endpoint.Address)
	v.SetDefault("endpoint.port", cfg.Endpoint.Port)
	v.SetDefault("endpoint.max_peers", cfg.Endpoint.MaxPeers)
	v.SetDefault("endpoint.max_channels", cfg.Endpoint.MaxChannels)
	v.SetDefault("endpoint.in_bandwidth", cfg.Endpoint.InBandwidth)
	v.SetDefault("endpoint.out_bandwidth", cfg.Endpoint.OutBandwidth)
	v.SetDefault("endpoint.poll_timeout", cfg.Endpoint.PollTimeout)
	v.SetDefault("endpoint.default_mode", cfg.Endpoint.DefaultMode)
	v.SetDefault("endpoint.default_channel", cfg.Endpoint.DefaultChannel)
	v.SetDefault("endpoint.codec", cfg.Endpoint.Codec)
	v.SetDefault("endpoint.transport", cfg.Endpoint.Transport)
	v.SetDefault("tls.cert_file", cfg.TLS.CertFile)
	v.SetDefault("tls.key_file", cfg.TLS.KeyFile)
	v.SetDefault("tls.insecure", cfg.TLS.Insecure)
	v.SetDefault("metrics.address", cfg.Metrics.Address)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
	v.SetDefault("log.backend", cfg.Log.Backend)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("TETHER_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tether")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tether"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch c.Log.Backend {
	case "zap", "zerolog", "slog":
	default:
		return fmt.Errorf("invalid log.backend: %q", c.Log.Backend)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}
	if _, err := delivery.ParseMode(c.Endpoint.DefaultMode); err != nil {
		return fmt.Errorf("invalid endpoint.default_mode: %w", err)
	}
	if _, err := codec.ByName(c.Endpoint.Codec); err != nil {
		return fmt.Errorf("invalid endpoint.codec: %w", err)
	}
	switch c.Endpoint.Transport {
	case "quic", "websocket":
	default:
		return fmt.Errorf("invalid endpoint.transport: %q", c.Endpoint.Transport)
	}
	return nil
}

// Build converts c into an endpoint.Config using the given
// transport factory and logger.
func (c EndpointConfig) Build(factory transport.Factory, logger tlog.Logger) (endpoint.Config, error) {
	mode, err := delivery.ParseMode(c.DefaultMode)
	if err != nil {
		return endpoint.Config{}, err
	}
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return endpoint.Config{}, err
	}

	return endpoint.Config{
		Address:        c.Address,
		Port:           c.Port,
		MaxPeers:       c.MaxPeers,
		MaxChannels:    c.MaxChannels,
		InBandwidth:    c.InBandwidth,
		OutBandwidth:   c.OutBandwidth,
		PollTimeout:    c.PollTimeout,
		DefaultMode:    mode,
		DefaultChannel: c.DefaultChannel,
		Codec:          cd,
		Logger:         logger,
		Transport:      factory,
	}, nil
}

// Zap converts c into the zap adapter's setup config.
func (c LogConfig) Zap() zapadapter.Config {
	return zapadapter.Config{
		Level:       c.Level,
		Format:      c.Format,
		Outputs:     c.Outputs,
		Development: c.Development,
		Rotation: zapadapter.RotationConfig{
			Enable:     c.Rotation.Enable,
			MaxSizeMB:  c.Rotation.MaxSizeMB,
			MaxBackups: c.Rotation.MaxBackups,
			MaxAgeDays: c.Rotation.MaxAgeDays,
			Compress:   c.Rotation.Compress,
		},
	}
}
