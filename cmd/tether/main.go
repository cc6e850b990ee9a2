// Command tether runs a small chat relay over the Tether endpoint layer.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/QYUbit/Tether/pkg/config"
	"github.com/QYUbit/Tether/pkg/tlog"
	slogadapter "github.com/QYUbit/Tether/pkg/tlog/slog_adapter"
	zapadapter "github.com/QYUbit/Tether/pkg/tlog/zap_adapter"
	zerologadapter "github.com/QYUbit/Tether/pkg/tlog/zerolog_adapter"
	"github.com/jessevdk/go-flags"
)

// Common holds the options shared by every command.
type Common struct {
	Config  string `short:"c" long:"config" description:"path to a config file"`
	Address string `short:"a" long:"address" description:"override endpoint.address"`
	Port    int    `short:"p" long:"port" description:"override endpoint.port"`
	Debug   bool   `long:"debug" description:"log at debug level"`
}

// load reads the config, applies flag overrides and builds the logger. The
// returned func flushes the logger.
func (c *Common) load() (*config.Config, tlog.Logger, func(), error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.Address != "" {
		cfg.Endpoint.Address = c.Address
	}
	if c.Port != 0 {
		cfg.Endpoint.Port = c.Port
	}
	if c.Debug {
		cfg.Log.Level = "debug"
	}

	switch cfg.Log.Backend {
	case "zerolog":
		zl := zerologadapter.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		return cfg, zerologadapter.New(zl), func() {}, nil
	case "slog":
		sl := slogadapter.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		return cfg, slogadapter.New(sl), func() {}, nil
	}

	zl, err := zapadapter.Setup(cfg.Log.Zap())
	if err != nil {
		return nil, nil, nil, err
	}
	logger := zapadapter.New(zl)
	return cfg, logger, func() { _ = logger.Sync() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	var (
		serve Serve
		dial  Dial
	)

	parser := flags.NewNamedParser("tether", flags.Default)
	parser.AddCommand("serve", "run a chat relay", "Listen for clients and relay chat messages between them", &serve)
	parser.AddCommand("dial", "join a chat relay", "Connect to a relay and chat from stdin", &dial)

	// Errors are printed by the parser.
	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
