package main

import (
	"context"
	"errors"
	"time"

	"github.com/QYUbit/Tether/pkg/endpoint"
	"github.com/QYUbit/Tether/pkg/stats"
	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
)

const statsInterval = time.Minute

type Serve struct {
	Common
	MetricsAddr string `long:"metrics-addr" description:"serve Prometheus metrics on this address"`
}

func (s *Serve) Execute(args []string) error {
	cfg, logger, flush, err := s.load()
	if err != nil {
		return err
	}
	defer flush()

	factory, err := listenFactory(cfg, logger)
	if err != nil {
		return err
	}
	ec, err := cfg.Endpoint.Build(factory, logger)
	if err != nil {
		return err
	}
	if ec.PollTimeout == 0 {
		ec.PollTimeout = 50 * time.Millisecond
	}

	srv, err := endpoint.NewServer(ec)
	if err != nil {
		return err
	}
	relay(srv, logger)

	ctx, stop := signalContext()
	defer stop()

	if s.MetricsAddr != "" {
		cfg.Metrics.Address = s.MetricsAddr
	}
	var recorder *stats.Recorder
	if cfg.Metrics.Address != "" {
		recorder = stats.NewRecorder(cfg.Metrics.Namespace)
		go func() {
			if err := recorder.Serve(ctx, cfg.Metrics.Address, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	lastStats := time.Now()
	for {
		if err := srv.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			_ = srv.Close()
			return err
		}

		st := srv.Stats()
		if recorder != nil {
			recorder.Observe(st)
		}
		if time.Since(lastStats) >= statsInterval {
			lastStats = time.Now()
			logger.Info("relay stats",
				"sessions", st.Sessions,
				"packets_sent", st.PacketsSent,
				"packets_received", st.PacketsReceived,
				"bytes_sent", st.BytesSent,
				"bytes_received", st.BytesReceived,
				"last_service", st.LastService,
			)
		}
	}

	logger.Info("shutdown initiated")
	return srv.Close()
}

// relay registers the chat handlers. Clients send positional payloads which
// the schemas bind to named fields.
func relay(srv *endpoint.Server, logger tlog.Logger) {
	srv.SetSchema("chat", "text")
	srv.SetSchema("nick", "name")

	srv.HandleFunc(endpoint.EventConnect, func(_ any, ses *endpoint.Session) error {
		name := "guest-" + ses.ID()[:8]
		ses.Set("name", name)
		if err := ses.Send("welcome", []any{name, srv.SessionCount()}); err != nil {
			return err
		}
		return srv.Broadcast("joined", []any{name}, ses)
	})

	srv.HandleFunc(endpoint.EventDisconnect, func(_ any, ses *endpoint.Session) error {
		return srv.Broadcast("left", []any{nameOf(ses)}, nil)
	})

	srv.HandleFunc("nick", func(data any, ses *endpoint.Session) error {
		name, ok := field(data, "name")
		if !ok || name == "" {
			return errors.New("nick without name")
		}
		old := nameOf(ses)
		ses.Set("name", name)
		return srv.Broadcast("renamed", []any{old, name}, nil)
	})

	srv.HandleFunc("chat", func(data any, ses *endpoint.Session) error {
		text, ok := field(data, "text")
		if !ok {
			return errors.New("chat without text")
		}
		return srv.Broadcast("chat", []any{nameOf(ses), text}, ses)
	})

	// Pongs go out unreliably.
	srv.HandleFunc("ping", func(data any, ses *endpoint.Session) error {
		srv.SetMode(transport.Unreliable)
		return ses.Send("pong", data)
	})

	srv.HandleFallback(func(name string, _ any, ses *endpoint.Session) error {
		logger.Debug("unknown chat command", "event", name, "session", ses.ID())
		return nil
	})
}

func nameOf(ses *endpoint.Session) string {
	v, _ := ses.Get("name")
	name, _ := v.(string)
	return name
}

func field(data any, key string) (string, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
