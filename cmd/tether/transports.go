package main

import (
	"crypto/tls"
	"fmt"

	"github.com/QYUbit/Tether/pkg/config"
	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/QYUbit/Tether/pkg/transport"
	"github.com/QYUbit/Tether/pkg/transport/quic"
	"github.com/QYUbit/Tether/pkg/transport/websocket"
)

// listenFactory builds the transport a relay listens on. quic always needs
// a certificate, so a self signed one is made when none is configured.
// websocket serves plain ws unless a certificate is configured.
func listenFactory(cfg *config.Config, logger tlog.Logger) (transport.Factory, error) {
	switch cfg.Endpoint.Transport {
	case "websocket":
		var tlsConf *tls.Config
		if cfg.TLS.CertFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to set up tls: %w", err)
			}
			tlsConf = &tls.Config{Certificates: []tls.Certificate{cert}}
		}
		return websocket.Factory(websocket.Config{TLS: tlsConf, Logger: logger}), nil

	default:
		var (
			tlsConf *tls.Config
			err     error
		)
		if cfg.TLS.CertFile != "" {
			tlsConf, err = quic.LoadTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			tlsConf, err = quic.SelfSignedTLS(cfg.Endpoint.Address)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to set up tls: %w", err)
		}
		return quic.Factory(quic.Config{TLS: tlsConf, Logger: logger}), nil
	}
}

// dialFactory builds the transport a client dials with. secure switches
// websocket clients to wss.
func dialFactory(cfg *config.Config, logger tlog.Logger, secure bool) transport.Factory {
	switch cfg.Endpoint.Transport {
	case "websocket":
		var tlsConf *tls.Config
		if secure {
			tlsConf = &tls.Config{InsecureSkipVerify: cfg.TLS.Insecure}
		}
		return websocket.Factory(websocket.Config{TLS: tlsConf, Logger: logger})

	default:
		return quic.Factory(quic.Config{TLS: quic.ClientTLS(cfg.TLS.Insecure), Logger: logger})
	}
}
