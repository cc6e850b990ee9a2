// Package stats exports endpoint counters to Prometheus.
package stats

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/QYUbit/Tether/pkg/endpoint"
	"github.com/QYUbit/Tether/pkg/tlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the last observed endpoint stats. Observe is called from
// the poll loop; scrapes read the stored copy from other goroutines.
type Recorder struct {
	last     atomic.Pointer[endpoint.Stats]
	registry *prometheus.Registry
}

func NewRecorder(namespace string) *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.last.Store(&endpoint.Stats{})

	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "sessions",
			Help:      "Connected sessions.",
		}, func() float64 { return float64(r.Last().Sessions) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "packets_sent_total",
			Help:      "Events sent.",
		}, func() float64 { return float64(r.Last().PacketsSent) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "packets_received_total",
			Help:      "Packets received.",
		}, func() float64 { return float64(r.Last().PacketsReceived) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Payload bytes sent by the transport host.",
		}, func() float64 { return float64(r.Last().BytesSent) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Payload bytes received by the transport host.",
		}, func() float64 { return float64(r.Last().BytesReceived) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "last_service_seconds",
			Help:      "Duration of the last poll.",
		}, func() float64 { return r.Last().LastService.Seconds() }),
	)
	return r
}

// Observe stores a snapshot for the next scrape.
func (r *Recorder) Observe(s endpoint.Stats) {
	r.last.Store(&s)
}

func (r *Recorder) Last() endpoint.Stats {
	return *r.last.Load()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger tlog.Logger) error {
	logger = tlog.OrNop(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
