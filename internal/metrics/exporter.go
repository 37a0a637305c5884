package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves a registry over HTTP at /metrics.
type Exporter struct {
	server   *http.Server
	listener net.Listener
}

// NewExporter creates an exporter for g on addr.
func NewExporter(addr string, g prometheus.Gatherer) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Exporter{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listen address and serves in the background.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.server.Addr)
	if err != nil {
		return err
	}
	e.listener = ln
	go func() {
		_ = e.server.Serve(ln)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (e *Exporter) Addr() string {
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.server.Addr
}

// Stop shuts the server down.
func (e *Exporter) Stop(ctx context.Context) error {
	if err := e.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
