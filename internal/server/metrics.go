package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves /metrics for one registry and a plain /healthz.
type Metrics struct {
	srv    *http.Server
	lis    net.Listener
	logger *slog.Logger
}

// Handler builds the mux without binding a listener.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func NewMetrics(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) (*Metrics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		srv: &http.Server{
			Handler:           Handler(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		lis:    lis,
		logger: logger,
	}, nil
}

func (m *Metrics) Addr() string { return m.lis.Addr().String() }

// Serve blocks until ctx is done, then shuts down within five seconds.
func (m *Metrics) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("admin.metrics.listening", "addr", m.Addr())
		errCh <- m.srv.Serve(m.lis)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := m.srv.Shutdown(shutdownCtx)
		<-errCh
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the listener of a server that never started serving.
func (m *Metrics) Close() error { return m.lis.Close() }
