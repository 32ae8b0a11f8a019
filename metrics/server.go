package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config for the metrics endpoint.
type Config struct {
	Enabled bool   `mapstructure:"metrics"`
	Listen  string `mapstructure:"metrics-listen"`

	PushURL    string        `mapstructure:"metrics-push"`
	PushPeriod time.Duration `mapstructure:"metrics-push-period"`
}

// DefaultConfig keeps metrics off.
func DefaultConfig() Config {
	return Config{
		Listen:     "127.0.0.1:9090",
		PushPeriod: time.Minute,
	}
}

// Server serves /metrics from the default prometheus registry.
type Server struct {
	logger *zap.Logger
	server *http.Server
	lis    net.Listener
}

// NewServer binds the listener right away so that the address is known before Run.
func NewServer(logger *zap.Logger, listen string) (*Server, error) {
	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen metrics on %s: %w", listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	return &Server{
		logger: logger,
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis:    lis,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving metrics", zap.Stringer("address", s.lis.Addr()))
	errc := make(chan error, 1)
	go func() { errc <- s.server.Serve(s.lis) }()
	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
