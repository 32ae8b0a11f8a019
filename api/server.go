// Package api serves the cached solutions and the service parameters over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/slok/go-http-metrics/middleware/std"
	"go.uber.org/zap"

	"github.com/spacemeshos/vdfcache/events"
	"github.com/spacemeshos/vdfcache/state"
)

// Opt configures the Server.
type Opt func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the consumption API. Every read and write goes through the state store.
type Server struct {
	logger   *zap.Logger
	cfg      Config
	store    *state.Store
	reporter *events.Reporter

	handler http.Handler
	server  *http.Server
	lis     net.Listener
	closing chan struct{} // closed when the server shuts down, ends event streams.
}

// NewServer validates the config and binds the listener.
func NewServer(cfg Config, store *state.Store, reporter *events.Reporter, opts ...Opt) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		logger:   zap.NewNop(),
		cfg:      cfg,
		store:    store,
		reporter: reporter,
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen api on %s: %w", cfg.Listen, err)
	}
	s.lis = lis
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with all middlewares applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	handle := func(path, method string, h http.HandlerFunc) {
		router.Handle(path, std.Handler(path, routeMetrics, h)).Methods(method)
	}
	handle("/status", http.MethodGet, s.status)
	handle("/vdf", http.MethodGet, s.all)
	handle("/vdf/{n}", http.MethodGet, s.byModulus)
	handle("/vdf/{n}/{t}", http.MethodGet, s.byPair)
	handle("/vdf/{n}/{t}/{x}", http.MethodGet, s.solution)
	handle("/vdf/{n}/{t}/{x}", http.MethodDelete, s.consume)
	handle("/t", http.MethodGet, s.getT)
	handle("/t", http.MethodPost, s.setT)
	handle("/n", http.MethodGet, s.getN)
	handle("/n", http.MethodPost, s.setN)
	// the stream hijacks the connection and is not measured per request.
	if s.reporter != nil {
		router.HandleFunc("/events", s.events).Methods(http.MethodGet)
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = router
	h = withCORS(s.cfg.Origin, h)
	h = withOrigin(s.logger, s.cfg.Origin, h)
	return withRequestLog(s.logger, h)
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving api", zap.Stringer("address", s.lis.Addr()), zap.String("origin", s.cfg.Origin))
	errc := make(chan error, 1)
	go func() { errc <- s.server.Serve(s.lis) }()
	select {
	case err := <-errc:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	close(s.closing)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}
