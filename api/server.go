package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cloudchase/chatstream/config"
	"github.com/cloudchase/chatstream/engine"
	"github.com/cloudchase/chatstream/stream"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

// Server is the chat streaming HTTP server.
type Server struct {
	settings *config.Settings
	bridge   *stream.Bridge
	defaults engine.Defaults
	log      zerolog.Logger
	handler  http.Handler
}

// NewServer creates a server that streams generations from bridge.
func NewServer(settings *config.Settings, bridge *stream.Bridge, log zerolog.Logger) *Server {
	s := &Server{
		settings: settings,
		bridge:   bridge,
		defaults: engine.DefaultsFrom(settings),
		log:      log,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.settings.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Shutdown cancels
// every request context, so in-flight generations stop and their responses
// end with the cancelled trailer before the connections are drained.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().
			Str("addr", ln.Addr().String()).
			Str("app", s.settings.AppName).
			Str("prefix", s.settings.APIPrefix).
			Msg("starting chat server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down chat server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("connections still open after shutdown timeout, closing them")
		_ = srv.Close()
	}
	return nil
}
