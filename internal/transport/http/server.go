package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server wraps http.Server with context-driven graceful shutdown.
type Server struct {
	name            string
	srv             *http.Server
	shutdownTimeout time.Duration
}

func NewServer(name, port string, h http.Handler, shutdownTimeout time.Duration) *Server {
	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("[%s] Listening on %s", s.name, s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("[%s] Shutting down (timeout %s)", s.name, s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", s.name, err)
	}
	log.Infof("[%s] Stopped", s.name)
	return nil
}
