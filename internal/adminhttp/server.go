// Package adminhttp implements the loopback-bindable admin HTTP surface:
// health probes, Prometheus exposition, and read-only JSON views of the
// guest session table and loaded NBD configs.
package adminhttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rtftp/rtftpd/internal/logger"
)

// Server wraps an http.Server bound to the admin surface's listen address.
type Server struct {
	server       *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// NewServer builds a Server listening on addr (e.g. "127.0.0.1:8099", or
// "127.0.0.1:0" to let the OS pick a port) and serving the routes from
// NewRouter(deps). The socket is bound immediately so Addr() is valid
// before Start is called.
func NewServer(addr string, deps Deps) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("admin http server listen: %w", err)
	}

	return &Server{
		listener: ln,
		server: &http.Server{
			Handler:      NewRouter(deps),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Start serves on the pre-bound listener until ctx is cancelled, at which
// point it shuts down gracefully. Returns nil on graceful shutdown, or the
// underlying serve error otherwise.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("admin http server listening", "addr", s.listener.Addr().String())
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin http server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and safe
// to call concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin http server shutdown: %w", err)
		}
	})
	return shutdownErr
}

// Addr returns the actual bound address, including the OS-assigned port
// when the server was created with a ":0" port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}
