// Package wire serves the shell protocol to clients as JSON lines over a
// unix socket.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/shell"
	"github.com/hashicorp/go-multierror"
)

// Input accepts injected pointer events. The headless backend implements it.
type Input interface {
	PointerMotion(seat string, pos platform.Point) error
	PointerButton(seat string, button uint32, pressed bool) (consumed bool, err error)
}

// ServerConfig wires a Server to the shell.
type ServerConfig struct {
	Registry *shell.Registry
	Loop     *loop.Loop
	// Input is optional; without it pointer_motion and pointer_button fail.
	Input  Input
	Logger *slog.Logger
}

// Server accepts client connections.
type Server struct {
	registry *shell.Registry
	loop     *loop.Loop
	input    Input
	logger   *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	conns      map[*conn]struct{}
	closing    bool
	wg         sync.WaitGroup
}

// NewServer creates a server. Call Listen and Serve to accept clients, or
// ServeConn to drive a single connection.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		registry: cfg.Registry,
		loop:     cfg.Loop,
		input:    cfg.Input,
		logger:   logger,
		conns:    make(map[*conn]struct{}),
	}
}

// Listen binds the protocol socket at path, replacing a stale one.
func (s *Server) Listen(path string) error {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to create protocol socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		l.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = l
	s.socketPath = path
	s.mu.Unlock()
	s.logger.Info("protocol socket listening", "path", path)
	return nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return fmt.Errorf("protocol server is not listening")
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		nc, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, nc)
		}()
	}
}

// ServeConn runs one client connection until it closes.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	c := newConn(s, nc)
	if !s.track(c) {
		nc.Close()
		return
	}
	defer s.untrack(c)
	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()

	c.logger.Info("client connected")
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()
	c.readLoop(ctx)
	c.finish()
	<-done
	c.logger.Info("client gone")
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting, drops every connection and removes the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	l := s.listener
	path := s.socketPath
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var result *multierror.Error
	if l != nil {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("close listener: %w", err))
		}
	}
	for _, c := range conns {
		if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("close client %s: %w", c.id, err))
		}
	}
	s.wg.Wait()
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, fmt.Errorf("remove socket: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
