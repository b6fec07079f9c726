package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	ready      chan struct{}
}

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

var errNotStarted = errors.New("server not started")

// newHTTPServer builds a configured *http.Server for the given handler.
func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// normalizeAddr turns a bare port into ":port"; full addresses pass through.
func normalizeAddr(port string) string {
	if port == "" {
		return ""
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func (s *Server) readyCh() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready == nil {
		s.ready = make(chan struct{})
	}
	return s.ready
}

// Run listens on port ("8080", ":8080", "127.0.0.1:0") and serves handler until
// Shutdown. It returns http.ErrServerClosed after a graceful stop.
func (s *Server) Run(port string, handler http.Handler) error {
	ln, err := net.Listen("tcp", normalizeAddr(port))
	if err != nil {
		return err
	}
	srv := newHTTPServer(handler)
	ready := s.readyCh()

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()
	close(ready)

	return srv.Serve(ln)
}

// Addr blocks until Run has bound its listener and returns the bound address.
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.readyCh():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return "", errNotStarted
	}
	return s.listener.Addr().String(), nil
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
