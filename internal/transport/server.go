package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/transfer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves one accepted connection. It owns conn.
type Handler func(ctx context.Context, conn transfer.Conn)

// Server upgrades requests on path to WebSocket connections and runs
// handler for each in its own goroutine.
type Server struct {
	// MaxSessions caps simultaneously open connections when positive.
	// Set before Start.
	MaxSessions int

	addr    string
	path    string
	handler Handler

	listener net.Listener
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	stopping bool // guards sessions.Add against a concurrent Wait
	sessions sync.WaitGroup
}

func NewServer(addr, path string, handler Handler) *Server {
	if path == "" {
		path = "/ws"
	}
	return &Server{addr: addr, path: path, handler: handler}
}

// Start begins listening. Sessions are cancelled when ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start WS server: %w", err)
	}
	if s.MaxSessions > 0 {
		listener = netutil.LimitListener(listener, s.MaxSessions)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWS)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.GetLogger().WithField("addr", listener.Addr().String()).WithField("path", s.path).Info("receiver listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.GetLogger().WithError(err).Error("receiver server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.GetLogger().WithError(err).Warn("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		log.GetLogger().WithField("peer", r.RemoteAddr).Warn("rejecting session, server stopping")
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = ws.Close()
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.sessions.Done()
		conn := newConn(ws)
		defer conn.Close()
		log.GetLogger().WithField("peer", r.RemoteAddr).Info("session opened")
		s.handler(s.ctx, conn)
	}()
}

// Stop stops accepting connections, cancels running sessions and waits
// for them to finish persisting.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		return fmt.Errorf("receiver shutdown: %w", shutdownCtx.Err())
	}

	if err != nil {
		return fmt.Errorf("receiver shutdown failed: %w", err)
	}
	return nil
}
