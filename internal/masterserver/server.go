package masterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/SFTtech/openage-lobbyserver/internal/config"
	"github.com/SFTtech/openage-lobbyserver/internal/db"
)

// Server is the lobby master server accepting game clients over TCP.
type Server struct {
	cfg      atomic.Pointer[config.MasterServer]
	players  db.PlayerRepository
	registry *Registry

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a master server with an empty registry.
func NewServer(cfg config.MasterServer, players db.PlayerRepository) *Server {
	s := &Server{
		players:  players,
		registry: NewRegistry(),
	}
	s.cfg.Store(&cfg)
	return s
}

// Config returns the current configuration snapshot.
func (s *Server) Config() config.MasterServer {
	return *s.cfg.Load()
}

// ApplyConfig publishes a new configuration snapshot. Sessions pick it up at
// their next handshake; a changed port takes effect on restart only.
func (s *Server) ApplyConfig(cfg config.MasterServer) {
	old := s.cfg.Load()
	if old.Port != cfg.Port {
		slog.Warn("port change requires restart", "old", old.Port, "new", cfg.Port)
	}
	s.cfg.Store(&cfg)
}

// Registry returns the shared client/game registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the address the server listens on, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run begins listening for client connections on the configured address.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.Config()
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections from a ready listener. Used directly by tests
// with an arbitrary listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info(fmt.Sprintf("Listening on port %d", portOf(ln.Addr())))
		acceptLoop(ctx, &wg, s, ln)
	}()

	wg.Wait()

	return nil
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func acceptLoop(ctx context.Context, wg *sync.WaitGroup, srv *Server, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("Failed to accept new connection", "error", err)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handleConnection(ctx, srv, conn)
			}()
		}
	}
}

func handleConnection(ctx context.Context, srv *Server, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("session panicked", "remote", conn.RemoteAddr(), "panic", r)
		}
	}()

	sess, err := newSession(srv, conn)
	if err != nil {
		slog.Error("failed to create session", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	slog.Info("Accepted connection from "+sess.remote, "session", sess.id)

	if err := sess.run(ctx); err != nil {
		slog.Warn("session ended", "session", sess.id, "remote", sess.remote, "error", err)
		return
	}
	slog.Debug("session closed", "session", sess.id, "remote", sess.remote)
}
