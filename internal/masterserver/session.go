package masterserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SFTtech/openage-lobbyserver/internal/db"
	"github.com/SFTtech/openage-lobbyserver/internal/protocol"
)

// errLogout ends the processor loop on a voluntary logout. It cancels the
// session's errgroup like any error but is filtered out before reporting.
var errLogout = errors.New("client logged out")

// session drives one accepted connection through the three protocol phases:
// version handshake, login/register loop, state machine.
type session struct {
	srv    *Server
	codec  *protocol.Codec
	remote string
	id     uuid.UUID
}

func newSession(srv *Server, conn net.Conn) (*session, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil, fmt.Errorf("splitting host port: %w", err)
	}
	return &session{
		srv:    srv,
		codec:  protocol.NewCodec(conn),
		remote: host,
		id:     uuid.New(),
	}, nil
}

// run executes the session until the connection ends. The codec is closed by
// the caller.
func (s *session) run(ctx context.Context) error {
	if err := s.handshake(); err != nil {
		return err
	}

	client, err := s.authenticate(ctx)
	if err != nil || client == nil {
		return err
	}

	return s.serve(ctx, client)
}

// handshake runs phase 1: the first line must be a VersionMessage matching
// the configured accepted version element-wise. Any failure terminates the
// connection.
func (s *session) handshake() error {
	msg, err := s.codec.Read()
	if err != nil {
		return fmt.Errorf("reading version message: %w", err)
	}

	version, ok := msg.(*protocol.VersionMessage)
	if !ok {
		s.codec.Write(&protocol.ServerError{Content: "Unknown Format."})
		return fmt.Errorf("expected VersionMessage, got %s", msg.Tag())
	}

	if !versionsEqual(version.PeerProtocolVersion, s.srv.Config().AcceptedVersion) {
		s.codec.Write(&protocol.ServerError{Content: "Incompatible Version."})
		return fmt.Errorf("incompatible peer version %v", version.PeerProtocolVersion)
	}

	return s.codec.Write(&protocol.ServerMessage{Content: "Version accepted."})
}

func versionsEqual(peer, accepted []int) bool {
	if len(peer) != len(accepted) {
		return false
	}
	for i := range peer {
		if peer[i] != accepted[i] {
			return false
		}
	}
	return true
}

// authenticate runs phase 2: a loop of Login and AddPlayer messages.
// AddPlayer re-enters the loop on both outcomes; Login either yields a
// registered Client or terminates the session. Returns nil, nil when the
// session should end without having logged in.
func (s *session) authenticate(ctx context.Context) (*Client, error) {
	for {
		msg, err := s.codec.Read()
		if err != nil {
			var dec *protocol.DecodeError
			if errors.As(err, &dec) {
				s.codec.Write(&protocol.ServerError{Content: "Unknown Format."})
			}
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("reading auth message: %w", err)
		}

		switch m := msg.(type) {
		case *protocol.Login:
			return s.login(ctx, m)

		case *protocol.AddPlayer:
			name := strings.ToLower(strings.TrimSpace(m.Name))
			hash, err := db.HashPassword(m.Pw)
			if err != nil {
				// Hasher failure is fatal for the session.
				return nil, fmt.Errorf("hashing password for %q: %w", name, err)
			}
			record, err := s.srv.players.AddPlayer(ctx, name, hash)
			if err != nil {
				slog.Error("credential store error on register", "session", s.id, "name", name, "err", err)
				s.codec.Write(&protocol.ServerError{Content: "Login failed."})
				return nil, fmt.Errorf("adding player %q: %w", name, err)
			}
			if record == nil {
				s.codec.Write(&protocol.ServerError{Content: "Name taken."})
				continue
			}
			slog.Info("player registered", "session", s.id, "name", name)
			if err := s.codec.Write(&protocol.ServerMessage{Content: "Player successfully added."}); err != nil {
				return nil, err
			}

		default:
			s.codec.Write(&protocol.ServerError{Content: "Unknown Format."})
			return nil, fmt.Errorf("unexpected %s during auth", msg.Tag())
		}
	}
}

// login verifies credentials and installs the Client in the registry,
// displacing any incumbent with the same name.
func (s *session) login(ctx context.Context, m *protocol.Login) (*Client, error) {
	name := strings.ToLower(strings.TrimSpace(m.LoginName))

	record, err := s.srv.players.GetPlayer(ctx, name)
	if err != nil {
		slog.Error("credential store error on login", "session", s.id, "name", name, "err", err)
		record = nil
	}
	if record == nil || !db.CheckPassword(record.PasswordHash, m.LoginPassword) {
		s.codec.Write(&protocol.ServerError{Content: "Login failed."})
		return nil, fmt.Errorf("login failed for %q", name)
	}

	client := NewClient(name, s.remote, s.codec)
	s.srv.registry.AddClient(client)
	slog.Info("login success", "session", s.id, "name", name, "remote", s.remote)

	if err := s.codec.Write(&protocol.ServerMessage{Content: "Login success."}); err != nil {
		// serve never runs for this client, so its cleanup path is ours.
		s.srv.registry.RemoveClient(client)
		return nil, err
	}
	return client, nil
}

// serve runs phase 3: the reader and the processor race under one errgroup.
// Whichever exits first cancels the sibling; cleanup (registry removal,
// socket close) is guaranteed on every path.
func (s *session) serve(ctx context.Context, client *Client) error {
	defer s.srv.registry.RemoveClient(client)

	g, gctx := errgroup.WithContext(ctx)

	// Closing the codec unblocks the reader once the group context dies.
	stop := context.AfterFunc(gctx, func() { s.codec.Close() })
	defer stop()

	g.Go(func() error { return s.readLoop(client) })
	g.Go(func() error { return s.process(gctx, client) })

	err := g.Wait()
	switch {
	case err == nil,
		errors.Is(err, errLogout),
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

// readLoop decodes socket lines onto the client's inbox. Decode failures are
// answered on the socket and skipped; I/O failures end the session.
func (s *session) readLoop(client *Client) error {
	for {
		msg, err := s.codec.Read()
		if err != nil {
			var dec *protocol.DecodeError
			if errors.As(err, &dec) {
				slog.Warn("undecodable message", "session", s.id, "name", client.Name(), "err", err)
				s.codec.Write(&protocol.ServerError{Content: "Could not read message."})
				continue
			}
			return err
		}
		client.Inbox().Push(msg)
	}
}
