package masterserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/SFTtech/openage-lobbyserver/internal/protocol"
)

// sessionState is the per-client protocol state after login.
type sessionState int

const (
	stateLobby         sessionState = iota // logged in, not in any game
	stateInLobbyGame                       // joined a game, pre-start
	stateInRunningGame                     // game started by its host
)

func (st sessionState) String() string {
	switch st {
	case stateLobby:
		return "LOBBY"
	case stateInLobbyGame:
		return "IN_LOBBY_GAME"
	case stateInRunningGame:
		return "IN_RUNNING_GAME"
	default:
		return "UNKNOWN"
	}
}

// process consumes the client's inbox and applies state transitions until
// logout, cancellation, or a write failure.
func (s *session) process(ctx context.Context, c *Client) error {
	st := stateLobby
	game := ""

	for {
		msg, err := c.Inbox().Pop(ctx)
		if err != nil {
			return err
		}

		// Logout ends the session from any state. Also delivered by the
		// registry when a second login displaces this client.
		if _, ok := msg.(*protocol.Logout); ok {
			c.Send(&protocol.ServerMessage{Content: "You have been logged out."})
			slog.Info("logout", "session", s.id, "name", c.Name())
			return errLogout
		}

		var next sessionState
		switch st {
		case stateLobby:
			next, game, err = s.handleLobby(c, msg, game)
		case stateInLobbyGame:
			next, game, err = s.handleLobbyGame(c, msg, game)
		case stateInRunningGame:
			next, game, err = s.handleRunningGame(c, msg, game)
		}
		if err != nil {
			return err
		}
		if next != st {
			slog.Debug("state transition", "session", s.id, "name", c.Name(),
				"from", st, "to", next, "game", game)
		}
		st = next
	}
}

// handleLobby applies LOBBY transitions.
func (s *session) handleLobby(c *Client, msg protocol.Message, game string) (sessionState, string, error) {
	switch m := msg.(type) {
	case *protocol.GameQuery:
		return stateLobby, "", c.Send(&protocol.GameQueryAnswer{Games: s.srv.registry.GameList()})

	case *protocol.GameInit:
		if err := s.srv.registry.CheckAddGame(c.Name(), m); err != nil {
			return stateLobby, "", c.Send(&protocol.ServerError{Content: "Failed adding game."})
		}
		slog.Info("game created", "session", s.id, "name", c.Name(), "game", m.GameInitName)
		return stateInLobbyGame, m.GameInitName, c.Send(&protocol.ServerMessage{Content: "Added game."})

	case *protocol.GameJoin:
		switch err := s.srv.registry.JoinGame(c.Name(), m.GameID); {
		case err == nil:
			return stateInLobbyGame, m.GameID, c.Send(&protocol.ServerMessage{Content: "Joined Game."})
		case errors.Is(err, ErrGameFull):
			return stateLobby, "", c.Send(&protocol.ServerError{Content: "Game is full."})
		case errors.Is(err, ErrNoSuchGame):
			return stateLobby, "", c.Send(&protocol.ServerError{Content: "Game does not exist."})
		default:
			return stateLobby, "", c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}

	case *protocol.Broadcast:
		// Internal delivery that can trail a game teardown; surfaced as text.
		return stateLobby, "", c.Send(&protocol.ServerMessage{Content: m.Content})

	default:
		return stateLobby, "", c.Send(&protocol.ServerError{Content: "Unknown Message."})
	}
}

// handleLobbyGame applies IN_LOBBY_GAME transitions.
func (s *session) handleLobbyGame(c *Client, msg protocol.Message, game string) (sessionState, string, error) {
	switch m := msg.(type) {
	case *protocol.ChatFromClient:
		s.srv.registry.Broadcast(game, &protocol.ChatFromThread{
			ChatFromTOrign:   c.Name(),
			ChatFromTContent: m.ChatFromCContent,
		})
		return stateInLobbyGame, game, nil

	case *protocol.ChatFromThread:
		return stateInLobbyGame, game, c.Send(&protocol.ChatOut{
			Origin:  m.ChatFromTOrign,
			Content: m.ChatFromTContent,
		})

	case *protocol.GameStart:
		switch hosts, err := s.srv.registry.StartGame(c.Name(), game); {
		case err == nil:
			slog.Info("game starting", "session", s.id, "name", c.Name(), "game", game)
			return stateInLobbyGame, game, c.Send(&protocol.GameStartAnswer{HostMap: hosts})
		case errors.Is(err, ErrPlayersNotReady):
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Players not ready."})
		case errors.Is(err, ErrNotHost):
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Only the host can start the game."})
		default:
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}

	case *protocol.GameInfo:
		g, ok := s.srv.registry.Game(game)
		if !ok {
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}
		return stateInLobbyGame, game, c.Send(&protocol.GameInfoAnswer{Game: protocol.ViewOfGame(g)})

	case *protocol.GameConfig:
		switch err := s.srv.registry.ConfigureGame(c.Name(), game, m); {
		case err == nil:
			return stateInLobbyGame, game, nil
		case errors.Is(err, ErrTooFewSlots):
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Can't choose less Players."})
		default:
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}

	case *protocol.PlayerConfig:
		if err := s.srv.registry.ConfigurePlayer(c.Name(), game, m); err != nil {
			return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}
		return stateInLobbyGame, game, nil

	case *protocol.GameClosedByHost:
		s.srv.registry.LeaveGame(c.Name(), game)
		return stateLobby, "", c.Send(&protocol.ServerMessage{Content: "Game was closed by Host."})

	case *protocol.GameLeave:
		return s.leaveGame(c, game)

	case *protocol.GameStartedByHost:
		return stateInRunningGame, game, c.Send(&protocol.ServerMessage{Content: "Game started..."})

	default:
		return stateInLobbyGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
	}
}

// handleRunningGame applies IN_RUNNING_GAME transitions.
func (s *session) handleRunningGame(c *Client, msg protocol.Message, game string) (sessionState, string, error) {
	switch m := msg.(type) {
	case *protocol.Broadcast:
		return stateInRunningGame, game, c.Send(&protocol.ServerMessage{Content: m.Content})

	case *protocol.ChatFromClient:
		s.srv.registry.Broadcast(game, &protocol.ChatFromThread{
			ChatFromTOrign:   c.Name(),
			ChatFromTContent: m.ChatFromCContent,
		})
		return stateInRunningGame, game, nil

	case *protocol.ChatFromThread:
		return stateInRunningGame, game, c.Send(&protocol.ChatOut{
			Origin:  m.ChatFromTOrign,
			Content: m.ChatFromTContent,
		})

	case *protocol.GameClosedByHost:
		s.srv.registry.LeaveGame(c.Name(), game)
		return stateLobby, "", c.Send(&protocol.ServerMessage{Content: "Game was closed by Host."})

	case *protocol.GameLeave:
		return s.leaveGame(c, game)

	case *protocol.GameOver:
		if err := s.srv.registry.EndGame(c.Name(), game); err != nil {
			return stateInRunningGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
		}
		slog.Info("game over", "session", s.id, "name", c.Name(), "game", game)
		return stateLobby, "", nil

	default:
		return stateInRunningGame, game, c.Send(&protocol.ServerError{Content: "Unknown Message."})
	}
}

// leaveGame runs the shared leave handler: hosts close the lobby for
// everyone, other members just vacate their slot. Either way the session
// returns to the lobby.
func (s *session) leaveGame(c *Client, game string) (sessionState, string, error) {
	s.srv.registry.LeaveGame(c.Name(), game)
	slog.Debug("left game", "session", s.id, "name", c.Name(), "game", game)
	return stateLobby, "", nil
}
