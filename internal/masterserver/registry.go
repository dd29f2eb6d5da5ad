package masterserver

import (
	"errors"
	"sort"
	"sync"

	"github.com/SFTtech/openage-lobbyserver/internal/model"
	"github.com/SFTtech/openage-lobbyserver/internal/protocol"
)

// Registry mutation errors. The session maps these onto the protocol's
// literal Error replies.
var (
	ErrNameTaken       = errors.New("game name taken")
	ErrNoSuchGame      = errors.New("game does not exist")
	ErrGameFull        = errors.New("game is full")
	ErrAlreadyInGame   = errors.New("player already in game")
	ErrNotHost         = errors.New("player is not the host")
	ErrPlayersNotReady = errors.New("players not ready")
	ErrTooFewSlots     = errors.New("capacity below current player count")
	ErrNotInGame       = errors.New("player not in game")
	ErrInvalidGame     = errors.New("invalid game parameters")
)

// Registry holds the shared maps {username → Client} and {gameName → Game}.
// One mutex covers both maps; every exported method is one indivisible
// transaction, so cross-map invariants hold at every unlock. Inbox pushes
// never block, which makes enqueueing under the lock safe and gives each
// broadcast call a contiguous slot in every recipient's mailbox.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	games   map[string]*model.Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		games:   make(map[string]*model.Game),
	}
}

// AddClient installs c under its username. If a client with the same name is
// already logged in, the incumbent receives a Logout on its inbox, is removed
// from every game it occupies (closing games it hosts) and loses the slot to
// c, all in the same transaction. The displaced session later calls
// RemoveClient, which no-ops because the entry no longer refers to it.
func (r *Registry) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if incumbent, ok := r.clients[c.name]; ok {
		incumbent.inbox.Push(&protocol.Logout{})
		r.removeFromGamesLocked(c.name)
	}
	r.clients[c.name] = c
}

// RemoveClient removes c from the registry and cascades a leave from every
// game it occupies. Identity-checked: a displaced incumbent must not evict
// its replacement.
func (r *Registry) RemoveClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[c.name] != c {
		return
	}
	r.removeFromGamesLocked(c.name)
	delete(r.clients, c.name)
}

// Client returns the client registered under name.
func (r *Registry) Client(name string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[name]
	return c, ok
}

// GameList returns a snapshot of lobby summaries, sorted by name.
func (r *Registry) GameList() []model.GameSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]model.GameSummary, 0, len(r.games))
	for _, g := range r.games {
		list = append(list, g.Summary())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Game returns a deep copy of the named game.
func (r *Registry) Game(name string) (*model.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[name]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// CheckAddGame creates a lobby with host occupying the first slot. Creating
// the game and seating the host is one transaction so a lobby never exists
// without its host. Returns ErrNameTaken if the name is in use.
func (r *Registry) CheckAddGame(host string, init *protocol.GameInit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if init.GameInitName == "" || init.NumPlayers < 1 {
		return ErrInvalidGame
	}
	if _, ok := r.games[init.GameInitName]; ok {
		return ErrNameTaken
	}
	r.games[init.GameInitName] = model.NewGame(
		init.GameInitName, host, init.GameMap, init.GameMode, init.NumPlayers,
	)
	return nil
}

// JoinGame seats name in the game with a default slot (civ "", team 0, not
// ready). Fails when the game is missing, full, or already contains name.
func (r *Registry) JoinGame(name, gameName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return ErrNoSuchGame
	}
	if _, ok := g.Players[name]; ok {
		return ErrAlreadyInGame
	}
	if len(g.Players) >= g.MaxPlayers {
		return ErrGameFull
	}
	g.Players[name] = model.PlayerSlot{}
	return nil
}

// LeaveGame removes name from the game. If name hosts it, the lobby closes:
// every remaining member receives GameClosedByHost on its inbox and the game
// entry is deleted.
func (r *Registry) LeaveGame(name, gameName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveGameLocked(name, gameName)
}

// ConfigureGame updates map, mode and capacity. Only the host may configure,
// and capacity may not drop below the current player count.
func (r *Registry) ConfigureGame(self, gameName string, conf *protocol.GameConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return ErrNoSuchGame
	}
	if g.Host != self {
		return ErrNotHost
	}
	if conf.GameConfPlayerNum < len(g.Players) {
		return ErrTooFewSlots
	}
	g.Map = conf.GameConfMap
	g.Mode = conf.GameConfMode
	g.MaxPlayers = conf.GameConfPlayerNum
	return nil
}

// ConfigurePlayer updates name's own slot in the game.
func (r *Registry) ConfigurePlayer(name, gameName string, conf *protocol.PlayerConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return ErrNoSuchGame
	}
	if _, ok := g.Players[name]; !ok {
		return ErrNotInGame
	}
	g.Players[name] = model.PlayerSlot{
		Civ:   conf.PlayerCiv,
		Team:  conf.PlayerTeam,
		Ready: conf.PlayerReady,
	}
	return nil
}

// StartGame checks that self hosts the game and every slot is ready, then
// broadcasts GameStartedByHost to all members and returns the username →
// peer-address map for the host's GameStartAnswer. Check and fan-out share
// one transaction so no player can join or unready in between.
func (r *Registry) StartGame(self, gameName string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return nil, ErrNoSuchGame
	}
	if g.Host != self {
		return nil, ErrNotHost
	}
	for _, slot := range g.Players {
		if !slot.Ready {
			return nil, ErrPlayersNotReady
		}
	}

	hosts := make(map[string]string, len(g.Players))
	for name := range g.Players {
		if c, ok := r.clients[name]; ok {
			hosts[name] = c.host
			c.inbox.Push(&protocol.GameStartedByHost{})
		}
	}
	return hosts, nil
}

// EndGame finishes a running game. Only the host may end it. Every member
// (host included) receives Broadcast "Game Over."; the subsequent host leave
// closes the lobby, so remaining members also get GameClosedByHost. One
// transaction, so nobody joins a game that is being torn down.
func (r *Registry) EndGame(self, gameName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return ErrNoSuchGame
	}
	if g.Host != self {
		return ErrNotHost
	}
	for name := range g.Players {
		if c, ok := r.clients[name]; ok {
			c.inbox.Push(&protocol.Broadcast{Content: "Game Over."})
		}
	}
	r.leaveGameLocked(self, gameName)
	return nil
}

// Broadcast pushes m onto the inbox of every member of the game, including
// the sender if it is a member. Members whose client disappeared between
// snapshot and lookup are skipped.
func (r *Registry) Broadcast(gameName string, m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameName]
	if !ok {
		return
	}
	for name := range g.Players {
		if c, ok := r.clients[name]; ok {
			c.inbox.Push(m)
		}
	}
}

// leaveGameLocked implements LeaveGame under an already-held lock.
func (r *Registry) leaveGameLocked(name, gameName string) {
	g, ok := r.games[gameName]
	if !ok {
		return
	}
	if g.Host == name {
		for member := range g.Players {
			if member == name {
				continue
			}
			if c, ok := r.clients[member]; ok {
				c.inbox.Push(&protocol.GameClosedByHost{})
			}
		}
		delete(r.games, gameName)
		return
	}
	delete(g.Players, name)
}

// removeFromGamesLocked cascades a leave from every game name occupies.
func (r *Registry) removeFromGamesLocked(name string) {
	for gameName, g := range r.games {
		if _, ok := g.Players[name]; ok {
			r.leaveGameLocked(name, gameName)
		}
	}
}
