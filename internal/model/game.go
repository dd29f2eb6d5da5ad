package model

// PlayerSlot is one participant's lobby configuration inside a Game.
type PlayerSlot struct {
	Civ   string
	Team  int
	Ready bool
}

// Game is a named pre-match lobby with a host, a map/mode/capacity and a set
// of player slots keyed by username. Host is immutable for the lobby's
// lifetime. Field mutation goes through the registry only.
type Game struct {
	Name       string
	Host       string
	Map        string
	Mode       string
	MaxPlayers int
	Players    map[string]PlayerSlot
}

// NewGame creates a lobby with the host occupying the first slot.
func NewGame(name, host, gameMap, mode string, maxPlayers int) *Game {
	return &Game{
		Name:       name,
		Host:       host,
		Map:        gameMap,
		Mode:       mode,
		MaxPlayers: maxPlayers,
		Players:    map[string]PlayerSlot{host: {}},
	}
}

// Clone returns a deep copy safe to hand out after the registry lock is
// released.
func (g *Game) Clone() *Game {
	players := make(map[string]PlayerSlot, len(g.Players))
	for name, slot := range g.Players {
		players[name] = slot
	}
	return &Game{
		Name:       g.Name,
		Host:       g.Host,
		Map:        g.Map,
		Mode:       g.Mode,
		MaxPlayers: g.MaxPlayers,
		Players:    players,
	}
}

// Summary returns the lobby-browser view of the game.
func (g *Game) Summary() GameSummary {
	return GameSummary{
		Name:       g.Name,
		Host:       g.Host,
		Map:        g.Map,
		Mode:       g.Mode,
		NumPlayers: len(g.Players),
		MaxPlayers: g.MaxPlayers,
	}
}

// GameSummary is the per-lobby entry of a GameQueryAnswer.
type GameSummary struct {
	Name       string `json:"name"`
	Host       string `json:"host"`
	Map        string `json:"map"`
	Mode       string `json:"mode"`
	NumPlayers int    `json:"numPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}
