package protocol

import "github.com/SFTtech/openage-lobbyserver/internal/model"

// Message tags as they appear in the wire discriminator field.
const (
	TagVersionMessage    = "VersionMessage"
	TagLogin             = "Login"
	TagAddPlayer         = "AddPlayer"
	TagGameQuery         = "GameQuery"
	TagGameInit          = "GameInit"
	TagGameJoin          = "GameJoin"
	TagGameLeave         = "GameLeave"
	TagGameInfo          = "GameInfo"
	TagGameClosedByHost  = "GameClosedByHost"
	TagGameConfig        = "GameConfig"
	TagPlayerConfig      = "PlayerConfig"
	TagGameStart         = "GameStart"
	TagGameStartedByHost = "GameStartedByHost"
	TagGameOver          = "GameOver"
	TagLogout            = "Logout"
	TagChatFromClient    = "ChatFromClient"
	TagChatFromThread    = "ChatFromThread"
	TagBroadcast         = "Broadcast"
	TagMessage           = "Message"
	TagError             = "Error"
	TagGameQueryAnswer   = "GameQueryAnswer"
	TagGameInfoAnswer    = "GameInfoAnswer"
	TagGameStartAnswer   = "GameStartAnswer"
	TagChatOut           = "ChatOut"
)

// Message is one wire-protocol message. Each line on the socket is exactly one
// JSON object carrying a "tag" discriminator plus the variant's payload
// fields. The set is closed: every variant lives in this package.
type Message interface {
	Tag() string
}

// VersionMessage opens the handshake. Valid only as the first message of a
// connection.
type VersionMessage struct {
	PeerProtocolVersion []int `json:"peerProtocolVersion"`
}

func (VersionMessage) Tag() string { return TagVersionMessage }

// Login authenticates against the credential store.
type Login struct {
	LoginName     string `json:"loginName"`
	LoginPassword string `json:"loginPassword"`
}

func (Login) Tag() string { return TagLogin }

// AddPlayer registers a new account.
type AddPlayer struct {
	Name string `json:"name"`
	Pw   string `json:"pw"`
}

func (AddPlayer) Tag() string { return TagAddPlayer }

// GameQuery requests the current lobby list.
type GameQuery struct{}

func (GameQuery) Tag() string { return TagGameQuery }

// GameInit creates a new lobby with the sender as host.
type GameInit struct {
	GameInitName string `json:"gameInitName"`
	GameMap      string `json:"gameMap"`
	GameMode     string `json:"gameMode"`
	NumPlayers   int    `json:"numPlayers"`
}

func (GameInit) Tag() string { return TagGameInit }

// GameJoin joins an existing lobby.
type GameJoin struct {
	GameID string `json:"gameId"`
}

func (GameJoin) Tag() string { return TagGameJoin }

// GameLeave leaves the current lobby. If the sender hosts it, the lobby
// closes for everyone.
type GameLeave struct{}

func (GameLeave) Tag() string { return TagGameLeave }

// GameInfo requests a snapshot of the sender's current lobby.
type GameInfo struct{}

func (GameInfo) Tag() string { return TagGameInfo }

// GameClosedByHost tells a lobby member that the host closed the lobby.
// Placed on member inboxes by the registry; also accepted from peers on the
// wire for symmetry with the original protocol.
type GameClosedByHost struct{}

func (GameClosedByHost) Tag() string { return TagGameClosedByHost }

// GameConfig updates lobby map, mode and capacity. Host only.
type GameConfig struct {
	GameConfMap       string `json:"gameConfMap"`
	GameConfMode      string `json:"gameConfMode"`
	GameConfPlayerNum int    `json:"gameConfPlayerNum"`
}

func (GameConfig) Tag() string { return TagGameConfig }

// PlayerConfig updates the sender's own slot.
type PlayerConfig struct {
	PlayerCiv   string `json:"playerCiv"`
	PlayerTeam  int    `json:"playerTeam"`
	PlayerReady bool   `json:"playerReady"`
}

func (PlayerConfig) Tag() string { return TagPlayerConfig }

// GameStart asks the server to start the sender's lobby. Host only; requires
// every slot ready.
type GameStart struct{}

func (GameStart) Tag() string { return TagGameStart }

// GameStartedByHost notifies a lobby member that the host started the game.
type GameStartedByHost struct{}

func (GameStartedByHost) Tag() string { return TagGameStartedByHost }

// GameOver ends a running game. Host only.
type GameOver struct{}

func (GameOver) Tag() string { return TagGameOver }

// Logout ends the session. Also placed on an incumbent's inbox when a second
// login displaces it.
type Logout struct{}

func (Logout) Tag() string { return TagLogout }

// ChatFromClient asks the server to broadcast a chat line to the sender's
// lobby.
type ChatFromClient struct {
	ChatFromCContent string `json:"chatFromCContent"`
}

func (ChatFromClient) Tag() string { return TagChatFromClient }

// ChatFromThread is a chat line relayed between sessions. The broadcaster
// places it on peer inboxes; the owning session turns it into a ChatOut on
// its own socket.
type ChatFromThread struct {
	ChatFromTOrign   string `json:"chatFromTOrign"`
	ChatFromTContent string `json:"chatFromTContent"`
}

func (ChatFromThread) Tag() string { return TagChatFromThread }

// Broadcast is a generic internal fan-out message delivered as plain text.
type Broadcast struct {
	Content string `json:"content"`
}

func (Broadcast) Tag() string { return TagBroadcast }

// ServerMessage is the generic acknowledgement, wire tag "Message".
type ServerMessage struct {
	Content string `json:"content"`
}

func (ServerMessage) Tag() string { return TagMessage }

// ServerError is the generic error reply, wire tag "Error".
type ServerError struct {
	Content string `json:"content"`
}

func (ServerError) Tag() string { return TagError }

// GameQueryAnswer carries the lobby list.
type GameQueryAnswer struct {
	Games []model.GameSummary `json:"games"`
}

func (GameQueryAnswer) Tag() string { return TagGameQueryAnswer }

// GameInfoAnswer carries a full lobby snapshot.
type GameInfoAnswer struct {
	Game GameView `json:"game"`
}

func (GameInfoAnswer) Tag() string { return TagGameInfoAnswer }

// GameView is the wire form of a lobby snapshot.
type GameView struct {
	Name       string              `json:"name"`
	Host       string              `json:"host"`
	Map        string              `json:"map"`
	Mode       string              `json:"mode"`
	MaxPlayers int                 `json:"maxPlayers"`
	Players    map[string]SlotView `json:"players"`
}

// SlotView is the wire form of one player slot.
type SlotView struct {
	Civ   string `json:"civ"`
	Team  int    `json:"team"`
	Ready bool   `json:"ready"`
}

// ViewOfGame converts a registry snapshot into its wire form.
func ViewOfGame(g *model.Game) GameView {
	players := make(map[string]SlotView, len(g.Players))
	for name, slot := range g.Players {
		players[name] = SlotView{Civ: slot.Civ, Team: slot.Team, Ready: slot.Ready}
	}
	return GameView{
		Name:       g.Name,
		Host:       g.Host,
		Map:        g.Map,
		Mode:       g.Mode,
		MaxPlayers: g.MaxPlayers,
		Players:    players,
	}
}

// GameStartAnswer maps each lobby member to its peer address so clients can
// establish direct connections.
type GameStartAnswer struct {
	HostMap map[string]string `json:"hostMap"`
}

func (GameStartAnswer) Tag() string { return TagGameStartAnswer }

// ChatOut is a chat line delivered to a client's socket.
type ChatOut struct {
	Origin  string `json:"origin"`
	Content string `json:"content"`
}

func (ChatOut) Tag() string { return TagChatOut }
