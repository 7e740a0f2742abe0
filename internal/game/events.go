package game

// Event is something a session renders into protocol messages, or the admin
// feed mirrors.
type Event interface {
	EventName() string
}

type GameStatusChanged struct {
	Game Snapshot
}

type PlayerJoined struct {
	GameID uint16
	Player PlayerInfo
	// Others lists the non-stealth players already in the game.
	Others []PlayerInfo
}

type GameStarted struct {
	GameID       uint16
	PlayerNumber int
	NumPlayers   int
	// Delay is the frame delay the client should run with.
	Delay int
}

type AllReady struct {
	GameID uint16
}

type GameData struct {
	GameID uint16
	Data   []byte
}

type PlayerDropped struct {
	GameID       uint16
	UserID       uint16
	Name         string
	PlayerNumber int
}

type PlayerQuit struct {
	GameID uint16
	UserID uint16
	Name   string
}

type PlayerDesynced struct {
	GameID  uint16
	UserID  uint16
	Name    string
	Message string
}

// GameTimeout reports that the game has been waiting on UserID's input.
type GameTimeout struct {
	GameID uint16
	UserID uint16
	Name   string
	Number int
}

type GameInfo struct {
	GameID  uint16
	Message string
}

type GameChat struct {
	GameID  uint16
	UserID  uint16
	Name    string
	Message string
}

func (GameStatusChanged) EventName() string { return "game_status_changed" }
func (PlayerJoined) EventName() string      { return "player_joined" }
func (GameStarted) EventName() string       { return "game_started" }
func (AllReady) EventName() string          { return "all_ready" }
func (GameData) EventName() string          { return "game_data" }
func (PlayerDropped) EventName() string     { return "player_dropped" }
func (PlayerQuit) EventName() string        { return "player_quit" }
func (PlayerDesynced) EventName() string    { return "player_desynced" }
func (GameTimeout) EventName() string       { return "game_timeout" }
func (GameInfo) EventName() string          { return "game_info" }
func (GameChat) EventName() string          { return "game_chat" }
