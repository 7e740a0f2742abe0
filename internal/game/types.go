package game

import (
	"time"

	"kaillera-relay/internal/v086"
)

// FPS is the frame rate every Kaillera game is assumed to run at.
const FPS = 60

type AccessLevel int

const (
	AccessBanned AccessLevel = iota
	AccessNormal
	AccessElevated
	AccessModerator
	AccessAdmin
	AccessSuperAdmin
)

func (a AccessLevel) String() string {
	switch a {
	case AccessBanned:
		return "banned"
	case AccessNormal:
		return "normal"
	case AccessElevated:
		return "elevated"
	case AccessModerator:
		return "moderator"
	case AccessAdmin:
		return "admin"
	case AccessSuperAdmin:
		return "superadmin"
	}
	return "unknown"
}

// Player is a user's membership in one game. The server copies the user's
// identity in on join; everything else is owned by the game and guarded by
// its lock.
type Player struct {
	UserID         uint16
	Name           string
	ClientType     string
	ConnectionType v086.ConnectionType
	Ping           time.Duration
	Address        string
	Access         AccessLevel
	Stealth        bool

	Number     int
	FrameDelay int
	TempDelay  int
	Status     v086.UserStatus

	// queue indexes the player's ActionQueue. It is -1 for players who
	// joined after the game started.
	queue          int
	muted          bool
	frameCount     int
	totalDelay     int
	lostInput      [][]byte
	bytesPerAction int
	arraySize      int
	dataErrorAt    time.Time
	lastInputAt    time.Time
	lag            *LagMeter
}

// PlayerInfo is a read-only copy of a player handed to events and the admin API.
type PlayerInfo struct {
	UserID         uint16              `json:"user_id"`
	Name           string              `json:"name"`
	ClientType     string              `json:"client_type"`
	ConnectionType v086.ConnectionType `json:"connection_type"`
	PingMS         int64               `json:"ping_ms"`
	Number         int                 `json:"player_number"`
	FrameDelay     int                 `json:"frame_delay"`
	Stealth        bool                `json:"stealth,omitempty"`
	Status         v086.UserStatus     `json:"status"`
	LagMS          float64             `json:"lag_ms"`
}

func (p *Player) info() PlayerInfo {
	pi := PlayerInfo{
		UserID:         p.UserID,
		Name:           p.Name,
		ClientType:     p.ClientType,
		ConnectionType: p.ConnectionType,
		PingMS:         p.Ping.Milliseconds(),
		Number:         p.Number,
		FrameDelay:     p.FrameDelay,
		Stealth:        p.Stealth,
		Status:         p.Status,
	}
	if p.lag != nil {
		pi.LagMS = float64(p.lag.Lag()) / float64(time.Millisecond)
	}
	return pi
}

// Settings are the owner/admin adjustable knobs of one game.
type Settings struct {
	MaxUsers               int    `json:"max_users"`
	MaxPing                int    `json:"max_ping"`
	StartN                 int    `json:"start_n"`
	SameDelay              bool   `json:"same_delay"`
	AllowedEmulator        string `json:"allowed_emulator"`
	RestrictConnectionType bool   `json:"restrict_connection_type"`
	Record                 bool   `json:"record"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxUsers:        8,
		MaxPing:         1000,
		StartN:          -1,
		AllowedEmulator: "any",
	}
}

// Snapshot describes a game for status broadcasts and the admin API.
type Snapshot struct {
	ID         uint16          `json:"id"`
	RomName    string          `json:"rom_name"`
	ClientType string          `json:"client_type"`
	OwnerID    uint16          `json:"owner_id"`
	OwnerName  string          `json:"owner_name"`
	Status     v086.GameStatus `json:"status"`
	NumPlayers int             `json:"num_players"`
	MaxUsers   int             `json:"max_users"`
	Synced     bool            `json:"synced"`
	FrameDelay int             `json:"highest_frame_delay"`
	LagMS      float64         `json:"lag_ms"`
	Players    []PlayerInfo    `json:"players,omitempty"`
	Settings   Settings        `json:"settings"`
}

// Hub routes game events to player sessions.
type Hub interface {
	Deliver(userID uint16, ev Event)
	Broadcast(ev Event)
}

type AutoFireDetector interface {
	Start(numPlayers int)
	AddPlayer(userID uint16, playerNumber int)
	AddData(playerNumber int, data []byte, bytesPerAction int)
	Stop(playerNumber int)
	StopAll()
}

type StatsCollector interface {
	MarkGameAsStarted(s Snapshot)
}

// Recorder receives the timeline of one game for offline analysis.
type Recorder interface {
	Start(at time.Time, players []PlayerInfo)
	Received(at time.Time, playerNumber int)
	FanOut(at time.Time)
	Lagstat(at time.Time, window time.Duration, gameLag time.Duration, players []PlayerInfo)
	Close() error
}

type noopAutoFire struct{}

func (noopAutoFire) Start(int)                {}
func (noopAutoFire) AddPlayer(uint16, int)    {}
func (noopAutoFire) AddData(int, []byte, int) {}
func (noopAutoFire) Stop(int)                 {}
func (noopAutoFire) StopAll()                 {}

type noopStats struct{}

func (noopStats) MarkGameAsStarted(Snapshot) {}
