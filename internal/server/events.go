package server

import (
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

// Connected is the first event a user sees after login: everything needed
// for the initial server status.
type Connected struct {
	UserID uint16
	Users  []UserInfo
	Games  []game.Snapshot
}

type UserJoined struct {
	UserID         uint16
	Name           string
	PingMS         int64
	ConnectionType v086.ConnectionType
}

type UserQuit struct {
	UserID  uint16
	Name    string
	Message string
}

type Chat struct {
	UserID  uint16
	Name    string
	Message string
}

type InfoMessage struct {
	Source  string
	Message string
}

// Announcement is an operator message to every user.
type Announcement struct {
	Message string
}

type GameCreated struct {
	GameID     uint16
	RomName    string
	ClientType string
	OwnerName  string
}

type GameClosed struct {
	GameID uint16
}

// ForcedQuit asks a session to quit its user and stop.
type ForcedQuit struct {
	Message string
}

func (Connected) EventName() string    { return "connected" }
func (UserJoined) EventName() string   { return "user_joined" }
func (UserQuit) EventName() string     { return "user_quit" }
func (Chat) EventName() string         { return "chat" }
func (InfoMessage) EventName() string  { return "info_message" }
func (Announcement) EventName() string { return "announcement" }
func (GameCreated) EventName() string  { return "game_created" }
func (GameClosed) EventName() string   { return "game_closed" }
func (ForcedQuit) EventName() string   { return "forced_quit" }
