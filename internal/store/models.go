package store

import (
	"encoding/json"
	"time"
)

const (
	RuleUser         = "user"
	RuleSilence      = "silence"
	RuleEmulator     = "emulator"
	RuleGame         = "game"
	RuleAnnouncement = "announcement"
)

// AccessRule matches Pattern against an address (user, silence, announcement),
// an emulator name, or a ROM name depending on Kind. Patterns may use '*'.
type AccessRule struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Pattern     string     `json:"pattern"`
	AccessLevel int        `json:"access_level"`
	Allow       bool       `json:"allow"`
	Message     string     `json:"message,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GameRecord is written once per started game.
type GameRecord struct {
	ID                string          `json:"id"`
	GameID            int             `json:"game_id"`
	RomName           string          `json:"rom_name"`
	ClientType        string          `json:"client_type"`
	OwnerName         string          `json:"owner_name"`
	NumPlayers        int             `json:"num_players"`
	HighestFrameDelay int             `json:"highest_frame_delay"`
	Players           json.RawMessage `json:"players"`
	StartedAt         time.Time       `json:"started_at"`
}
