package server

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

// User is one connected client. Identity fields are fixed at connect; the
// rest is guarded by mu since the janitor, the admin API and the session all
// read it.
type User struct {
	ID          uint16
	ConnID      uuid.UUID
	Addr        netip.AddrPort
	Protocol    string
	ConnectedAt time.Time

	mu             sync.Mutex
	name           string
	clientType     string
	connType       v086.ConnectionType
	ping           time.Duration
	access         game.AccessLevel
	status         v086.UserStatus
	gameID         uint16
	loggedIn       bool
	stealth        bool
	lastKeepAlive  time.Time
	lastActivity   time.Time
	lastChat       time.Time
	lastCreateGame time.Time
}

// UserInfo is a read-only copy of a user for events and the admin API.
type UserInfo struct {
	ID             uint16              `json:"id"`
	ConnID         string              `json:"conn_id"`
	Name           string              `json:"name"`
	ClientType     string              `json:"client_type"`
	ConnectionType v086.ConnectionType `json:"connection_type"`
	PingMS         int64               `json:"ping_ms"`
	Access         string              `json:"access"`
	Status         v086.UserStatus     `json:"status"`
	GameID         uint16              `json:"game_id,omitempty"`
	Address        string              `json:"address"`
	LoggedIn       bool                `json:"logged_in"`
	ConnectedAt    time.Time           `json:"connected_at"`
}

func (u *User) String() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fmt.Sprintf("User[id=%d name=%s]", u.ID, u.name)
}

// SetInformation records what the client sent in its UserInformation message.
func (u *User) SetInformation(name, clientType string, ct v086.ConnectionType) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.name = name
	u.clientType = clientType
	u.connType = ct
}

func (u *User) SetPing(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ping = d
}

// KeepAlive refreshes the liveness clock without counting as activity.
func (u *User) KeepAlive(now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastKeepAlive = now
}

func (u *User) touch(now time.Time) {
	u.lastKeepAlive = now
	u.lastActivity = now
}

func (u *User) Name() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name
}

func (u *User) ConnectionType() v086.ConnectionType {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.connType
}

func (u *User) Ping() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ping
}

func (u *User) Access() game.AccessLevel {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.access
}

func (u *User) GameID() uint16 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gameID
}

func (u *User) LoggedIn() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.loggedIn
}

func (u *User) setGame(id uint16) {
	u.mu.Lock()
	u.gameID = id
	u.mu.Unlock()
}

func (u *User) Info() UserInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UserInfo{
		ID:             u.ID,
		ConnID:         u.ConnID.String(),
		Name:           u.name,
		ClientType:     u.clientType,
		ConnectionType: u.connType,
		PingMS:         u.ping.Milliseconds(),
		Access:         u.access.String(),
		Status:         u.status,
		GameID:         u.gameID,
		Address:        u.Addr.String(),
		LoggedIn:       u.loggedIn,
		ConnectedAt:    u.ConnectedAt,
	}
}

// player copies the user's identity into a new game-local record.
func (u *User) player() *game.Player {
	u.mu.Lock()
	defer u.mu.Unlock()
	return &game.Player{
		UserID:         u.ID,
		Name:           u.name,
		ClientType:     u.clientType,
		ConnectionType: u.connType,
		Ping:           u.ping,
		Address:        u.Addr.Addr().String(),
		Access:         u.access,
		Stealth:        u.stealth,
	}
}
