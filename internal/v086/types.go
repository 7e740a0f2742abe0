package v086

import "fmt"

// ConnectionType is the client's declared link quality. Its byte value is the
// number of game ticks carried by one GameData message.
type ConnectionType uint8

const (
	ConnectionDisabled  ConnectionType = 0
	ConnectionLAN       ConnectionType = 1
	ConnectionExcellent ConnectionType = 2
	ConnectionGood      ConnectionType = 3
	ConnectionAverage   ConnectionType = 4
	ConnectionLow       ConnectionType = 5
	ConnectionBad       ConnectionType = 6
)

var connectionTypeNames = [...]string{"Disabled", "LAN", "Excellent", "Good", "Average", "Low", "Bad"}

func ParseConnectionType(b uint8) (ConnectionType, error) {
	if int(b) >= len(connectionTypeNames) {
		return 0, formatErr("connection type = %d", b)
	}
	return ConnectionType(b), nil
}

func (c ConnectionType) String() string {
	if int(c) < len(connectionTypeNames) {
		return connectionTypeNames[c]
	}
	return fmt.Sprintf("ConnectionType(%d)", uint8(c))
}

// ActionsPerMessage is the number of game ticks packed into one message.
func (c ConnectionType) ActionsPerMessage() int { return int(c) }

// UpdatesPerSecond is 60 divided by the actions per message; 0 for Disabled.
func (c ConnectionType) UpdatesPerSecond() int {
	if c == ConnectionDisabled {
		return 0
	}
	return 60 / int(c)
}

type UserStatus uint8

const (
	UserPlaying    UserStatus = 0
	UserIdle       UserStatus = 1
	UserConnecting UserStatus = 2
)

func (s UserStatus) String() string {
	switch s {
	case UserPlaying:
		return "Playing"
	case UserIdle:
		return "Idle"
	case UserConnecting:
		return "Connecting"
	}
	return fmt.Sprintf("UserStatus(%d)", uint8(s))
}

type GameStatus uint8

const (
	GameWaiting       GameStatus = 0
	GameSynchronizing GameStatus = 1
	GamePlaying       GameStatus = 2
)

func (s GameStatus) String() string {
	switch s {
	case GameWaiting:
		return "Waiting"
	case GameSynchronizing:
		return "Synchronizing"
	case GamePlaying:
		return "Playing"
	}
	return fmt.Sprintf("GameStatus(%d)", uint8(s))
}
