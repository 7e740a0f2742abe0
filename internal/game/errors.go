package game

import "errors"

var (
	ErrAlreadyInGame          = errors.New("already_in_game")
	ErrGameInProgress         = errors.New("game_in_progress")
	ErrCapacityReached        = errors.New("capacity_reached")
	ErrPingTooHigh            = errors.New("ping_too_high")
	ErrPreviouslyKicked       = errors.New("previously_kicked")
	ErrConnectionTypeMismatch = errors.New("connection_type_mismatch")
	ErrEmulatorMismatch       = errors.New("emulator_mismatch")
	ErrNotGameOwner           = errors.New("not_game_owner")
	ErrNotInGame              = errors.New("not_in_game")
	ErrSpamProtection         = errors.New("spam_protection")
	ErrInvalidState           = errors.New("invalid_game_state")
	ErrSinglePlayerNotAllowed = errors.New("single_player_not_allowed")
	ErrCannotKickSelf         = errors.New("cannot_kick_self")
)

// ActionError is a rejected game operation. Reason is shown to the player.
type ActionError struct {
	Kind   error
	Reason string
}

func (e *ActionError) Error() string { return e.Reason }

func (e *ActionError) Unwrap() error { return e.Kind }

func actionErr(kind error, reason string) error {
	return &ActionError{Kind: kind, Reason: reason}
}

// GameDataError rejects one input submission. When Response is non-nil the
// session reflects it to the player so the emulator keeps running; a nil
// Response means the grace period is over and the player should be dropped.
type GameDataError struct {
	Reason   string
	Response []byte
}

func (e *GameDataError) Error() string { return e.Reason }

// reflectInput builds a tick where only the submitting player's slot holds
// their own first action and every other slot is zero.
func reflectInput(data []byte, actionsPerMessage, playerNumber, numPlayers int) []byte {
	if actionsPerMessage <= 0 || playerNumber < 1 || playerNumber > numPlayers {
		return nil
	}
	bpa := len(data) / actionsPerMessage
	resp := make([]byte, numPlayers*actionsPerMessage*bpa)
	for ac := 0; ac < actionsPerMessage; ac++ {
		off := ac*(numPlayers*bpa) + (playerNumber-1)*bpa
		copy(resp[off:off+bpa], data[:bpa])
	}
	return resp
}
