package server

import (
	"errors"

	"kaillera-relay/internal/game"
)

var (
	ErrServerFull       = errors.New("server_full")
	ErrLoginDenied      = errors.New("login_denied")
	ErrPingTooHigh      = errors.New("ping_too_high")
	ErrUserName         = errors.New("invalid_user_name")
	ErrAddressConflict  = errors.New("address_conflict")
	ErrNotLoggedIn      = errors.New("not_logged_in")
	ErrUnknownUser      = errors.New("unknown_user")
	ErrChatDenied       = errors.New("chat_denied")
	ErrSilenced         = errors.New("silenced")
	ErrFlood            = errors.New("flood")
	ErrCreateGameDenied = errors.New("create_game_denied")
	ErrGameNotFound     = errors.New("game_not_found")
	ErrNotInGame        = errors.New("not_in_game")
)

// fail builds the error handed back to sessions. Reason is what the client
// is shown.
func fail(kind error, reason string) error {
	return &game.ActionError{Kind: kind, Reason: reason}
}

// Reason returns the text a client should see for err.
func Reason(err error) string {
	var ae *game.ActionError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return err.Error()
}
