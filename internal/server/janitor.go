package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/game"
)

// StartJanitor sweeps users on every tick until ctx is done. A zero interval
// uses three times the maximum ping.
func (s *Server) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * s.cfg.MaxPing()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(s.now())
			}
		}
	}()
}

// sweep refreshes access levels and forces out users that timed out, were
// banned, or run a restricted emulator.
func (s *Server) sweep(now time.Time) {
	connectTimeout := 15 * s.cfg.MaxPing()
	s.users.Range(func(_, v any) bool {
		u := v.(*User)
		access := s.access.Access(u.Addr.Addr())
		u.mu.Lock()
		loggedIn := u.loggedIn
		if loggedIn {
			u.access = access
		}
		lastKeepAlive, lastActivity, clientType := u.lastKeepAlive, u.lastActivity, u.clientType
		u.mu.Unlock()

		switch {
		case !loggedIn:
			if connectTimeout > 0 && now.Sub(u.ConnectedAt) > connectTimeout {
				log.Info().Uint16("user_id", u.ID).Str("remote_addr", u.Addr.String()).Msg("connection timed out before login")
				s.forceQuit(u, "Connection timed out")
			}
		case s.cfg.KeepAliveTimeout > 0 && now.Sub(lastKeepAlive) > s.cfg.KeepAliveTimeout:
			log.Info().Uint16("user_id", u.ID).Msg("keepalive timeout")
			s.forceQuit(u, "Forced quit: ping timeout")
		case s.cfg.IdleTimeout > 0 && access == game.AccessNormal && now.Sub(lastActivity) > s.cfg.IdleTimeout:
			log.Info().Uint16("user_id", u.ID).Msg("inactivity timeout")
			s.forceQuit(u, "Forced quit: inactivity timeout")
		case access < game.AccessNormal:
			log.Info().Uint16("user_id", u.ID).Msg("user banned")
			s.forceQuit(u, "Forced quit: banned")
		case access == game.AccessNormal && !s.access.IsEmulatorAllowed(clientType):
			log.Info().Uint16("user_id", u.ID).Str("client_type", clientType).Msg("emulator restricted")
			s.forceQuit(u, "Forced quit: emulator restricted")
		}
		return true
	})
}

// forceQuit hands the quit to the user's session so it runs on the session's
// goroutine. Without a session, or when its queue is full, the server quits
// the user itself.
func (s *Server) forceQuit(u *User, message string) {
	if v, ok := s.sinks.Load(u.ID); ok && v.(Sink).PostEvent(ForcedQuit{Message: message}) {
		return
	}
	if u.LoggedIn() {
		if err := s.Quit(u, message); err != nil {
			log.Warn().Err(err).Uint16("user_id", u.ID).Msg("forced quit failed")
		}
		return
	}
	s.Remove(u.ID)
}

// Disconnect removes a user on an operator's request.
func (s *Server) Disconnect(userID uint16, message string) error {
	u, ok := s.User(userID)
	if !ok {
		return ErrUnknownUser
	}
	log.Info().Uint16("user_id", userID).Str("message", message).Msg("user disconnected by operator")
	s.forceQuit(u, message)
	return nil
}

// Shutdown asks every session to quit its user.
func (s *Server) Shutdown(message string) {
	s.users.Range(func(_, v any) bool {
		s.forceQuit(v.(*User), message)
		return true
	})
}
