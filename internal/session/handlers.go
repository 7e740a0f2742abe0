package session

import (
	"context"
	"errors"
	"time"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

const (
	serverName     = "server"
	errorName      = "Error"
	gameDataFailed = "Game Data Error!  Game state will be inconsistent!"
)

func (s *Session) handle(ctx context.Context, m v086.Message) {
	if !s.user.LoggedIn() {
		s.handleLogin(m)
		return
	}
	switch m := m.(type) {
	case v086.GameData:
		s.clientCache.Add(m.Data)
		s.submit(ctx, m.Data)
	case v086.CachedGameData:
		data, ok := s.clientCache.Get(int(m.Key))
		if !ok {
			s.log.Warn().Uint8("key", m.Key).Msg("cached game data miss")
			s.send(v086.GameChatNotification{Username: errorName, Message: gameDataFailed})
			return
		}
		s.submit(ctx, data)
	case v086.KeepAlive:
		s.srv.KeepAlive(s.user)
	case v086.ClientAck:
	case v086.ChatRequest:
		if err := s.srv.Chat(s.user, m.Message); err != nil {
			s.send(v086.InformationMessage{Source: serverName, Message: server.Reason(err)})
		}
	case v086.GameChatRequest:
		if err := s.srv.GameChat(s.user, m.Message); err != nil {
			s.send(v086.GameChatNotification{Username: errorName, Message: server.Reason(err)})
		}
	case v086.CreateGameRequest:
		if _, err := s.srv.CreateGame(s.user, m.RomName); err != nil {
			s.rejectGame(err)
		}
	case v086.JoinGameRequest:
		if err := s.srv.JoinGame(s.user, m.GameID); err != nil {
			s.rejectGame(err)
		}
	case v086.QuitGameRequest:
		if err := s.srv.QuitGame(s.user); err != nil {
			s.log.Debug().Err(err).Msg("quit game")
		}
	case v086.StartGameRequest:
		if err := s.srv.StartGame(s.user); err != nil {
			s.send(v086.GameChatNotification{Username: errorName, Message: server.Reason(err)})
		}
	case v086.AllReady:
		s.clientCache.Clear()
		s.serverCache.Clear()
		if err := s.srv.Ready(s.user); err != nil {
			s.log.Debug().Err(err).Msg("ready")
		}
	case v086.PlayerDropRequest:
		if err := s.srv.Drop(s.user); err != nil {
			s.log.Debug().Err(err).Msg("drop")
		}
	case v086.GameKick:
		if err := s.srv.Kick(s.user, m.UserID); err != nil {
			s.send(v086.GameChatNotification{Username: errorName, Message: server.Reason(err)})
		}
	case v086.QuitRequest:
		if err := s.srv.Quit(s.user, m.Message); err != nil {
			s.stop("")
		}
	default:
		s.log.Debug().Uint8("type", m.TypeID()).Msg("unexpected message")
	}
}

// handleLogin runs the user information and ack exchange that measures the
// client's ping before login.
func (s *Session) handleLogin(m v086.Message) {
	switch m := m.(type) {
	case v086.UserInformation:
		s.user.SetInformation(m.Username, m.ClientType, m.ConnectionType)
		now := s.now()
		s.speedStart, s.speedLast, s.speedCount = now, now, 0
		s.send(v086.ServerAck{})
	case v086.ClientAck:
		if s.speedStart.IsZero() {
			return
		}
		s.speedCount++
		s.speedLast = s.now()
		if s.speedCount <= numAcksForSpeedTest {
			s.send(v086.ServerAck{})
			return
		}
		s.user.SetPing(s.speedLast.Sub(s.speedStart) / time.Duration(s.speedCount))
		if err := s.srv.Login(s.user); err != nil {
			s.log.Info().Err(err).Msg("login rejected")
			s.send(v086.ConnectionRejected{Username: serverName, UserID: s.user.ID, Message: server.Reason(err)})
			s.stop("Login failed")
		}
	case v086.QuitRequest:
		s.stop("Quit before login")
	default:
		s.log.Debug().Uint8("type", m.TypeID()).Msg("message before login")
	}
}

func (s *Session) rejectGame(err error) {
	s.send(
		v086.InformationMessage{Source: serverName, Message: server.Reason(err)},
		v086.QuitGameNotification{Username: s.user.Name(), UserID: s.user.ID},
	)
}

func (s *Session) submit(ctx context.Context, data []byte) {
	err := s.srv.SubmitInput(ctx, s.user, data)
	if err == nil {
		return
	}
	var de *game.GameDataError
	if !errors.As(err, &de) {
		s.log.Debug().Err(err).Msg("game data")
		return
	}
	if de.Response != nil {
		s.sendGameData(de.Response)
		return
	}
	if err := s.srv.Drop(s.user); err != nil {
		s.log.Debug().Err(err).Msg("drop after game data errors")
	}
}

// sendGameData sends data, or its cache key when the client already has it.
func (s *Session) sendGameData(data []byte) {
	if key := s.serverCache.IndexOf(data); key >= 0 {
		s.send(v086.CachedGameData{Key: uint8(key)})
		return
	}
	s.serverCache.Add(data)
	s.send(v086.GameData{Data: data})
}
