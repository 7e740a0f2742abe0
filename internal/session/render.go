package session

import (
	"fmt"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

// statusChunkBytes bounds the entries carried by one ServerStatus message.
const statusChunkBytes = 300

// render turns one event into protocol messages for this client.
func (s *Session) render(ev game.Event) {
	switch e := ev.(type) {
	case server.Connected:
		s.renderConnected(e)
	case server.UserJoined:
		s.send(v086.UserJoined{Username: e.Name, UserID: e.UserID, Ping: uint32(e.PingMS), ConnectionType: e.ConnectionType})
	case server.UserQuit:
		s.send(v086.QuitNotification{Username: e.Name, UserID: e.UserID, Message: e.Message})
		if e.UserID == s.user.ID {
			s.stop(e.Message)
		}
	case server.Chat:
		s.send(v086.ChatNotification{Username: e.Name, Message: e.Message})
	case server.InfoMessage:
		s.send(v086.InformationMessage{Source: e.Source, Message: e.Message})
	case server.Announcement:
		s.send(v086.InformationMessage{Source: serverName, Message: e.Message})
	case server.GameCreated:
		s.send(v086.CreateGameNotification{Username: e.OwnerName, RomName: e.RomName, ClientType: e.ClientType, GameID: e.GameID})
	case server.GameClosed:
		s.send(v086.CloseGame{GameID: e.GameID})
	case server.ForcedQuit:
		if !s.user.LoggedIn() {
			s.stop(e.Message)
			return
		}
		if err := s.srv.Quit(s.user, e.Message); err != nil {
			s.stop(e.Message)
		}

	case game.GameStatusChanged:
		g := e.Game
		s.send(v086.GameStatusUpdate{
			GameID:     g.ID,
			Status:     g.Status,
			NumPlayers: uint8(g.NumPlayers),
			MaxPlayers: uint8(g.MaxUsers),
		})
	case game.PlayerJoined:
		if e.Player.UserID == s.user.ID {
			players := make([]v086.PlayerInfo, 0, len(e.Others))
			for _, p := range e.Others {
				players = append(players, playerInfo(p))
			}
			s.send(v086.PlayerInformation{Players: players})
		}
		if !e.Player.Stealth {
			p := e.Player
			s.send(v086.JoinGameNotification{
				GameID:         e.GameID,
				Username:       p.Name,
				Ping:           uint32(p.PingMS),
				UserID:         p.UserID,
				ConnectionType: p.ConnectionType,
			})
		}
	case game.PlayerQuit:
		s.send(v086.QuitGameNotification{Username: e.Name, UserID: e.UserID})
	case game.GameStarted:
		s.clientCache.Clear()
		s.serverCache.Clear()
		s.send(v086.StartGameNotification{
			Val1:         uint16(e.Delay),
			PlayerNumber: uint8(e.PlayerNumber),
			NumPlayers:   uint8(e.NumPlayers),
		})
	case game.AllReady:
		s.send(v086.AllReady{})
	case game.GameData:
		s.sendGameData(e.Data)
	case game.PlayerDropped:
		s.send(v086.PlayerDropNotification{Username: e.Name, PlayerNumber: uint8(e.PlayerNumber)})
	case game.PlayerDesynced:
		s.send(v086.GameChatNotification{Username: "Desync Detected", Message: e.Message})
	case game.GameTimeout:
		if e.UserID == s.user.ID {
			s.log.Debug().Int("timeout", e.Number).Msg("resending after game timeout")
			s.resend(e.Number)
		}
	case game.GameInfo:
		s.send(v086.GameChatNotification{Username: "Server", Message: e.Message})
	case game.GameChat:
		s.send(v086.GameChatNotification{Username: e.Name, Message: e.Message})
	default:
		s.log.Debug().Str("event", ev.EventName()).Msg("event not rendered")
	}
}

func playerInfo(p game.PlayerInfo) v086.PlayerInfo {
	return v086.PlayerInfo{
		Username:       p.Name,
		Ping:           uint32(p.PingMS),
		UserID:         p.UserID,
		ConnectionType: p.ConnectionType,
	}
}

func (s *Session) renderConnected(e server.Connected) {
	var users []v086.ServerStatusUser
	for _, u := range e.Users {
		if u.ID == e.UserID || u.Status == v086.UserConnecting {
			continue
		}
		users = append(users, v086.ServerStatusUser{
			Username:       u.Name,
			Ping:           uint32(u.PingMS),
			Status:         u.Status,
			UserID:         u.ID,
			ConnectionType: u.ConnectionType,
		})
	}
	games := make([]v086.ServerStatusGame, 0, len(e.Games))
	for _, g := range e.Games {
		games = append(games, statusGame(g))
	}
	for _, m := range statusChunks(users, games, s.cs) {
		s.send(m)
	}
}

func statusGame(g game.Snapshot) v086.ServerStatusGame {
	visible := g.NumPlayers
	for _, p := range g.Players {
		if p.Stealth {
			visible--
		}
	}
	return v086.ServerStatusGame{
		RomName:    g.RomName,
		GameID:     uint32(g.ID),
		ClientType: g.ClientType,
		Owner:      g.OwnerName,
		Players:    fmt.Sprintf("%d/%d", visible, g.MaxUsers),
		Status:     g.Status,
	}
}

// statusChunks splits the server status so no message grows much past
// statusChunkBytes. At least one message is returned.
func statusChunks(users []v086.ServerStatusUser, games []v086.ServerStatusGame, cs v086.Charset) []v086.ServerStatus {
	// An empty ServerStatus body is a zero byte plus two u32 counts.
	const emptyBody = 9
	var (
		out     []v086.ServerStatus
		cur     v086.ServerStatus
		counter int
	)
	flush := func() {
		out = append(out, cur)
		cur = v086.ServerStatus{}
		counter = 0
	}
	for _, u := range users {
		size := v086.BodySize(v086.ServerStatus{Users: []v086.ServerStatusUser{u}}, cs) - emptyBody
		if counter > 0 && counter+size >= statusChunkBytes {
			flush()
		}
		cur.Users = append(cur.Users, u)
		counter += size
	}
	for _, g := range games {
		size := v086.BodySize(v086.ServerStatus{Games: []v086.ServerStatusGame{g}}, cs) - emptyBody
		if counter > 0 && counter+size >= statusChunkBytes {
			flush()
		}
		cur.Games = append(cur.Games, g)
		counter += size
	}
	if len(cur.Users) > 0 || len(cur.Games) > 0 || len(out) == 0 {
		flush()
	}
	return out
}
