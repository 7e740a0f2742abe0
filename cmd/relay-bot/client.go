package main

import (
	"errors"
	"math/rand"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/v086"
)

// clientBundle is how many recent messages ride along with each datagram.
const clientBundle = 5

var errRejected = errors.New("login rejected")
var errKicked = errors.New("quit by server")

// client plays one user on the relay: it answers the login speed test,
// says hello, opens or joins a game and echoes random input once it starts.
type client struct {
	cfg   config.BotConfig
	cs    v086.Charset
	write func([]byte) error
	rnd   *rand.Rand

	next     uint16
	recent   []v086.Frame
	lastSeen int

	userID       uint16
	loggedIn     bool
	playerNumber uint8
}

func newClient(cfg config.BotConfig, cs v086.Charset, write func([]byte) error, rnd *rand.Rand) *client {
	return &client{cfg: cfg, cs: cs, write: write, rnd: rnd, lastSeen: -1}
}

func (c *client) send(m v086.Message) error {
	f := v086.Frame{Number: c.next, Message: m}
	c.next++
	c.recent = append([]v086.Frame{f}, c.recent...)
	if len(c.recent) > clientBundle {
		c.recent = c.recent[:clientBundle]
	}
	return c.write(v086.EncodeBundle(c.recent, c.cs))
}

func (c *client) login() error {
	return c.send(v086.UserInformation{
		Username:       c.cfg.Name,
		ClientType:     c.cfg.ClientType,
		ConnectionType: v086.ConnectionType(c.cfg.ConnectionType),
	})
}

// receive handles the unseen frames of one datagram, oldest first.
func (c *client) receive(b []byte) error {
	frames, err := v086.DecodeBundle(b, c.lastSeen, c.cs)
	if err != nil {
		if v086.IsFatal(err) {
			return err
		}
		log.Debug().Err(err).Msg("datagram skipped")
		return nil
	}
	for i := len(frames) - 1; i >= 0; i-- {
		c.lastSeen = int(frames[i].Number)
		if err := c.handle(frames[i].Message); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) handle(m v086.Message) error {
	switch m := m.(type) {
	case v086.ServerAck:
		return c.send(v086.ClientAck{})
	case v086.ServerStatus:
		log.Info().Int("users", len(m.Users)).Int("games", len(m.Games)).Msg("server status")
	case v086.UserJoined:
		if c.loggedIn || m.Username != c.cfg.Name {
			return nil
		}
		c.loggedIn = true
		c.userID = m.UserID
		log.Info().Uint16("user_id", m.UserID).Uint32("ping", m.Ping).Msg("logged in")
		if c.cfg.Greeting != "" {
			if err := c.send(v086.ChatRequest{Message: c.cfg.Greeting}); err != nil {
				return err
			}
		}
		switch {
		case c.cfg.RomName != "":
			return c.send(v086.CreateGameRequest{RomName: c.cfg.RomName})
		case c.cfg.JoinGameID != 0:
			return c.send(v086.JoinGameRequest{GameID: c.cfg.JoinGameID, ConnectionType: v086.ConnectionType(c.cfg.ConnectionType)})
		}
	case v086.ConnectionRejected:
		log.Warn().Str("reason", m.Message).Msg("connection rejected")
		return errRejected
	case v086.ChatNotification:
		log.Info().Str("from", m.Username).Str("message", m.Message).Msg("chat")
	case v086.InformationMessage:
		log.Info().Str("source", m.Source).Str("message", m.Message).Msg("info")
	case v086.GameChatNotification:
		log.Info().Str("from", m.Username).Str("message", m.Message).Msg("game chat")
	case v086.CreateGameNotification:
		log.Debug().Uint16("game_id", m.GameID).Str("rom", m.RomName).Msg("game created")
	case v086.StartGameNotification:
		c.playerNumber = m.PlayerNumber
		log.Info().Uint8("player", m.PlayerNumber).Uint8("players", m.NumPlayers).Uint16("delay", m.Val1).Msg("game started")
		return c.send(v086.AllReady{})
	case v086.AllReady, v086.GameData, v086.CachedGameData:
		return c.send(v086.GameData{Data: c.input()})
	case v086.PlayerDropNotification:
		log.Info().Str("user", m.Username).Uint8("player", m.PlayerNumber).Msg("player dropped")
	case v086.QuitNotification:
		if m.UserID == c.userID && c.loggedIn {
			log.Info().Str("message", m.Message).Msg("quit")
			return errKicked
		}
	}
	return nil
}

// input is one message of random controller state.
func (c *client) input() []byte {
	n := c.cfg.InputSize * max(c.cfg.ConnectionType, 1)
	b := make([]byte, n)
	c.rnd.Read(b)
	return b
}
