package lobbypush

import (
	"fmt"
	"strconv"
	"time"

	"kaillera-relay/internal/lobbypush/platforms"
)

const (
	EventGameCreated = "game_created"
	EventGameStarted = "game_started"
	EventGameClosed  = "game_closed"
	EventAnnounce    = "announcement"
	EventUserJoined  = "user_joined"
	EventUserQuit    = "user_quit"
)

const (
	colorOpen     = 0x5865F2
	colorPlaying  = 0x3BA55D
	colorClosed   = 0x747F8D
	colorAnnounce = 0xFEE75C
	colorUser     = 0x57F287
)

// FormatMessage renders ev for a webhook. The footer carries the server name.
func FormatMessage(ev Event, serverName string) platforms.Message {
	msg := platforms.Message{
		Timestamp: time.UnixMilli(ev.ServerTS).UTC().Format(time.RFC3339),
		Footer:    fallback(serverName, "kaillera-relay"),
	}
	gameField := platforms.Field{Name: "Game", Value: "#" + strconv.Itoa(int(ev.GameID)), Inline: true}
	switch ev.Type {
	case EventGameCreated:
		msg.Title = "Game opened"
		msg.Description = fmt.Sprintf("%s opened %s", fallback(ev.Owner, "someone"), fallback(ev.RomName, "a game"))
		msg.Color = colorOpen
		msg.Fields = []platforms.Field{gameField, {Name: "ROM", Value: fallback(ev.RomName, "-"), Inline: true}}
	case EventGameStarted:
		msg.Title = "Game started"
		msg.Description = fmt.Sprintf("%s started with %d players", fallback(ev.RomName, "A game"), ev.Players)
		msg.Color = colorPlaying
		msg.Fields = []platforms.Field{
			gameField,
			{Name: "Players", Value: fmt.Sprintf("%d/%d", ev.Players, ev.MaxUsers), Inline: true},
			{Name: "Owner", Value: fallback(ev.Owner, "-"), Inline: true},
		}
	case EventGameClosed:
		msg.Title = "Game closed"
		msg.Description = fmt.Sprintf("%s closed", fallback(ev.RomName, "A game"))
		msg.Color = colorClosed
		msg.Fields = []platforms.Field{gameField}
	case EventAnnounce:
		msg.Title = "Server announcement"
		msg.Description = ev.Message
		msg.Color = colorAnnounce
	case EventUserJoined:
		msg.Title = "User joined"
		msg.Description = ev.UserName + " joined the server"
		msg.Color = colorUser
	case EventUserQuit:
		msg.Title = "User left"
		msg.Description = ev.UserName + " left: " + fallback(ev.Message, "-")
		msg.Color = colorClosed
	default:
		msg.Title = ev.Type
		msg.Description = ev.Message
	}
	return msg
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
