package server

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

const (
	StandardQuitMessage = "Goodbye"
	serverSource        = "server"
)

// Sink receives the events addressed to one user. PostEvent must not block.
type Sink interface {
	PostEvent(ev game.Event) bool
}

type Deps struct {
	Access AccessManager
	Stats  game.StatsCollector
	// Feed mirrors server-wide and game events for the admin stream. Optional.
	Feed *eventfeed.Feed
	// NewRecorder enables game logs. Optional.
	NewRecorder func(gameID uint16) (game.Recorder, error)
	Now         func() time.Time
}

// Server holds every connected user and open game. It is the game.Hub for
// all games it creates.
type Server struct {
	cfg         config.RelayConfig
	access      AccessManager
	stats       game.StatsCollector
	feed        *eventfeed.Feed
	newRecorder func(gameID uint16) (game.Recorder, error)
	now         func() time.Time
	allowedConn [7]bool

	nextUserID atomic.Uint32
	nextGameID atomic.Uint32
	userCount  atomic.Int32
	gameCount  atomic.Int32

	users sync.Map // uint16 -> *User
	games sync.Map // uint16 -> *game.Game
	sinks sync.Map // uint16 -> Sink

	// loginMu serializes the duplicate-name scan of concurrent logins.
	loginMu sync.Mutex
}

func New(cfg config.RelayConfig, deps Deps) *Server {
	if deps.Access == nil {
		deps.Access = NewStaticAccess(cfg)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:         cfg,
		access:      deps.Access,
		stats:       deps.Stats,
		feed:        deps.Feed,
		newRecorder: deps.NewRecorder,
		now:         deps.Now,
	}
	for _, ct := range cfg.AllowedConnectionTypes {
		if ct >= 0 && ct < len(s.allowedConn) {
			s.allowedConn[ct] = true
		}
	}
	return s
}

func (s *Server) Config() config.RelayConfig { return s.cfg }

// nextID advances c and returns the new value, wrapping from 0xFFFF to 1.
func nextID(c *atomic.Uint32) uint16 {
	for {
		old := c.Load()
		next := old + 1
		if next > 0xFFFF {
			next = 1
		}
		if c.CompareAndSwap(old, next) {
			return uint16(next)
		}
	}
}

// Connect registers a client that has completed the connect handshake.
func (s *Server) Connect(addr netip.AddrPort, protocol string) (*User, error) {
	access := s.access.Access(addr.Addr())
	if s.cfg.MaxUsers > 0 && int(s.userCount.Load()) >= s.cfg.MaxUsers && access <= game.AccessNormal {
		log.Warn().Str("remote_addr", addr.String()).Int("max_users", s.cfg.MaxUsers).Msg("connection denied: server full")
		return nil, fail(ErrServerFull, "Server is full.")
	}
	connID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("conn id: %w", err)
	}
	now := s.now()
	u := &User{
		ConnID:      connID,
		Addr:        addr,
		Protocol:    protocol,
		ConnectedAt: now,
		access:      access,
		status:      v086.UserConnecting,
	}
	u.touch(now)
	for i := 0; i < 0xFFFF; i++ {
		u.ID = nextID(&s.nextUserID)
		if _, loaded := s.users.LoadOrStore(u.ID, u); !loaded {
			s.userCount.Add(1)
			log.Info().Uint16("user_id", u.ID).Str("conn_id", connID.String()).Str("remote_addr", addr.String()).Str("protocol", protocol).Msg("user connected")
			return u, nil
		}
	}
	return nil, fail(ErrServerFull, "Server is full.")
}

// Attach routes events for userID to sink.
func (s *Server) Attach(userID uint16, sink Sink) { s.sinks.Store(userID, sink) }

func (s *Server) Detach(userID uint16) { s.sinks.Delete(userID) }

// Remove forgets a user without announcing anything.
func (s *Server) Remove(userID uint16) {
	if _, ok := s.users.LoadAndDelete(userID); ok {
		s.userCount.Add(-1)
		log.Debug().Uint16("user_id", userID).Msg("user removed")
	}
}

func (s *Server) denyLogin(u *User, kind error, reason, logMsg string) error {
	s.Remove(u.ID)
	log.Info().Uint16("user_id", u.ID).Str("remote_addr", u.Addr.String()).Str("reason", logMsg).Msg("login denied")
	return fail(kind, reason)
}

// Login validates a user that finished its speed test and announces it.
func (s *Server) Login(u *User) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	u.mu.Lock()
	name, clientType, ct, ping, status, loggedIn := u.name, u.clientType, u.connType, u.ping, u.status, u.loggedIn
	u.mu.Unlock()

	if loggedIn {
		return fail(ErrLoginDenied, "Login denied: already logged in.")
	}
	if v, ok := s.users.Load(u.ID); !ok || v.(*User) != u {
		return fail(ErrUnknownUser, "Login denied: connection timed out.")
	}
	access := s.access.Access(u.Addr.Addr())
	normal := access == game.AccessNormal
	switch {
	case access < game.AccessNormal:
		return s.denyLogin(u, ErrLoginDenied, "Login denied: access denied.", "access denied")
	case normal && s.cfg.MaxPingMS > 0 && ping > s.cfg.MaxPing():
		return s.denyLogin(u, ErrPingTooHigh, fmt.Sprintf("Login denied: ping %d > %d.", ping.Milliseconds(), s.cfg.MaxPingMS), "ping too high")
	case normal && (int(ct) >= len(s.allowedConn) || !s.allowedConn[ct]):
		return s.denyLogin(u, ErrLoginDenied, "Login denied: connection type "+ct.String()+" is not allowed.", "connection type not allowed")
	case ping < 0:
		return s.denyLogin(u, ErrPingTooHigh, "Login denied: invalid ping.", "invalid ping")
	case strings.TrimSpace(name) == "":
		return s.denyLogin(u, ErrUserName, "Login denied: user name is empty.", "empty name")
	case illegalUserName(name, normal):
		return s.denyLogin(u, ErrUserName, "Login denied: illegal characters in user name.", "illegal name")
	case s.cfg.MaxUserNameLength > 0 && utf8.RuneCountInString(name) > s.cfg.MaxUserNameLength:
		return s.denyLogin(u, ErrUserName, "Login denied: user name is too long.", "name too long")
	case normal && s.cfg.MaxClientNameLength > 0 && utf8.RuneCountInString(clientType) > s.cfg.MaxClientNameLength:
		return s.denyLogin(u, ErrUserName, "Login denied: emulator name is too long.", "client name too long")
	case strings.Contains(clientType, "|"):
		return s.denyLogin(u, ErrUserName, "Login denied: illegal characters in emulator name.", "illegal client name")
	case status != v086.UserConnecting:
		return s.denyLogin(u, ErrLoginDenied, "Login denied: invalid status "+status.String()+".", "invalid status")
	case normal && !s.access.IsEmulatorAllowed(clientType):
		return s.denyLogin(u, ErrLoginDenied, "Login denied: emulator "+clientType+" is restricted.", "emulator restricted")
	}

	var reconnected []*User
	var denial error
	s.users.Range(func(_, v any) bool {
		other := v.(*User)
		if other == u || !other.LoggedIn() {
			return true
		}
		otherName := other.Name()
		sameAddr := other.Addr.Addr() == u.Addr.Addr()
		switch {
		case sameAddr && otherName == name:
			reconnected = append(reconnected, other)
		case strings.EqualFold(strings.TrimSpace(otherName), strings.TrimSpace(name)):
			denial = s.denyLogin(u, ErrAddressConflict, "Login denied: duplicate name "+otherName+".", "duplicate name")
			return false
		case normal && sameAddr && !s.cfg.AllowMultipleConnections:
			denial = s.denyLogin(u, ErrAddressConflict, "Login denied: address already logged in as "+otherName+".", "address in use")
			return false
		}
		return true
	})
	if denial != nil {
		return denial
	}
	for _, old := range reconnected {
		if err := s.Quit(old, "Forced quit: reconnected"); err != nil {
			log.Warn().Err(err).Uint16("user_id", old.ID).Msg("quit reconnected user failed")
		}
	}

	now := s.now()
	u.mu.Lock()
	u.access = access
	u.status = v086.UserIdle
	u.loggedIn = true
	u.touch(now)
	u.mu.Unlock()
	log.Info().Uint16("user_id", u.ID).Str("name", name).Str("client_type", clientType).
		Int64("ping_ms", ping.Milliseconds()).Str("access", access.String()).Msg("user logged in")

	s.Deliver(u.ID, Connected{UserID: u.ID, Users: s.Users(), Games: s.Games(false)})
	for _, msg := range s.cfg.LoginMessages {
		s.Deliver(u.ID, InfoMessage{Source: serverSource, Message: msg})
	}
	if access >= game.AccessAdmin {
		s.Deliver(u.ID, InfoMessage{Source: serverSource, Message: "Welcome, " + access.String() + "."})
	}
	s.Broadcast(UserJoined{UserID: u.ID, Name: name, PingMS: ping.Milliseconds(), ConnectionType: ct})
	if msg := s.access.Announcement(u.Addr.Addr()); msg != "" {
		s.Broadcast(InfoMessage{Source: serverSource, Message: msg})
	}
	return nil
}

func illegalUserName(name string, normal bool) bool {
	if name == "Server" || strings.Contains(name, "|") {
		return true
	}
	if !normal {
		return false
	}
	lower := strings.ToLower(name)
	for _, bad := range []string{"www.", "http://", "https://", "\\"} {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return hasControl(name)
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 32 {
			return true
		}
	}
	return false
}

// Quit logs the user off, leaving its game first. A blank or overlong
// message is replaced with the standard one.
func (s *Server) Quit(u *User, message string) error {
	if !u.LoggedIn() {
		s.Remove(u.ID)
		return fail(ErrNotLoggedIn, "Quit failed: not logged in.")
	}
	if u.GameID() != 0 {
		if err := s.QuitGame(u); err != nil {
			log.Debug().Err(err).Uint16("user_id", u.ID).Msg("quit game during quit")
		}
	}
	s.Remove(u.ID)

	msg := strings.TrimSpace(message)
	if msg == "" || (s.cfg.MaxQuitMessageLength > 0 && utf8.RuneCountInString(msg) > s.cfg.MaxQuitMessageLength) {
		msg = StandardQuitMessage
	}
	if u.Access() < game.AccessSuperAdmin && s.access.IsSilenced(u.Addr.Addr()) {
		msg = StandardQuitMessage
	}
	u.mu.Lock()
	u.loggedIn = false
	name := u.name
	u.mu.Unlock()

	log.Info().Uint16("user_id", u.ID).Str("message", msg).Msg("user quit")
	ev := UserQuit{UserID: u.ID, Name: name, Message: msg}
	s.Broadcast(ev)
	s.Deliver(u.ID, ev)
	return nil
}

func (s *Server) Chat(u *User, message string) error {
	if !u.LoggedIn() {
		return fail(ErrNotLoggedIn, "Chat failed: not logged in.")
	}
	access := u.Access()
	if access < game.AccessSuperAdmin && s.access.IsSilenced(u.Addr.Addr()) {
		return fail(ErrSilenced, "Chat denied: you are silenced.")
	}
	now := s.now()
	u.mu.Lock()
	last := u.lastChat
	u.mu.Unlock()
	if access == game.AccessNormal && s.cfg.ChatFloodTime > 0 && now.Sub(last) < s.cfg.ChatFloodTime {
		return fail(ErrFlood, "Chat denied: flood control.")
	}
	msg := strings.TrimSpace(message)
	if msg == "" {
		return nil
	}
	if access == game.AccessNormal {
		if hasControl(msg) {
			return fail(ErrChatDenied, "Chat denied: illegal characters in message.")
		}
		if s.cfg.MaxChatLength > 0 && utf8.RuneCountInString(msg) > s.cfg.MaxChatLength {
			return fail(ErrChatDenied, "Chat denied: message is too long.")
		}
	}
	u.mu.Lock()
	u.lastChat = now
	u.touch(now)
	name := u.name
	u.mu.Unlock()
	log.Info().Uint16("user_id", u.ID).Str("message", msg).Msg("chat")
	s.Broadcast(Chat{UserID: u.ID, Name: name, Message: msg})
	return nil
}

// CreateGame opens a game owned by u and joins u to it.
func (s *Server) CreateGame(u *User, romName string) (*game.Game, error) {
	if !u.LoggedIn() {
		return nil, fail(ErrNotLoggedIn, "Create game failed: not logged in.")
	}
	if u.GameID() != 0 {
		return nil, fail(ErrCreateGameDenied, "Create game failed: already in a game.")
	}
	trimmed := strings.TrimSpace(romName)
	if s.cfg.MaxGameNameLength > 0 && utf8.RuneCountInString(trimmed) > s.cfg.MaxGameNameLength {
		return nil, fail(ErrCreateGameDenied, "Create game denied: ROM name is too long.")
	}
	if strings.Contains(romName, "|") {
		return nil, fail(ErrCreateGameDenied, "Create game denied: illegal characters in ROM name.")
	}
	now := s.now()
	if u.Access() == game.AccessNormal {
		u.mu.Lock()
		last := u.lastCreateGame
		u.mu.Unlock()
		switch {
		case s.cfg.CreateGameFloodTime > 0 && now.Sub(last) < s.cfg.CreateGameFloodTime:
			return nil, fail(ErrFlood, "Create game denied: flood control.")
		case s.cfg.MaxGames > 0 && int(s.gameCount.Load()) >= s.cfg.MaxGames:
			return nil, fail(ErrCreateGameDenied, fmt.Sprintf("Create game denied: the server allows at most %d games.", s.cfg.MaxGames))
		case hasControl(romName):
			return nil, fail(ErrCreateGameDenied, "Create game denied: illegal characters in ROM name.")
		case trimmed == "":
			return nil, fail(ErrCreateGameDenied, "Create game failed: ROM name is empty.")
		case !s.access.IsGameAllowed(romName):
			return nil, fail(ErrCreateGameDenied, "Create game denied: this game is not allowed here.")
		}
	}

	owner := u.player()
	settings := game.DefaultSettings()
	settings.Record = s.newRecorder != nil
	var g *game.Game
	scanner := NewAutoFireScanner(s.cfg.AutoFireSensitivity, func(userID uint16, _ int) {
		name := ""
		if target, ok := s.User(userID); ok {
			name = target.Name()
		}
		// Detection runs under the game lock.
		go g.Announce("Autofire detected: "+name, 0)
	})
	opts := game.Options{
		BufferSize:        s.cfg.GameBufferSize,
		AllowSinglePlayer: s.cfg.AllowSinglePlayer,
		LagWindow:         s.cfg.LagstatWindow,
		Settings:          settings,
		AutoFire:          scanner,
		Stats:             s.stats,
		NewRecorder:       s.newRecorder,
		Busy:              s.busy,
		Now:               s.now,
	}
	var id uint16
	for i := 0; i < 0xFFFF; i++ {
		id = nextID(&s.nextGameID)
		if _, taken := s.games.Load(id); !taken {
			break
		}
	}
	g = game.New(id, romName, owner, s, opts)
	s.games.Store(id, g)
	s.gameCount.Add(1)
	u.mu.Lock()
	u.lastCreateGame = now
	u.touch(now)
	u.mu.Unlock()

	log.Info().Uint16("user_id", u.ID).Uint16("game_id", id).Str("rom_name", romName).Msg("game created")
	s.Broadcast(GameCreated{GameID: id, RomName: romName, ClientType: owner.ClientType, OwnerName: owner.Name})
	if err := s.JoinGame(u, id); err != nil {
		log.Error().Err(err).Uint16("user_id", u.ID).Uint16("game_id", id).Msg("owner failed to join own game")
	}
	s.Broadcast(InfoMessage{Source: serverSource, Message: owner.Name + " created game: " + romName})
	return g, nil
}

func (s *Server) JoinGame(u *User, gameID uint16) error {
	if !u.LoggedIn() {
		return fail(ErrNotLoggedIn, "Join game failed: not logged in.")
	}
	g, ok := s.Game(gameID)
	if !ok {
		return fail(ErrGameNotFound, "Join game failed: game not found.")
	}
	if cur := u.GameID(); cur != 0 && cur != gameID {
		if err := s.QuitGame(u); err != nil {
			log.Debug().Err(err).Uint16("user_id", u.ID).Msg("leave previous game")
		}
	}
	if _, err := g.Join(u.player()); err != nil {
		return err
	}
	u.mu.Lock()
	u.gameID = gameID
	u.touch(s.now())
	u.mu.Unlock()
	return nil
}

// QuitGame removes u from its game, closing the game when u owns it.
func (s *Server) QuitGame(u *User) error {
	id := u.GameID()
	if id == 0 {
		return fail(ErrNotInGame, "Quit game failed: not in a game.")
	}
	u.setGame(0)
	g, ok := s.Game(id)
	if !ok {
		return nil
	}
	ownerLeft, err := g.Quit(u.ID)
	if err != nil {
		return err
	}
	if ownerLeft {
		return s.CloseGame(g, u)
	}
	return nil
}

func (s *Server) CloseGame(g *game.Game, u *User) error {
	if _, ok := s.games.Load(g.ID); !ok {
		return nil
	}
	members, err := g.Close(u.ID)
	if err != nil {
		return err
	}
	if _, ok := s.games.LoadAndDelete(g.ID); ok {
		s.gameCount.Add(-1)
	}
	for _, id := range members {
		if member, ok := s.User(id); ok && member.GameID() == g.ID {
			member.setGame(0)
		}
	}
	log.Info().Uint16("user_id", u.ID).Uint16("game_id", g.ID).Msg("game removed")
	s.Broadcast(GameClosed{GameID: g.ID})
	return nil
}

// UserGame returns the game u is in.
func (s *Server) UserGame(u *User) (*game.Game, error) {
	id := u.GameID()
	if id == 0 {
		return nil, fail(ErrNotInGame, "Not in a game.")
	}
	g, ok := s.Game(id)
	if !ok {
		return nil, fail(ErrGameNotFound, "Game not found.")
	}
	return g, nil
}

func (s *Server) StartGame(u *User) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	return g.Start(u.ID, u.Access())
}

func (s *Server) Ready(u *User) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	return g.Ready(u.ID)
}

func (s *Server) Drop(u *User) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	return g.Drop(u.ID)
}

// Kick removes targetID from u's game if u may do so.
func (s *Server) Kick(u *User, targetID uint16) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	kicked, err := g.Kick(u.ID, u.Access(), targetID)
	if err != nil || kicked == 0 {
		return err
	}
	if target, ok := s.User(kicked); ok {
		return s.QuitGame(target)
	}
	return nil
}

func (s *Server) GameChat(u *User, message string) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	if u.Access() < game.AccessSuperAdmin && s.access.IsSilenced(u.Addr.Addr()) {
		return fail(ErrSilenced, "Game chat denied: you are silenced.")
	}
	u.mu.Lock()
	u.touch(s.now())
	u.mu.Unlock()
	return g.Chat(u.ID, message)
}

func (s *Server) SubmitInput(ctx context.Context, u *User, data []byte) error {
	g, err := s.UserGame(u)
	if err != nil {
		return err
	}
	return g.SubmitInput(ctx, u.ID, data)
}

func (s *Server) DroppedPacket(u *User) {
	if g, err := s.UserGame(u); err == nil {
		g.DroppedPacket(u.ID)
	}
}

func (s *Server) KeepAlive(u *User) { u.KeepAlive(s.now()) }

func (s *Server) User(id uint16) (*User, bool) {
	v, ok := s.users.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*User), true
}

func (s *Server) Game(id uint16) (*game.Game, bool) {
	v, ok := s.games.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*game.Game), true
}

func (s *Server) UserCount() int { return int(s.userCount.Load()) }

func (s *Server) GameCount() int { return int(s.gameCount.Load()) }

// UserInfo describes u with its status as seen by its game.
func (s *Server) UserInfo(u *User) UserInfo {
	info := u.Info()
	if info.GameID != 0 {
		if g, ok := s.Game(info.GameID); ok {
			if st, ok := g.PlayerStatus(u.ID); ok {
				info.Status = st
			}
		}
	}
	return info
}

// Users lists logged-in users by id.
func (s *Server) Users() []UserInfo {
	var out []UserInfo
	s.users.Range(func(_, v any) bool {
		u := v.(*User)
		if u.LoggedIn() {
			out = append(out, s.UserInfo(u))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) Games(withPlayers bool) []game.Snapshot {
	var out []game.Snapshot
	s.games.Range(func(_, v any) bool {
		out = append(out, v.(*game.Game).Snapshot(withPlayers))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Deliver implements game.Hub.
func (s *Server) Deliver(userID uint16, ev game.Event) {
	if v, ok := s.sinks.Load(userID); ok {
		if !v.(Sink).PostEvent(ev) {
			s.eventDropped(userID, ev)
		}
	}
	if gameID, subject, ok := feedSubject(ev); ok && (subject == 0 || subject == userID) {
		s.publish(gameID, ev)
	}
}

// eventDropped handles an event a sink refused. A player that misses its
// GameData can never answer that frame, so it is desynced. Deliver runs under
// the game lock, hence the goroutine.
func (s *Server) eventDropped(userID uint16, ev game.Event) {
	data, ok := ev.(game.GameData)
	if !ok {
		log.Debug().Uint16("user_id", userID).Str("event", ev.EventName()).Msg("event dropped")
		return
	}
	metricGameDataDropped.Add(1)
	log.Warn().Uint16("user_id", userID).Uint16("game_id", data.GameID).Msg("game data dropped: inbox full")
	if g, ok := s.Game(data.GameID); ok {
		go g.DroppedPacket(userID)
	}
}

// Broadcast implements game.Hub: ev goes to every logged-in user, except
// that players hiding lobby activity skip lobby chatter.
func (s *Server) Broadcast(ev game.Event) {
	lobby := lobbyActivity(ev)
	s.users.Range(func(k, v any) bool {
		u := v.(*User)
		if !u.LoggedIn() || (lobby && s.ignoringActivity(u)) {
			return true
		}
		if sv, ok := s.sinks.Load(k); ok {
			sv.(Sink).PostEvent(ev)
		}
		return true
	})
	var gameID uint16
	switch e := ev.(type) {
	case game.GameStatusChanged:
		gameID = e.Game.ID
	case GameCreated:
		gameID = e.GameID
	case GameClosed:
		gameID = e.GameID
	}
	s.publish(gameID, ev)
}

func (s *Server) busy() bool {
	return s.cfg.BusyUserCount > 0 && s.UserCount() > s.cfg.BusyUserCount
}

// lobbyActivity reports events a player hiding lobby activity does not get.
func lobbyActivity(ev game.Event) bool {
	switch ev.(type) {
	case Chat, UserJoined, UserQuit, game.GameStatusChanged, GameCreated, GameClosed:
		return true
	}
	return false
}

func (s *Server) ignoringActivity(u *User) bool {
	id := u.GameID()
	if id == 0 {
		return false
	}
	g, ok := s.Game(id)
	return ok && g.IgnoringActivity(u.ID)
}

// Announce sends an info message from the server to every logged-in user.
func (s *Server) Announce(message string) {
	s.Broadcast(Announcement{Message: message})
}

func (s *Server) publish(gameID uint16, ev game.Event) {
	if s.feed != nil {
		s.feed.Publish(gameID, ev)
	}
}

// feedSubject picks the single delivery of a per-player game event that the
// admin feed mirrors. A zero subject mirrors every delivery.
func feedSubject(ev game.Event) (gameID, subject uint16, ok bool) {
	switch e := ev.(type) {
	case game.PlayerJoined:
		return e.GameID, e.Player.UserID, true
	case game.PlayerDropped:
		return e.GameID, e.UserID, true
	case game.PlayerQuit:
		return e.GameID, e.UserID, true
	case game.PlayerDesynced:
		return e.GameID, e.UserID, true
	case game.GameTimeout:
		return e.GameID, e.UserID, true
	case game.GameChat:
		return e.GameID, e.UserID, true
	case game.GameStarted:
		return e.GameID, 0, true
	}
	return 0, 0, false
}
