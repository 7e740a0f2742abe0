package game

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/v086"
)

const (
	desyncTimeouts   = 120
	timeoutNoticeGap = 12
	spamJoinLimit    = 4
	// preludePadding is added to every player's frame delay before live input
	// starts flowing through the queues.
	preludePadding = 5
	dataErrorGrace = 30 * time.Second
)

type Options struct {
	BufferSize        int
	AllowSinglePlayer bool
	// RetryWait bounds one wait for another player's input.
	RetryWait time.Duration
	LagWindow time.Duration
	Settings  Settings

	AutoFire AutoFireDetector
	Stats    StatsCollector
	// NewRecorder opens a recorder when a recorded game starts. Nil disables recording.
	NewRecorder func(gameID uint16) (Recorder, error)
	// Busy reports a crowded server. Games started while it is true hide
	// lobby activity from their players until they stop playing.
	Busy func() bool
	Now  func() time.Time
}

func (o *Options) setDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 4096
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second / FPS
	}
	if o.LagWindow <= 0 {
		o.LagWindow = time.Minute
	}
	if o.Settings == (Settings{}) {
		o.Settings = DefaultSettings()
	}
	if o.AutoFire == nil {
		o.AutoFire = noopAutoFire{}
	}
	if o.Stats == nil {
		o.Stats = noopStats{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Game is one netplay session. Every exported method takes the game lock;
// events go out through the Hub while it is held.
type Game struct {
	ID         uint16
	RomName    string
	OwnerID    uint16
	ClientType string
	Created    time.Time

	hub  Hub
	opts Options

	ownerName string
	ownerConn v086.ConnectionType
	// actionsPerMessage follows the owner's connection type.
	actionsPerMessage int

	mu                sync.Mutex
	cond              *sync.Cond
	status            v086.GameStatus
	players           []*Player
	queues            []*ActionQueue
	synced            bool
	closed            bool
	settings          Settings
	highestFrameDelay int
	kicked            []string
	mutedAddrs        []string
	lastAddress       string
	lastAddressCount  int
	lag               *LagMeter
	lastLagReset      time.Time
	lastLagstat       time.Time
	recorder          Recorder

	// ignoring holds the user ids hiding lobby activity. It is read without
	// the game lock from Hub.Broadcast.
	ignoring sync.Map
}

func New(id uint16, romName string, owner *Player, hub Hub, opts Options) *Game {
	opts.setDefaults()
	apm := owner.ConnectionType.ActionsPerMessage()
	if apm < 1 {
		apm = 1
	}
	g := &Game{
		ID:                id,
		RomName:           romName,
		OwnerID:           owner.UserID,
		ClientType:        owner.ClientType,
		hub:               hub,
		opts:              opts,
		ownerName:         owner.Name,
		ownerConn:         owner.ConnectionType,
		actionsPerMessage: apm,
		status:            v086.GameWaiting,
		settings:          opts.Settings,
		lag:               NewLagMeter(FrameDuration(apm), opts.LagWindow),
	}
	g.Created = opts.Now()
	g.lastLagReset = g.Created
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Game) String() string {
	name := g.RomName
	if len(name) > 15 {
		name = name[:15] + "..."
	}
	return fmt.Sprintf("Game[id=%d name=%s]", g.ID, name)
}

func (g *Game) Status() v086.GameStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Join adds p as the next player and returns its player number.
func (g *Game) Join(p *Player) (int, error) {
	g.mu.Lock()
	n, err := g.joinLocked(p)
	startN := g.settings.StartN
	count := len(g.players)
	g.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if startN != -1 && count >= startN {
		if err := g.Start(g.OwnerID, AccessNormal); err != nil {
			log.Debug().Err(err).Uint16("game_id", g.ID).Msg("auto start failed")
		}
	}
	return n, nil
}

func (g *Game) joinLocked(p *Player) (int, error) {
	if g.closed {
		return 0, actionErr(ErrNotInGame, "Game is closed.")
	}
	if p.Address == g.lastAddress {
		g.lastAddressCount++
		if g.lastAddressCount >= spamJoinLimit && p.Access < AccessAdmin {
			log.Info().Uint16("user_id", p.UserID).Uint16("game_id", g.ID).Msg("join spam protection")
			g.kicked = append(g.kicked, p.Address)
			if existing := g.playerLocked(p.UserID); existing != nil {
				g.removeLocked(existing)
			}
			return 0, actionErr(ErrSpamProtection, "Spam Protection")
		}
	} else {
		g.lastAddressCount = 0
		g.lastAddress = p.Address
	}

	elevated := p.Access >= AccessElevated
	switch {
	case g.playerLocked(p.UserID) != nil:
		return 0, actionErr(ErrAlreadyInGame, "You are already in this game.")
	case !elevated && len(g.players) >= g.settings.MaxUsers:
		return 0, actionErr(ErrCapacityReached, "This room's user capacity has been reached.")
	case !elevated && p.Ping > time.Duration(g.settings.MaxPing)*time.Millisecond:
		return 0, actionErr(ErrPingTooHigh, "Your ping is too high for this room.")
	case !elevated && g.settings.AllowedEmulator != "any" && g.settings.AllowedEmulator != p.ClientType:
		return 0, actionErr(ErrEmulatorMismatch, "Owner only allows emulator version: "+g.settings.AllowedEmulator)
	case !elevated && g.settings.RestrictConnectionType && p.ConnectionType != g.ownerConn:
		return 0, actionErr(ErrConnectionTypeMismatch, "Owner only allows connection type: "+g.ownerConn.String())
	case p.Access < AccessAdmin && g.wasKickedLocked(p.Address):
		return 0, actionErr(ErrPreviouslyKicked, "You have been kicked from this game.")
	case p.Access == AccessNormal && g.status != v086.GameWaiting:
		return 0, actionErr(ErrGameInProgress, "This game is in progress.")
	}

	g.players = append(g.players, p)
	p.Number = len(g.players)
	p.Status = v086.UserIdle
	p.queue = -1
	p.muted = slices.Contains(g.mutedAddrs, p.Address)
	if p.lag == nil {
		p.lag = NewLagMeter(g.lag.FrameDuration(), g.opts.LagWindow)
	}
	g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	log.Info().Uint16("user_id", p.UserID).Uint16("game_id", g.ID).Int("player_number", p.Number).Msg("player joined game")

	joined := PlayerJoined{GameID: g.ID, Player: p.info()}
	for _, other := range g.players {
		if other != p && !other.Stealth {
			joined.Others = append(joined.Others, other.info())
		}
	}
	g.toAllLocked(joined)

	if p.Access < AccessAdmin && p.ClientType != g.ClientType {
		g.toAllLocked(GameInfo{GameID: g.ID, Message: p.Name + " using different emulator version: " + p.ClientType})
	}
	return p.Number, nil
}

// Start moves a waiting game to SYNCHRONIZING and allocates the action queues.
func (g *Game) Start(userID uint16, access AccessLevel) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if userID != g.OwnerID && access < AccessAdmin {
		return actionErr(ErrNotGameOwner, "Only the owner may start the game.")
	}
	switch g.status {
	case v086.GameSynchronizing:
		return actionErr(ErrGameInProgress, "Game is already synchronizing.")
	case v086.GamePlaying:
		return actionErr(ErrGameInProgress, "Game is already playing.")
	}
	if access == AccessNormal && len(g.players) < 2 && !g.opts.AllowSinglePlayer {
		return actionErr(ErrSinglePlayerNotAllowed, "This server does not allow single player games.")
	}
	for _, p := range g.players {
		if p.Stealth {
			continue
		}
		if p.ConnectionType != g.ownerConn {
			g.toAllLocked(GameInfo{GameID: g.ID, Message: "All players must use the " + g.ownerConn.String() + " connection type."})
			return actionErr(ErrConnectionTypeMismatch, "All players must use the same connection type.")
		}
		if p.ClientType != g.ClientType {
			g.toAllLocked(GameInfo{GameID: g.ID, Message: "All players must use the same emulator: " + g.ClientType})
			return actionErr(ErrEmulatorMismatch, "All players must use the same emulator.")
		}
	}

	now := g.opts.Now()
	g.status = v086.GameSynchronizing
	g.highestFrameDelay = 1
	g.lag.SetFrameDuration(FrameDuration(g.actionsPerMessage))
	g.opts.AutoFire.Start(len(g.players))
	g.queues = make([]*ActionQueue, len(g.players))
	for i, p := range g.players {
		p.Number = i + 1
		p.queue = i
		p.frameCount = 0
		p.lostInput = nil
		p.bytesPerAction = 0
		p.arraySize = 0
		p.dataErrorAt = time.Time{}
		q := NewActionQueue(p.Number, len(g.players), g.opts.BufferSize)
		q.UserID, q.Name = p.UserID, p.Name
		g.queues[i] = q
		p.FrameDelay = frameDelay(p.ConnectionType, p.Ping)
		if p.FrameDelay > g.highestFrameDelay {
			g.highestFrameDelay = p.FrameDelay
		}
		p.lag.SetFrameDuration(g.lag.FrameDuration())
		g.opts.AutoFire.AddPlayer(p.UserID, p.Number)
	}
	busy := g.opts.Busy != nil && g.opts.Busy()
	for _, p := range g.players {
		p.TempDelay = g.highestFrameDelay - p.FrameDelay
		p.Status = v086.UserPlaying
		if busy {
			g.ignoring.Store(p.UserID, struct{}{})
			g.hub.Deliver(p.UserID, GameInfo{GameID: g.ID, Message: "This game is ignoring ALL server activity during gameplay!"})
		}
	}
	g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	g.opts.Stats.MarkGameAsStarted(g.snapshotLocked(true))
	g.openRecorderLocked(now)
	log.Info().Uint16("user_id", userID).Uint16("game_id", g.ID).Int("highest_frame_delay", g.highestFrameDelay).Msg("game started")

	for _, p := range g.players {
		delay := p.FrameDelay
		if g.settings.SameDelay {
			delay = g.highestFrameDelay
		}
		g.hub.Deliver(p.UserID, GameStarted{GameID: g.ID, PlayerNumber: p.Number, NumPlayers: len(g.players), Delay: delay})
	}
	return nil
}

// frameDelay is how many updates of input the player's ping spans, plus one.
func frameDelay(ct v086.ConnectionType, ping time.Duration) int {
	if ct == v086.ConnectionDisabled {
		return 1
	}
	pingMS := float64(ping) / float64(time.Millisecond)
	return int(float64(FPS)/float64(ct)*(pingMS/1000) + 1)
}

func (g *Game) openRecorderLocked(now time.Time) {
	if g.recorder != nil {
		if err := g.recorder.Close(); err != nil {
			log.Warn().Err(err).Uint16("game_id", g.ID).Msg("close game log")
		}
		g.recorder = nil
	}
	if !g.settings.Record || g.opts.NewRecorder == nil {
		return
	}
	rec, err := g.opts.NewRecorder(g.ID)
	if err != nil {
		log.Warn().Err(err).Uint16("game_id", g.ID).Msg("open game log")
		return
	}
	g.recorder = rec
	g.lastLagstat = now
	rec.Start(now, g.playerInfosLocked(false))
}

// Ready marks the player's queue synced. The last player to become ready
// moves the game to PLAYING.
func (g *Game) Ready(userID uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerLocked(userID)
	if p == nil {
		return actionErr(ErrNotInGame, "Ready signal failed: not in game.")
	}
	if g.status != v086.GameSynchronizing {
		return actionErr(ErrInvalidState, "Ready signal failed: incorrect game state.")
	}
	q := g.queueLocked(p)
	if q == nil {
		return actionErr(ErrInvalidState, "Ready signal failed: no action queue.")
	}
	if q.Synced() {
		return nil
	}
	p.totalDelay = g.highestFrameDelay + p.TempDelay + preludePadding
	q.MarkSynced()
	if g.syncedCountLocked() != len(g.players) {
		return nil
	}

	now := g.opts.Now()
	g.status = v086.GamePlaying
	g.synced = true
	g.lag.Reset(now)
	g.lastLagReset = now
	for _, p := range g.players {
		p.lag.Reset(now)
	}
	g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	g.toAllLocked(AllReady{GameID: g.ID})
	log.Info().Uint16("game_id", g.ID).Msg("all players ready")

	conn := g.actionsPerMessage
	if g.settings.SameDelay {
		frames := (g.highestFrameDelay+1)*conn - 1
		g.toAllLocked(GameInfo{GameID: g.ID, Message: fmt.Sprintf("This game's delay is: %d (%d frame delay)", g.highestFrameDelay, frames)})
		return nil
	}
	for _, p := range g.players {
		if p.Stealth || g.queueLocked(p) == nil {
			continue
		}
		frames := (p.FrameDelay+1)*int(p.ConnectionType) - 1
		g.toAllLocked(GameInfo{GameID: g.ID, Message: fmt.Sprintf("P%d Delay = %d (%d frame delay)", p.queue+1, p.FrameDelay, frames)})
	}
	return nil
}

// Drop stops the player's input stream without leaving the game.
func (g *Game) Drop(userID uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerLocked(userID)
	if p == nil {
		return actionErr(ErrNotInGame, "Drop failed: not in game.")
	}
	if g.queues == nil {
		return actionErr(ErrInvalidState, "Drop failed: game has not started.")
	}
	if g.queueLocked(p) == nil {
		return actionErr(ErrInvalidState, "Drop failed: not playing.")
	}
	g.dropLocked(p)
	return nil
}

func (g *Game) dropLocked(p *Player) {
	number := p.Number
	log.Info().Uint16("user_id", p.UserID).Uint16("game_id", g.ID).Int("player_number", number).Msg("player dropped")
	if q := g.queueLocked(p); q != nil {
		q.MarkDesynced()
	}
	if g.synced && g.syncedCountLocked() < 2 {
		g.desyncAllLocked("less than 2 players playing")
	}
	g.opts.AutoFire.Stop(number)
	p.Status = v086.UserIdle
	if _, ok := g.ignoring.LoadAndDelete(p.UserID); ok {
		g.hub.Deliver(p.UserID, GameInfo{GameID: g.ID, Message: "Rejoin server to update client of ignored server activity!"})
	}
	if g.playingCountLocked() == 0 {
		if g.settings.StartN != -1 {
			g.settings.StartN = -1
			g.toAllLocked(GameInfo{GameID: g.ID, Message: "StartN is now off."})
		}
		g.status = v086.GameWaiting
		g.synced = false
		g.queues = nil
		g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	}
	g.toAllLocked(PlayerDropped{GameID: g.ID, UserID: p.UserID, Name: p.Name, PlayerNumber: number})
	g.cond.Broadcast()
}

// Quit removes the player. It reports whether the owner left, in which case
// the caller closes the game.
func (g *Game) Quit(userID uint16) (ownerLeft bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerLocked(userID)
	if p == nil {
		return false, actionErr(ErrNotInGame, "Quit game failed: not in game.")
	}
	if p.Status == v086.UserPlaying && g.queues != nil {
		g.dropLocked(p)
	}
	g.removeLocked(p)
	log.Info().Uint16("user_id", userID).Uint16("game_id", g.ID).Msg("player quit game")
	g.hub.Deliver(p.UserID, PlayerQuit{GameID: g.ID, UserID: p.UserID, Name: p.Name})
	g.toAllLocked(PlayerQuit{GameID: g.ID, UserID: p.UserID, Name: p.Name})
	if userID == g.OwnerID {
		return true, nil
	}
	g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	return false, nil
}

func (g *Game) removeLocked(p *Player) {
	for i, other := range g.players {
		if other == p {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
	p.Status = v086.UserIdle
	p.muted = false
	g.ignoring.Delete(p.UserID)
	if g.status == v086.GameWaiting {
		for i, other := range g.players {
			other.Number = i + 1
		}
	}
	g.cond.Broadcast()
}

// Kick records the target's address so it cannot rejoin, and returns the user
// id the caller must remove from the game. A zero id means nothing to do.
func (g *Game) Kick(requesterID uint16, access AccessLevel, targetID uint16) (uint16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if access < AccessAdmin && requesterID != g.OwnerID {
		return 0, actionErr(ErrNotGameOwner, "You are not the owner of this game.")
	}
	if requesterID == targetID {
		return 0, actionErr(ErrCannotKickSelf, "You cannot kick yourself.")
	}
	target := g.playerLocked(targetID)
	if target == nil {
		return 0, actionErr(ErrNotInGame, "User not found in this game.")
	}
	if access != AccessSuperAdmin && target.Access >= AccessAdmin {
		return 0, nil
	}
	log.Info().Uint16("user_id", requesterID).Uint16("target_id", targetID).Uint16("game_id", g.ID).Msg("player kicked")
	g.kicked = append(g.kicked, target.Address)
	return targetID, nil
}

// Close ends the game for everyone and returns the user ids that were still
// in it so the caller can reset their membership.
func (g *Game) Close(userID uint16) ([]uint16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if userID != g.OwnerID {
		return nil, actionErr(ErrNotGameOwner, "You are not the owner of this game.")
	}
	if g.synced {
		g.desyncAllLocked("game closed")
	}
	ids := make([]uint16, 0, len(g.players))
	for _, p := range g.players {
		p.Status = v086.UserIdle
		p.muted = false
		g.ignoring.Delete(p.UserID)
		ids = append(ids, p.UserID)
	}
	g.opts.AutoFire.StopAll()
	g.players = nil
	g.queues = nil
	g.closed = true
	if g.recorder != nil {
		if err := g.recorder.Close(); err != nil {
			log.Warn().Err(err).Uint16("game_id", g.ID).Msg("write game log")
		}
		g.recorder = nil
	}
	g.cond.Broadcast()
	log.Info().Uint16("game_id", g.ID).Msg("game closed")
	return ids, nil
}

// DroppedPacket desyncs a player whose inbound message numbers skipped ahead
// while the game was in sync.
func (g *Game) DroppedPacket(userID uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.synced {
		return
	}
	p := g.playerLocked(userID)
	if p == nil {
		return
	}
	q := g.queueLocked(p)
	if q == nil || !q.Synced() {
		return
	}
	q.MarkDesynced()
	log.Info().Uint16("user_id", userID).Uint16("game_id", g.ID).Msg("player desynced: dropped a packet")
	g.toAllLocked(PlayerDesynced{GameID: g.ID, UserID: p.UserID, Name: p.Name, Message: p.Name + " desynced: dropped a packet!"})
	if g.syncedCountLocked() < 2 {
		g.desyncAllLocked("less than 2 players synced")
	}
	g.cond.Broadcast()
}

// Announce sends an info line to one player, or to everyone when to is zero.
func (g *Game) Announce(message string, to uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev := GameInfo{GameID: g.ID, Message: message}
	if to != 0 {
		g.hub.Deliver(to, ev)
		return
	}
	g.toAllLocked(ev)
}

func (g *Game) Chat(userID uint16, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerLocked(userID)
	if p == nil {
		return actionErr(ErrNotInGame, "Game chat failed: not in game.")
	}
	if p.muted {
		g.hub.Deliver(p.UserID, GameInfo{GameID: g.ID, Message: "You are currently muted!"})
		return nil
	}
	g.toAllLocked(GameChat{GameID: g.ID, UserID: p.UserID, Name: p.Name, Message: message})
	return nil
}

// Mute silences the target's game chat, or lifts it. The target's address is
// remembered so rejoining does not clear a mute.
func (g *Game) Mute(requesterID uint16, access AccessLevel, targetID uint16, mute bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if access < AccessAdmin && requesterID != g.OwnerID {
		return actionErr(ErrNotGameOwner, "You are not the owner of this game.")
	}
	p := g.playerLocked(targetID)
	if p == nil {
		return actionErr(ErrNotInGame, "Mute failed: player not in game.")
	}
	if mute && p.Access >= AccessAdmin && access < AccessSuperAdmin {
		return actionErr(ErrInvalidState, "You cannot mute an admin.")
	}
	p.muted = mute
	g.mutedAddrs = slices.DeleteFunc(g.mutedAddrs, func(a string) bool { return a == p.Address })
	msg := p.Name + " has been unmuted."
	if mute {
		g.mutedAddrs = append(g.mutedAddrs, p.Address)
		msg = p.Name + " has been muted."
	}
	log.Info().Uint16("user_id", targetID).Uint16("game_id", g.ID).Bool("muted", mute).Msg("game mute changed")
	g.toAllLocked(GameInfo{GameID: g.ID, Message: msg})
	return nil
}

// Muted reports whether the player's game chat is silenced.
func (g *Game) Muted(userID uint16) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerLocked(userID)
	return p != nil && p.muted
}

// IgnoringActivity reports whether the player is hiding lobby activity while
// playing. It does not take the game lock.
func (g *Game) IgnoringActivity(userID uint16) bool {
	_, ok := g.ignoring.Load(userID)
	return ok
}

func (g *Game) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// UpdateSettings replaces the game's settings. A change of MaxUsers is
// broadcast since it shows in the game list.
func (g *Game) UpdateSettings(s Settings) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.AllowedEmulator == "" {
		s.AllowedEmulator = "any"
	}
	maxChanged := s.MaxUsers != g.settings.MaxUsers
	g.settings = s
	if maxChanged {
		g.hub.Broadcast(GameStatusChanged{Game: g.snapshotLocked(false)})
	}
}

// ResetLag clears game and per-player lag history.
func (g *Game) ResetLag() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.opts.Now()
	g.lag.Reset(now)
	g.lastLagReset = now
	for _, p := range g.players {
		p.lag.Reset(now)
	}
}

func (g *Game) Snapshot(withPlayers bool) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(withPlayers)
}

func (g *Game) snapshotLocked(withPlayers bool) Snapshot {
	s := Snapshot{
		ID:         g.ID,
		RomName:    g.RomName,
		ClientType: g.ClientType,
		OwnerID:    g.OwnerID,
		OwnerName:  g.ownerName,
		Status:     g.status,
		MaxUsers:   g.settings.MaxUsers,
		Synced:     g.synced,
		FrameDelay: g.highestFrameDelay,
		LagMS:      float64(g.lag.Lag()) / float64(time.Millisecond),
		Settings:   g.settings,
	}
	for _, p := range g.players {
		if !p.Stealth {
			s.NumPlayers++
		}
	}
	if withPlayers {
		s.Players = g.playerInfosLocked(true)
	}
	return s
}

func (g *Game) playerInfosLocked(includeStealth bool) []PlayerInfo {
	out := make([]PlayerInfo, 0, len(g.players))
	for _, p := range g.players {
		if p.Stealth && !includeStealth {
			continue
		}
		out = append(out, p.info())
	}
	return out
}

// PlayerUserIDs lists the members in player order.
func (g *Game) PlayerUserIDs() []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]uint16, 0, len(g.players))
	for _, p := range g.players {
		ids = append(ids, p.UserID)
	}
	return ids
}

// PlayerStatus reports a member's status, and false if the user is not in the game.
func (g *Game) PlayerStatus(userID uint16) (v086.UserStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.playerLocked(userID); p != nil {
		return p.Status, true
	}
	return 0, false
}

func (g *Game) playerLocked(userID uint16) *Player {
	for _, p := range g.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// queueLocked returns the player's ActionQueue, or nil when the player has
// none in the current run.
func (g *Game) queueLocked(p *Player) *ActionQueue {
	if p.queue < 0 || p.queue >= len(g.queues) {
		return nil
	}
	return g.queues[p.queue]
}

func (g *Game) playerByNumberLocked(n int) *Player {
	for _, p := range g.players {
		if p.Number == n {
			return p
		}
	}
	return nil
}

func (g *Game) wasKickedLocked(addr string) bool {
	for _, a := range g.kicked {
		if a == addr {
			return true
		}
	}
	return false
}

func (g *Game) syncedCountLocked() int {
	n := 0
	for _, q := range g.queues {
		if q.Synced() {
			n++
		}
	}
	return n
}

func (g *Game) playingCountLocked() int {
	n := 0
	for _, p := range g.players {
		if p.Status == v086.UserPlaying {
			n++
		}
	}
	return n
}

func (g *Game) desyncAllLocked(reason string) {
	g.synced = false
	for _, q := range g.queues {
		q.MarkDesynced()
	}
	log.Info().Uint16("game_id", g.ID).Str("reason", reason).Msg("game desynced")
	g.cond.Broadcast()
}

func (g *Game) toAllLocked(ev Event) {
	for _, p := range g.players {
		g.hub.Deliver(p.UserID, ev)
	}
}
