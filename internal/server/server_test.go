package server

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []game.Event
}

func (s *recordingSink) PostEvent(ev game.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventName())
	}
	return out
}

func (s *recordingSink) count(name string) int {
	n := 0
	for _, got := range s.names() {
		if got == name {
			n++
		}
	}
	return n
}

func testConfig() config.RelayConfig {
	return config.RelayConfig{
		MaxPingMS:              1000,
		MaxUsers:               100,
		MaxGames:               50,
		GameBufferSize:         4096,
		AllowSinglePlayer:      true,
		AllowedConnectionTypes: []int{1, 2, 3, 4, 5, 6},
		KeepAliveTimeout:       190 * time.Second,
		IdleTimeout:            time.Hour,
		ChatFloodTime:          2 * time.Second,
		CreateGameFloodTime:    5 * time.Second,
		MaxUserNameLength:      31,
		MaxClientNameLength:    127,
		MaxChatLength:          150,
		MaxGameNameLength:      127,
		MaxQuitMessageLength:   100,
		LagstatWindow:          time.Minute,
	}
}

func newTestServer(t *testing.T, mutate func(*config.RelayConfig)) (*Server, *fakeClock) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return New(cfg, Deps{Now: clock.Now}), clock
}

func connectUser(t *testing.T, s *Server, addr, name string) (*User, *recordingSink) {
	t.Helper()
	u, err := s.Connect(netip.MustParseAddrPort(addr), v086.ProtocolVersion)
	if err != nil {
		t.Fatalf("connect %s: %v", addr, err)
	}
	u.SetInformation(name, "MAME32k 0.64", v086.ConnectionGood)
	u.SetPing(50 * time.Millisecond)
	sink := &recordingSink{}
	s.Attach(u.ID, sink)
	return u, sink
}

func loginUser(t *testing.T, s *Server, addr, name string) (*User, *recordingSink) {
	t.Helper()
	u, sink := connectUser(t, s, addr, name)
	if err := s.Login(u); err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	return u, sink
}

func TestNextIDWraps(t *testing.T) {
	var c atomic.Uint32
	c.Store(0xFFFE)
	if got := nextID(&c); got != 0xFFFF {
		t.Fatalf("id = %d, want 65535", got)
	}
	if got := nextID(&c); got != 1 {
		t.Fatalf("id after wrap = %d, want 1", got)
	}
}

func TestConnectServerFull(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.RelayConfig) {
		c.MaxUsers = 1
		c.AdminAddrs = []string{"10.0.0.9"}
	})
	connectUser(t, s, "10.0.0.1:5000", "a")
	_, err := s.Connect(netip.MustParseAddrPort("10.0.0.2:5000"), v086.ProtocolVersion)
	if !errors.Is(err, ErrServerFull) {
		t.Fatalf("err = %v, want ErrServerFull", err)
	}
	if _, err := s.Connect(netip.MustParseAddrPort("10.0.0.9:5000"), v086.ProtocolVersion); err != nil {
		t.Fatalf("admin connect on full server: %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	cases := []struct {
		name   string
		user   string
		client string
		ct     v086.ConnectionType
		ping   time.Duration
		want   error
	}{
		{"empty name", "  ", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"reserved name", "Server", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"pipe in name", "a|b", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"url in name", "www.example", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"control in name", "bad\x01", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"long name", "abcdefghijklmnopqrstuvwxyz0123456789", "emu", v086.ConnectionGood, 0, ErrUserName},
		{"pipe in client", "ok", "emu|x", v086.ConnectionGood, 0, ErrUserName},
		{"ping too high", "ok", "emu", v086.ConnectionGood, 2 * time.Second, ErrPingTooHigh},
		{"negative ping", "ok", "emu", v086.ConnectionGood, -time.Millisecond, ErrPingTooHigh},
		{"connection type", "ok", "emu", v086.ConnectionDisabled, 0, ErrLoginDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil)
			u, _ := connectUser(t, s, "10.0.0.1:5000", tc.user)
			u.SetInformation(tc.user, tc.client, tc.ct)
			u.SetPing(tc.ping)
			err := s.Login(u)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if _, ok := s.User(u.ID); ok {
				t.Fatalf("rejected user still registered")
			}
		})
	}
}

func TestLoginBanned(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.RelayConfig) { c.BannedAddrs = []string{"10.0.0.*"} })
	u, _ := connectUser(t, s, "10.0.0.1:5000", "alice")
	if err := s.Login(u); !errors.Is(err, ErrLoginDenied) {
		t.Fatalf("err = %v, want ErrLoginDenied", err)
	}
}

func TestLoginAnnouncesUser(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.RelayConfig) { c.LoginMessages = []string{"welcome", "be nice"} })
	_, bobSink := loginUser(t, s, "10.0.0.2:5000", "bob")
	alice, aliceSink := loginUser(t, s, "10.0.0.1:5000", "alice")

	names := aliceSink.names()
	want := []string{"connected", "info_message", "info_message", "user_joined"}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
	conn := aliceSink.events[0].(Connected)
	if len(conn.Users) != 2 || conn.UserID != alice.ID {
		t.Fatalf("connected = %+v, want 2 users", conn)
	}
	if bobSink.count("user_joined") != 2 {
		t.Fatalf("bob user_joined = %d, want 2", bobSink.count("user_joined"))
	}
	if err := s.Login(alice); !errors.Is(err, ErrLoginDenied) {
		t.Fatalf("second login err = %v, want ErrLoginDenied", err)
	}
}

func TestLoginDuplicateNames(t *testing.T) {
	s, _ := newTestServer(t, nil)
	old, oldSink := loginUser(t, s, "10.0.0.1:5000", "alice")

	other, _ := connectUser(t, s, "10.0.0.2:5000", " ALICE")
	if err := s.Login(other); !errors.Is(err, ErrAddressConflict) {
		t.Fatalf("duplicate name err = %v, want ErrAddressConflict", err)
	}

	sameAddr, _ := connectUser(t, s, "10.0.0.1:6000", "carol")
	if err := s.Login(sameAddr); !errors.Is(err, ErrAddressConflict) {
		t.Fatalf("second name on address err = %v, want ErrAddressConflict", err)
	}

	reconnect, _ := connectUser(t, s, "10.0.0.1:7000", "alice")
	if err := s.Login(reconnect); err != nil {
		t.Fatalf("reconnect login: %v", err)
	}
	if old.LoggedIn() {
		t.Fatalf("old session still logged in after reconnect")
	}
	if oldSink.count("user_quit") != 1 {
		t.Fatalf("old user_quit = %d, want 1", oldSink.count("user_quit"))
	}
}

func TestQuitReplacesBlankMessage(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u, sink := loginUser(t, s, "10.0.0.1:5000", "alice")
	if err := s.Quit(u, "   "); err != nil {
		t.Fatalf("quit: %v", err)
	}
	last := sink.events[len(sink.events)-1].(UserQuit)
	if last.Message != StandardQuitMessage {
		t.Fatalf("message = %q, want %q", last.Message, StandardQuitMessage)
	}
	if s.UserCount() != 0 {
		t.Fatalf("user count = %d, want 0", s.UserCount())
	}
	if err := s.Quit(u, "again"); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("second quit err = %v, want ErrNotLoggedIn", err)
	}
}

func TestChatRules(t *testing.T) {
	s, clock := newTestServer(t, func(c *config.RelayConfig) { c.SilencedAddrs = []string{"10.0.0.9"} })
	u, sink := loginUser(t, s, "10.0.0.1:5000", "alice")
	if err := s.Chat(u, "  hi  "); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := s.Chat(u, "again"); !errors.Is(err, ErrFlood) {
		t.Fatalf("flood err = %v, want ErrFlood", err)
	}
	clock.Advance(3 * time.Second)
	if err := s.Chat(u, "bad\x02"); !errors.Is(err, ErrChatDenied) {
		t.Fatalf("control err = %v, want ErrChatDenied", err)
	}
	if err := s.Chat(u, "   "); err != nil {
		t.Fatalf("blank chat: %v", err)
	}
	var got Chat
	for _, ev := range sink.events {
		if c, ok := ev.(Chat); ok {
			got = c
		}
	}
	if got.Message != "hi" {
		t.Fatalf("chat message = %q, want %q", got.Message, "hi")
	}

	quiet, _ := loginUser(t, s, "10.0.0.9:5000", "quiet")
	if err := s.Chat(quiet, "hello"); !errors.Is(err, ErrSilenced) {
		t.Fatalf("silenced err = %v, want ErrSilenced", err)
	}
}

func TestCreateGameChecks(t *testing.T) {
	s, clock := newTestServer(t, func(c *config.RelayConfig) { c.MaxGames = 1 })
	u, _ := loginUser(t, s, "10.0.0.1:5000", "alice")
	if _, err := s.CreateGame(u, "rom|x"); !errors.Is(err, ErrCreateGameDenied) {
		t.Fatalf("pipe err = %v, want ErrCreateGameDenied", err)
	}
	if _, err := s.CreateGame(u, "  "); !errors.Is(err, ErrCreateGameDenied) {
		t.Fatalf("empty err = %v, want ErrCreateGameDenied", err)
	}
	g, err := s.CreateGame(u, "Street Fighter II")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.GameID() != g.ID {
		t.Fatalf("owner game = %d, want %d", u.GameID(), g.ID)
	}
	if _, err := s.CreateGame(u, "another"); !errors.Is(err, ErrCreateGameDenied) {
		t.Fatalf("already in game err = %v, want ErrCreateGameDenied", err)
	}

	other, _ := loginUser(t, s, "10.0.0.2:5000", "bob")
	if _, err := s.CreateGame(other, "another"); !errors.Is(err, ErrCreateGameDenied) {
		t.Fatalf("max games err = %v, want ErrCreateGameDenied", err)
	}
	if err := s.QuitGame(u); err != nil {
		t.Fatalf("quit game: %v", err)
	}
	if _, err := s.CreateGame(u, "third"); !errors.Is(err, ErrFlood) {
		t.Fatalf("flood err = %v, want ErrFlood", err)
	}
	clock.Advance(6 * time.Second)
	if _, err := s.CreateGame(u, "third"); err != nil {
		t.Fatalf("create after flood window: %v", err)
	}
}

func TestOwnerQuitClosesGame(t *testing.T) {
	s, _ := newTestServer(t, nil)
	owner, _ := loginUser(t, s, "10.0.0.1:5000", "alice")
	member, memberSink := loginUser(t, s, "10.0.0.2:5000", "bob")
	g, err := s.CreateGame(owner, "rom")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.JoinGame(member, g.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := s.UserInfo(member).GameID; got != g.ID {
		t.Fatalf("member game = %d, want %d", got, g.ID)
	}
	if err := s.QuitGame(owner); err != nil {
		t.Fatalf("owner quit: %v", err)
	}
	if _, ok := s.Game(g.ID); ok {
		t.Fatalf("game still registered after owner quit")
	}
	if member.GameID() != 0 {
		t.Fatalf("member game = %d, want 0", member.GameID())
	}
	if memberSink.count("game_closed") != 1 {
		t.Fatalf("game_closed = %d, want 1", memberSink.count("game_closed"))
	}
	if err := s.JoinGame(member, g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("join closed err = %v, want ErrGameNotFound", err)
	}
}

func TestJoinAnotherGameLeavesFirst(t *testing.T) {
	s, clock := newTestServer(t, nil)
	a, _ := loginUser(t, s, "10.0.0.1:5000", "alice")
	b, _ := loginUser(t, s, "10.0.0.2:5000", "bob")
	c, _ := loginUser(t, s, "10.0.0.3:5000", "carol")
	g1, _ := s.CreateGame(a, "one")
	clock.Advance(10 * time.Second)
	g2, _ := s.CreateGame(b, "two")
	if err := s.JoinGame(c, g1.ID); err != nil {
		t.Fatalf("join one: %v", err)
	}
	if err := s.JoinGame(c, g2.ID); err != nil {
		t.Fatalf("join two: %v", err)
	}
	if ids := g1.PlayerUserIDs(); len(ids) != 1 {
		t.Fatalf("game one players = %v, want owner only", ids)
	}
	if c.GameID() != g2.ID {
		t.Fatalf("carol game = %d, want %d", c.GameID(), g2.ID)
	}
}

func TestKickRemovesTarget(t *testing.T) {
	s, _ := newTestServer(t, nil)
	owner, _ := loginUser(t, s, "10.0.0.1:5000", "alice")
	member, _ := loginUser(t, s, "10.0.0.2:5000", "bob")
	g, _ := s.CreateGame(owner, "rom")
	if err := s.JoinGame(member, g.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Kick(member, owner.ID); !errors.Is(err, game.ErrNotGameOwner) {
		t.Fatalf("member kick err = %v, want ErrNotGameOwner", err)
	}
	if err := s.Kick(owner, member.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if member.GameID() != 0 {
		t.Fatalf("kicked member still in game %d", member.GameID())
	}
	if err := s.JoinGame(member, g.ID); !errors.Is(err, game.ErrPreviouslyKicked) {
		t.Fatalf("rejoin err = %v, want ErrPreviouslyKicked", err)
	}
}

func TestBusyGameHidesLobbyActivity(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.RelayConfig) { c.BusyUserCount = 2 })
	owner, ownerSink := loginUser(t, s, "10.0.0.1:5000", "alice")
	member, _ := loginUser(t, s, "10.0.0.2:5000", "bob")
	idle, idleSink := loginUser(t, s, "10.0.0.3:5000", "carol")
	g, err := s.CreateGame(owner, "rom")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.JoinGame(member, g.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.StartGame(owner); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !g.IgnoringActivity(owner.ID) || g.IgnoringActivity(idle.ID) {
		t.Fatalf("ignoring owner/idle = %v/%v, want true/false", g.IgnoringActivity(owner.ID), g.IgnoringActivity(idle.ID))
	}

	before := ownerSink.count("chat")
	if err := s.Chat(idle, "anyone?"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := ownerSink.count("chat"); got != before {
		t.Fatalf("playing owner chats = %d, want %d", got, before)
	}
	if idleSink.count("chat") != 1 {
		t.Fatalf("idle user chats = %d, want 1", idleSink.count("chat"))
	}
	s.Announce("restart soon")
	if ownerSink.count("announcement") != 1 {
		t.Fatalf("announcements = %d, want 1", ownerSink.count("announcement"))
	}

	if err := s.QuitGame(owner); err != nil {
		t.Fatalf("owner quit: %v", err)
	}
	if g.IgnoringActivity(owner.ID) || g.IgnoringActivity(member.ID) {
		t.Fatalf("closed game still hides activity")
	}
}

type fullSink struct{}

func (fullSink) PostEvent(game.Event) bool { return false }

func TestDroppedGameDataDesyncsPlayer(t *testing.T) {
	s, _ := newTestServer(t, nil)
	owner, ownerSink := loginUser(t, s, "10.0.0.1:5000", "alice")
	bob, _ := loginUser(t, s, "10.0.0.2:5000", "bob")
	carol, _ := loginUser(t, s, "10.0.0.3:5000", "carol")
	g, err := s.CreateGame(owner, "rom")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, u := range []*User{bob, carol} {
		if err := s.JoinGame(u, g.ID); err != nil {
			t.Fatalf("join %s: %v", u.Name(), err)
		}
	}
	if err := s.StartGame(owner); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, u := range []*User{owner, bob, carol} {
		if err := s.Ready(u); err != nil {
			t.Fatalf("ready %s: %v", u.Name(), err)
		}
	}

	before := metricGameDataDropped.Value()
	s.Attach(carol.ID, fullSink{})
	s.Deliver(carol.ID, game.GameData{GameID: g.ID, Data: []byte{1, 2}})
	if got := metricGameDataDropped.Value() - before; got != 1 {
		t.Fatalf("dropped game data = %d, want 1", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ownerSink.count("player_desynced") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("owner never saw carol desync: %v", ownerSink.names())
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Deliver(carol.ID, game.GameChat{GameID: g.ID, Name: "alice", Message: "hi"})
	if got := metricGameDataDropped.Value() - before; got != 1 {
		t.Fatalf("dropped game data after chat = %d, want 1", got)
	}
}

func TestSweepForcesTimedOutUsers(t *testing.T) {
	s, clock := newTestServer(t, func(c *config.RelayConfig) {
		c.KeepAliveTimeout = 10 * time.Second
		c.IdleTimeout = 0
	})
	u, sink := loginUser(t, s, "10.0.0.1:5000", "alice")
	pending, pendingSink := connectUser(t, s, "10.0.0.2:5000", "bob")

	clock.Advance(5 * time.Second)
	s.KeepAlive(u)
	clock.Advance(8 * time.Second)
	s.sweep(clock.Now())
	if sink.count("forced_quit") != 0 {
		t.Fatalf("forced quit after keepalive")
	}
	clock.Advance(3 * time.Second)
	s.sweep(clock.Now())
	if sink.count("forced_quit") != 1 {
		t.Fatalf("forced_quit = %d, want 1", sink.count("forced_quit"))
	}
	if pendingSink.count("forced_quit") != 1 {
		t.Fatalf("pending forced_quit = %d, want 1 after connect timeout", pendingSink.count("forced_quit"))
	}

	s.Detach(pending.ID)
	s.sweep(clock.Now())
	if _, ok := s.User(pending.ID); ok {
		t.Fatalf("pending user not removed without a session")
	}
}

func TestFeedMirrorsBroadcasts(t *testing.T) {
	feed := eventfeed.New(10)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(testConfig(), Deps{Now: clock.Now, Feed: feed})
	u, _ := loginUser(t, s, "10.0.0.1:5000", "alice")
	if err := s.Chat(u, "hello"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	g, err := s.CreateGame(u, "rom")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	counts := map[string]int{}
	var createdGame uint16
	for _, rec := range feed.ReplayAfter("") {
		counts[rec.Event]++
		if rec.Event == "game_created" {
			createdGame = rec.GameID
		}
	}
	if counts["user_joined"] != 1 || counts["chat"] != 1 || counts["player_joined"] != 1 {
		t.Fatalf("feed counts = %v", counts)
	}
	if createdGame != g.ID {
		t.Fatalf("game_created game id = %d, want %d", createdGame, g.ID)
	}
	if counts["connected"] != 0 {
		t.Fatalf("per-user connected event mirrored")
	}
}
