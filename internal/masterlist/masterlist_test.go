package masterlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

type fakeLobby struct {
	users int
	games []game.Snapshot
}

func (f fakeLobby) UserCount() int             { return f.users }
func (f fakeLobby) Games(bool) []game.Snapshot { return f.games }

type captured struct {
	query  url.Values
	header http.Header
}

func capture(t *testing.T) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case ch <- captured{query: r.URL.Query(), header: r.Header.Clone()}:
		default:
		}
	}))
	t.Cleanup(ts.Close)
	return ts, ch
}

func testLobby() fakeLobby {
	return fakeLobby{
		users: 3,
		games: []game.Snapshot{
			{ID: 1, RomName: "Street Fighter II", OwnerName: "alice", ClientType: "MAME32k 0.64", Status: v086.GameWaiting, NumPlayers: 1, MaxUsers: 4},
			{ID: 2, RomName: "Metal Slug", OwnerName: "bob", ClientType: "MAME32k 0.64", Status: v086.GamePlaying, NumPlayers: 2, MaxUsers: 2},
		},
	}
}

func TestNewUpdaterDisabled(t *testing.T) {
	if u := NewUpdater(config.RelayConfig{}, Info{}, testLobby(), nil); u != nil {
		t.Fatalf("updater = %v, want nil when no master is enabled", u)
	}
}

func TestTouchKaillera(t *testing.T) {
	ts, ch := capture(t)
	cfg := config.RelayConfig{TouchKaillera: true, KailleraMasterURL: ts.URL, MaxUsers: 20}
	info := InfoFromRelay(cfg, 27888, "v1")
	info.Name = "Relay"
	info.Location = "Berlin"
	started := &StartedGames{}
	started.MarkGameAsStarted(game.Snapshot{RomName: "Metal Slug"})

	u := NewUpdater(cfg, info, testLobby(), started)
	u.Touch(context.Background())

	got := <-ch
	checks := map[string]string{
		"servername": "Relay",
		"port":       "27888",
		"nbusers":    "3",
		"maxconn":    "20",
		"version":    "elk",
		"nbgames":    "2",
		"location":   "Berlin",
	}
	for k, want := range checks {
		if v := got.query.Get(k); v != want {
			t.Fatalf("%s = %q, want %q", k, v, want)
		}
	}
	if v := got.header.Get("Kaillera-games"); v != "Metal Slug|" {
		t.Fatalf("Kaillera-games = %q", v)
	}
	if v := got.header.Get("Kaillera-wgames"); v != "1|Street Fighter II|alice|MAME32k 0.64|1|" {
		t.Fatalf("Kaillera-wgames = %q", v)
	}

	u.Touch(context.Background())
	if v := (<-ch).header.Get("Kaillera-games"); v != "" {
		t.Fatalf("started games after drain = %q, want empty", v)
	}
}

func TestTouchEmulinker(t *testing.T) {
	ts, ch := capture(t)
	cfg := config.RelayConfig{TouchEmulinker: true, EmulinkerMasterURL: ts.URL, MaxUsers: 20, MaxGames: 5}
	u := NewUpdater(cfg, InfoFromRelay(cfg, 27888, "v1"), testLobby(), nil)
	u.Touch(context.Background())

	got := <-ch
	if v := got.query.Get("numUsers"); v != "3" {
		t.Fatalf("numUsers = %q, want 3", v)
	}
	if v := got.query.Get("maxGames"); v != "5" {
		t.Fatalf("maxGames = %q, want 5", v)
	}
	if v := got.query.Get("version"); v != "v1" {
		t.Fatalf("version = %q, want v1", v)
	}
	if v := got.header.Get("Waiting-games"); v != "Street Fighter II|alice|MAME32k 0.64|1/4|" {
		t.Fatalf("Waiting-games = %q", v)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ts, ch := capture(t)
	cfg := config.RelayConfig{TouchEmulinker: true, EmulinkerMasterURL: ts.URL, MasterInterval: 10 * time.Millisecond}
	u := NewUpdater(cfg, Info{}, testLobby(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("no touch within a second")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
