package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/netip"
	"sort"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/eventfeed"
	relay "kaillera-relay/internal/server"
	"kaillera-relay/internal/store"
	"kaillera-relay/internal/v086"
)

type fakeRecords struct{ records []store.GameRecord }

func (f fakeRecords) ListGameRecords(_ context.Context, limit int) ([]store.GameRecord, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newRelay(t *testing.T) (*relay.Server, *eventfeed.Feed, uint16) {
	t.Helper()
	cfg := config.RelayConfig{
		ServerName:             "test-relay",
		MaxPingMS:              1000,
		MaxUsers:               10,
		MaxGames:               10,
		GameBufferSize:         4096,
		AllowSinglePlayer:      true,
		AllowedConnectionTypes: []int{1, 2, 3, 4, 5, 6},
		MaxUserNameLength:      31,
		MaxGameNameLength:      127,
	}
	feed := eventfeed.New(50)
	srv := relay.New(cfg, relay.Deps{Feed: feed})
	u, err := srv.Connect(netip.MustParseAddrPort("10.0.0.1:5000"), v086.ProtocolVersion)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	u.SetInformation("alice", "MAME32k 0.64", v086.ConnectionGood)
	u.SetPing(20 * time.Millisecond)
	if err := srv.Login(u); err != nil {
		t.Fatalf("login: %v", err)
	}
	g, err := srv.CreateGame(u, "Street Fighter II")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return srv, feed, g.ID
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	errObj, _ := mapFromStructured(t, res)["error"].(map[string]any)
	if got, _ := errObj["code"].(string); got != want {
		t.Fatalf("error code = %q, want %q", got, want)
	}
}

func TestMCPTools(t *testing.T) {
	srv, feed, gameID := newRelay(t)
	httpSrv := httptest.NewServer(New(srv, fakeRecords{records: []store.GameRecord{{ID: "r1", RomName: "Street Fighter II"}}}, "test").Handler())
	defer httpSrv.Close()
	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"announce", "disconnect_user", "game_announce", "get_game", "list_game_records", "list_games", "list_users", "mute_player", "reset_game_lag"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("tools = %v, want %v", names, want)
		}
	}

	users := mapFromStructured(t, mustCallTool(t, c, "list_users", nil))
	if users["count"] != float64(1) {
		t.Fatalf("list_users = %v", users)
	}

	g := mapFromStructured(t, mustCallTool(t, c, "get_game", map[string]any{"game_id": gameID}))
	if g["rom_name"] != "Street Fighter II" {
		t.Fatalf("get_game = %v", g)
	}
	assertToolErrorCode(t, mustCallTool(t, c, "get_game", map[string]any{"game_id": 999}), "not_found")
	assertToolErrorCode(t, mustCallTool(t, c, "get_game", map[string]any{}), "invalid_request")

	if res := mustCallTool(t, c, "reset_game_lag", map[string]any{"game_id": gameID}); res.IsError {
		t.Fatalf("reset_game_lag: %v", res.StructuredContent)
	}
	records := mapFromStructured(t, mustCallTool(t, c, "list_game_records", map[string]any{"limit": 10}))
	if records["count"] != float64(1) {
		t.Fatalf("list_game_records = %v", records)
	}

	if res := mustCallTool(t, c, "announce", map[string]any{"message": "maintenance at noon"}); res.IsError {
		t.Fatalf("announce: %v", res.StructuredContent)
	}
	var announced bool
	for _, rec := range feed.ReplayAfter("") {
		if rec.Event == "announcement" {
			announced = true
		}
	}
	if !announced {
		t.Fatalf("announce did not reach the event feed")
	}
	assertToolErrorCode(t, mustCallTool(t, c, "announce", map[string]any{"message": "  "}), "invalid_request")

	if res := mustCallTool(t, c, "mute_player", map[string]any{"game_id": gameID, "user_id": 1}); res.IsError {
		t.Fatalf("mute_player: %v", res.StructuredContent)
	}
	if relayGame, _ := srv.Game(gameID); !relayGame.Muted(1) {
		t.Fatalf("player 1 not muted")
	}
	if res := mustCallTool(t, c, "mute_player", map[string]any{"game_id": gameID, "user_id": 1, "muted": false}); res.IsError {
		t.Fatalf("unmute: %v", res.StructuredContent)
	}
	if relayGame, _ := srv.Game(gameID); relayGame.Muted(1) {
		t.Fatalf("player 1 still muted")
	}
	assertToolErrorCode(t, mustCallTool(t, c, "mute_player", map[string]any{"game_id": gameID, "user_id": 4000}), "invalid_state")

	assertToolErrorCode(t, mustCallTool(t, c, "disconnect_user", map[string]any{"user_id": 4000}), "not_found")
	if res := mustCallTool(t, c, "disconnect_user", map[string]any{"user_id": 1}); res.IsError {
		t.Fatalf("disconnect_user: %v", res.StructuredContent)
	}
	if srv.UserCount() != 0 {
		t.Fatalf("UserCount = %d, want 0", srv.UserCount())
	}
}

func TestGameRecordsWithoutStore(t *testing.T) {
	srv, _, _ := newRelay(t)
	httpSrv := httptest.NewServer(New(srv, nil, "test").Handler())
	defer httpSrv.Close()
	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	assertToolErrorCode(t, mustCallTool(t, c, "list_game_records", nil), "unavailable")
}

func TestParseGameURI(t *testing.T) {
	if id, err := parseGameURI("game://12/state"); err != nil || id != 12 {
		t.Fatalf("parseGameURI = %d, %v; want 12", id, err)
	}
	for _, bad := range []string{"game://0/state", "game://x/state", "room://1/state", "game://1/info", "game://70000/state"} {
		if _, err := parseGameURI(bad); err == nil {
			t.Fatalf("parseGameURI(%q): want error", bad)
		}
	}
}
