package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaillera-relay/internal/game"
	relay "kaillera-relay/internal/server"
)

const (
	defaultRecordLimit = 50
	maxRecordLimit     = 500
)

func (s *Server) registerGameTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_games",
			mcp.WithDescription("List open games"),
		),
		s.handleListGames,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_game",
			mcp.WithDescription("Get one game with players, frame delays and lag"),
			mcp.WithNumber("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleGetGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"game_announce",
			mcp.WithDescription("Send a server line to the players of one game"),
			mcp.WithNumber("game_id", mcp.Required(), mcp.Description("Game id")),
			mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		),
		s.handleGameAnnounce,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"reset_game_lag",
			mcp.WithDescription("Reset the lag statistics of one game"),
			mcp.WithNumber("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleResetGameLag,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"mute_player",
			mcp.WithDescription("Mute or unmute a player's game chat"),
			mcp.WithNumber("game_id", mcp.Required(), mcp.Description("Game id")),
			mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Player user id")),
			mcp.WithBoolean("muted", mcp.Description("False lifts the mute, default true")),
		),
		s.handleMutePlayer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_game_records",
			mcp.WithDescription("List recently started games kept in the database"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 500")),
		),
		s.handleListGameRecords,
	)
}

func (s *Server) lookupGame(request mcp.CallToolRequest) (*game.Game, *mcp.CallToolResult) {
	id, err := request.RequireInt("game_id")
	if err != nil {
		return nil, toolError(codeInvalidRequest, err.Error())
	}
	if id <= 0 || id > 0xFFFF {
		return nil, toolError(codeInvalidRequest, "game_id out of range")
	}
	g, ok := s.relay.Game(uint16(id))
	if !ok {
		return nil, mapDomainError(relay.ErrGameNotFound)
	}
	return g, nil
}

func (s *Server) handleListGames(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	games := s.relay.Games(false)
	return toolResult(map[string]any{"count": len(games), "games": games}), nil
}

func (s *Server) handleGetGame(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResp := s.lookupGame(request)
	if errResp != nil {
		return errResp, nil
	}
	return toolResult(g.Snapshot(true)), nil
}

func (s *Server) handleGameAnnounce(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResp := s.lookupGame(request)
	if errResp != nil {
		return errResp, nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return toolError(codeInvalidRequest, err.Error()), nil
	}
	if message = strings.TrimSpace(message); message == "" {
		return toolError(codeInvalidRequest, "message is empty"), nil
	}
	g.Announce(message, 0)
	return toolResult(map[string]any{"ok": true, "game_id": g.ID}), nil
}

func (s *Server) handleResetGameLag(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResp := s.lookupGame(request)
	if errResp != nil {
		return errResp, nil
	}
	g.ResetLag()
	return toolResult(map[string]any{"ok": true, "game_id": g.ID}), nil
}

func (s *Server) handleMutePlayer(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResp := s.lookupGame(request)
	if errResp != nil {
		return errResp, nil
	}
	userID, err := request.RequireInt("user_id")
	if err != nil {
		return toolError(codeInvalidRequest, err.Error()), nil
	}
	if userID <= 0 || userID > 0xFFFF {
		return toolError(codeInvalidRequest, "user_id out of range"), nil
	}
	muted := request.GetBool("muted", true)
	if err := g.Mute(0, game.AccessAdmin, uint16(userID), muted); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "game_id": g.ID, "user_id": userID, "muted": muted}), nil
}

func (s *Server) handleListGameRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.records == nil {
		return toolError(codeUnavailable, "no database configured"), nil
	}
	limit := request.GetInt("limit", defaultRecordLimit)
	if limit <= 0 {
		limit = defaultRecordLimit
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}
	records, err := s.records.ListGameRecords(ctx, limit)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"count": len(records), "records": records}), nil
}
