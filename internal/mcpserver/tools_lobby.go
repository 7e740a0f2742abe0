package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultDisconnectMessage = "Disconnected by server"

func (s *Server) registerLobbyTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_users",
			mcp.WithDescription("List logged-in users with ping, status and game"),
		),
		s.handleListUsers,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"announce",
			mcp.WithDescription("Send a server message to every logged-in user"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		),
		s.handleAnnounce,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"disconnect_user",
			mcp.WithDescription("Force a user to quit the server"),
			mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User id")),
			mcp.WithString("message", mcp.Description("Quit message shown to other users")),
		),
		s.handleDisconnectUser,
	)
}

func (s *Server) handleListUsers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users := s.relay.Users()
	return toolResult(map[string]any{"count": len(users), "users": users}), nil
}

func (s *Server) handleAnnounce(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return toolError(codeInvalidRequest, err.Error()), nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return toolError(codeInvalidRequest, "message is empty"), nil
	}
	s.relay.Announce(message)
	return toolResult(map[string]any{"ok": true, "recipients": s.relay.UserCount()}), nil
}

func (s *Server) handleDisconnectUser(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("user_id")
	if err != nil {
		return toolError(codeInvalidRequest, err.Error()), nil
	}
	if id <= 0 || id > 0xFFFF {
		return toolError(codeInvalidRequest, "user_id out of range"), nil
	}
	message := request.GetString("message", defaultDisconnectMessage)
	if err := s.relay.Disconnect(uint16(id), message); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "user_id": id}), nil
}
