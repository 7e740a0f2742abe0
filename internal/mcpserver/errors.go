package mcpserver

import (
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"kaillera-relay/internal/game"
	relay "kaillera-relay/internal/server"
	"kaillera-relay/internal/store"
)

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeInvalidState   = "invalid_state"
	codeUnavailable    = "unavailable"
	codeInternal       = "internal_error"
)

type toolErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCodes is checked in order; the first match wins.
var errorCodes = []struct {
	err  error
	code string
}{
	{relay.ErrGameNotFound, codeNotFound},
	{relay.ErrUnknownUser, codeNotFound},
	{store.ErrNotFound, codeNotFound},
	{game.ErrInvalidState, codeInvalidState},
	{game.ErrGameInProgress, codeInvalidState},
	{game.ErrNotInGame, codeInvalidState},
	{relay.ErrNotInGame, codeInvalidState},
}

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]toolErrorBody{"error": {Code: code, Message: message}},
		code+": "+message,
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	if err == nil {
		return toolError(codeInternal, "unknown error")
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return toolError(ec.code, err.Error())
		}
	}
	return toolError(codeInternal, err.Error())
}
