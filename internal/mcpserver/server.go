// Package mcpserver exposes relay operator tools over the Model Context
// Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"kaillera-relay/internal/store"
	relay "kaillera-relay/internal/server"
)

// RecordLister reads finished game records. It is nil without a database.
type RecordLister interface {
	ListGameRecords(ctx context.Context, limit int) ([]store.GameRecord, error)
}

type Server struct {
	relay   *relay.Server
	records RecordLister

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(srv *relay.Server, records RecordLister, version string) *Server {
	mcpSrv := server.NewMCPServer(
		srv.Config().ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		relay:      srv,
		records:    records,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerLobbyTools()
	s.registerGameTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			"relay://lobby",
			"lobby",
			mcp.WithResourceDescription("Logged-in users and open games"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return jsonResource(request.Params.URI, map[string]any{
				"users": s.relay.Users(),
				"games": s.relay.Games(false),
			})
		},
	)
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"game://{game_id}/state",
			"game_state",
			mcp.WithTemplateDescription("Game state with per-player lag by game id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id, err := parseGameURI(request.Params.URI)
			if err != nil {
				return nil, err
			}
			g, ok := s.relay.Game(id)
			if !ok {
				return nil, relay.ErrGameNotFound
			}
			return jsonResource(request.Params.URI, g.Snapshot(true))
		},
	)
}

// parseGameURI extracts the id from game://{game_id}/state.
func parseGameURI(uri string) (uint16, error) {
	rest, ok := strings.CutPrefix(uri, "game://")
	if !ok {
		return 0, fmt.Errorf("bad game uri %q", uri)
	}
	rest, ok = strings.CutSuffix(rest, "/state")
	if !ok {
		return 0, fmt.Errorf("bad game uri %q", uri)
	}
	id, err := strconv.ParseUint(rest, 10, 16)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("bad game id in %q", uri)
	}
	return uint16(id), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(payload)},
	}, nil
}
