package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/mcpserver"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type RouterDeps struct {
	Server *server.Server
	Feed   *eventfeed.Feed
	// Store and Access are nil when no database is configured.
	Store       AdminStore
	Access      Refresher
	AdminAPIKey string
	// Version is reported to MCP clients.
	Version string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	admin := NewAdminHandlers(deps.Server, deps.Store, deps.Access)
	events := ws.NewServer(deps.Feed)
	var records mcpserver.RecordLister
	if deps.Store != nil {
		records = deps.Store
	}
	mcpSrv := mcpserver.New(deps.Server, records, deps.Version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", admin.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/users", admin.Users())
		r.Get("/games", admin.Games())
		r.Get("/games/{game_id}", admin.Game())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(deps.AdminAPIKey))
			r.Post("/games/{game_id}/settings", admin.UpdateSettings())
			r.Post("/games/{game_id}/lag/reset", admin.ResetLag())
			r.Get("/access-rules", admin.AccessRules())
			r.Post("/access-rules", admin.CreateAccessRule())
			r.Delete("/access-rules/{rule_id}", admin.DeleteAccessRule())
			r.Get("/records", admin.GameRecords())
			r.Get("/events", EventsSSEHandler(deps.Feed))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(AdminAuthMiddleware(deps.AdminAPIKey))
		r.Get("/ws/events", events.HandleWS)
		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	log.Debug().Msg(b.String())
}
