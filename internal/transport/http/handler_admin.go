package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v3"
	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/store"
)

// AdminStore is the persistence the admin API reads and edits.
type AdminStore interface {
	Ping(ctx context.Context) error
	ListAccessRules(ctx context.Context, now time.Time) ([]store.AccessRule, error)
	CreateAccessRule(ctx context.Context, r store.AccessRule) (string, error)
	DeleteAccessRule(ctx context.Context, id string) error
	ListGameRecords(ctx context.Context, limit int) ([]store.GameRecord, error)
}

// Refresher reloads cached access rules after an edit.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type AdminHandlers struct {
	srv    *server.Server
	store  AdminStore
	access Refresher
	now    func() time.Time
}

func NewAdminHandlers(srv *server.Server, st AdminStore, access Refresher) *AdminHandlers {
	return &AdminHandlers{srv: srv, store: st, access: access, now: time.Now}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"ok":    true,
			"users": h.srv.UserCount(),
			"games": h.srv.GameCount(),
			"db":    "off",
		}
		if h.store != nil {
			if err := h.store.Ping(r.Context()); err != nil {
				body["ok"], body["db"] = false, "down"
				WriteJSON(w, http.StatusServiceUnavailable, body)
				return
			}
			body["db"] = "up"
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

func (h *AdminHandlers) Users() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"items": h.srv.Users()})
	}
}

func (h *AdminHandlers) Games() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"items": h.srv.Games(false)})
	}
}

func (h *AdminHandlers) lookupGame(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	id, ok := ParseGameID(r)
	if !ok {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_game_id")
		return nil, false
	}
	httplog.SetAttrs(r.Context(), slog.Int("game_id", int(id)))
	g, ok := h.srv.Game(id)
	if !ok {
		WriteHTTPError(w, http.StatusNotFound, "game_not_found")
		return nil, false
	}
	return g, true
}

// Game includes the players and their lag.
func (h *AdminHandlers) Game() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := h.lookupGame(w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, g.Snapshot(true))
	}
}

// UpdateSettings applies the fields present in the body over the current
// settings.
func (h *AdminHandlers) UpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := h.lookupGame(w, r)
		if !ok {
			return
		}
		settings := g.Settings()
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if code := validateSettings(settings); code != "" {
			WriteHTTPError(w, http.StatusBadRequest, code)
			return
		}
		g.UpdateSettings(settings)
		metricSettingsUpdates.Add(1)
		log.Info().Uint16("game_id", g.ID).Interface("settings", settings).Msg("game settings updated")
		WriteJSON(w, http.StatusOK, g.Settings())
	}
}

func validateSettings(s game.Settings) string {
	switch {
	case s.MaxUsers < 1 || s.MaxUsers > 255:
		return "invalid_max_users"
	case s.MaxPing < 1:
		return "invalid_max_ping"
	case s.StartN != -1 && (s.StartN < 1 || s.StartN > s.MaxUsers):
		return "invalid_start_n"
	}
	return ""
}

func (h *AdminHandlers) ResetLag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := h.lookupGame(w, r)
		if !ok {
			return
		}
		g.ResetLag()
		metricLagResets.Add(1)
		WriteJSON(w, http.StatusOK, g.Snapshot(true))
	}
}

func (h *AdminHandlers) AccessRules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		items, err := h.store.ListAccessRules(r.Context(), h.now())
		if err != nil {
			log.Error().Err(err).Msg("list access rules failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

var ruleKinds = map[string]bool{
	store.RuleUser:         true,
	store.RuleSilence:      true,
	store.RuleEmulator:     true,
	store.RuleGame:         true,
	store.RuleAnnouncement: true,
}

func (h *AdminHandlers) CreateAccessRule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		var body struct {
			Kind        string     `json:"kind"`
			Pattern     string     `json:"pattern"`
			AccessLevel int        `json:"access_level"`
			Allow       bool       `json:"allow"`
			Message     string     `json:"message"`
			ExpiresAt   *time.Time `json:"expires_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.Kind = strings.ToLower(strings.TrimSpace(body.Kind))
		if !ruleKinds[body.Kind] || strings.TrimSpace(body.Pattern) == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if body.AccessLevel < int(game.AccessBanned) || body.AccessLevel > int(game.AccessSuperAdmin) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_access_level")
			return
		}
		id, err := h.store.CreateAccessRule(r.Context(), store.AccessRule{
			Kind:        body.Kind,
			Pattern:     strings.TrimSpace(body.Pattern),
			AccessLevel: body.AccessLevel,
			Allow:       body.Allow,
			Message:     body.Message,
			ExpiresAt:   body.ExpiresAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("create access rule failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricRuleChanges.Add(1)
		h.refresh(r.Context())
		WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
	}
}

func (h *AdminHandlers) DeleteAccessRule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		err := h.store.DeleteAccessRule(r.Context(), chi.URLParam(r, "rule_id"))
		if errors.Is(err, store.ErrNotFound) {
			WriteHTTPError(w, http.StatusNotFound, "rule_not_found")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("delete access rule failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricRuleChanges.Add(1)
		h.refresh(r.Context())
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) refresh(ctx context.Context) {
	if h.access == nil {
		return
	}
	if err := h.access.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("access refresh after rule change failed")
	}
}

func (h *AdminHandlers) GameRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		limit := ParseLimit(r)
		items, err := h.store.ListGameRecords(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("list game records failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit})
	}
}
