package server

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/store"
)

type RuleSource interface {
	ListAccessRules(ctx context.Context, now time.Time) ([]store.AccessRule, error)
}

// StoreAccess answers from access rules kept in Postgres, cached between
// refreshes. Addresses no rule matches fall back to the static lists.
type StoreAccess struct {
	src      RuleSource
	fallback AccessManager
	now      func() time.Time

	mu    sync.RWMutex
	rules []store.AccessRule
}

func NewStoreAccess(src RuleSource, fallback AccessManager) *StoreAccess {
	if fallback == nil {
		fallback = &StaticAccess{}
	}
	return &StoreAccess{src: src, fallback: fallback, now: time.Now}
}

// Refresh reloads the rules. On error the previous rules stay in effect.
func (a *StoreAccess) Refresh(ctx context.Context) error {
	now := a.now()
	rules, err := a.src.ListAccessRules(ctx, now)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.rules = rules
	a.mu.Unlock()
	log.Debug().Int("rules", len(rules)).Msg("access rules refreshed")
	return nil
}

// Run refreshes on every tick until ctx is done.
func (a *StoreAccess) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("refresh access rules failed")
			}
		}
	}
}

// find returns the first live rule of kind whose pattern matches s. Emulator
// and game patterns match case-insensitively.
func (a *StoreAccess) find(kind, s string) (store.AccessRule, bool) {
	fold := kind == store.RuleEmulator || kind == store.RuleGame
	if fold {
		s = strings.ToLower(s)
	}
	now := a.now()
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, r := range a.rules {
		if r.Kind != kind {
			continue
		}
		if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			continue
		}
		pattern := r.Pattern
		if fold {
			pattern = strings.ToLower(pattern)
		}
		if match(pattern, s) {
			return r, true
		}
	}
	return store.AccessRule{}, false
}

func (a *StoreAccess) Access(addr netip.Addr) game.AccessLevel {
	if r, ok := a.find(store.RuleUser, addr.String()); ok {
		lvl := game.AccessLevel(r.AccessLevel)
		if lvl < game.AccessBanned || lvl > game.AccessSuperAdmin {
			return game.AccessNormal
		}
		return lvl
	}
	return a.fallback.Access(addr)
}

func (a *StoreAccess) IsSilenced(addr netip.Addr) bool {
	if _, ok := a.find(store.RuleSilence, addr.String()); ok {
		return true
	}
	return a.fallback.IsSilenced(addr)
}

func (a *StoreAccess) IsEmulatorAllowed(clientType string) bool {
	if r, ok := a.find(store.RuleEmulator, clientType); ok {
		return r.Allow
	}
	return a.fallback.IsEmulatorAllowed(clientType)
}

func (a *StoreAccess) IsGameAllowed(romName string) bool {
	if r, ok := a.find(store.RuleGame, romName); ok {
		return r.Allow
	}
	return a.fallback.IsGameAllowed(romName)
}

func (a *StoreAccess) Announcement(addr netip.Addr) string {
	if r, ok := a.find(store.RuleAnnouncement, addr.String()); ok {
		return r.Message
	}
	return a.fallback.Announcement(addr)
}
