package server

import (
	"net/netip"
	"path"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/game"
)

// AccessManager decides what an address may do on the server.
type AccessManager interface {
	Access(addr netip.Addr) game.AccessLevel
	IsSilenced(addr netip.Addr) bool
	IsEmulatorAllowed(clientType string) bool
	IsGameAllowed(romName string) bool
	// Announcement returns a message to broadcast when addr logs in, or "".
	Announcement(addr netip.Addr) string
}

// StaticAccess answers from address lists fixed at startup. Entries are
// glob patterns such as "10.0.*".
type StaticAccess struct {
	Admins   []string
	Banned   []string
	Silenced []string
}

func NewStaticAccess(cfg config.RelayConfig) *StaticAccess {
	return &StaticAccess{
		Admins:   cfg.AdminAddrs,
		Banned:   cfg.BannedAddrs,
		Silenced: cfg.SilencedAddrs,
	}
}

func (a *StaticAccess) Access(addr netip.Addr) game.AccessLevel {
	s := addr.String()
	switch {
	case matchAny(a.Banned, s):
		return game.AccessBanned
	case matchAny(a.Admins, s):
		return game.AccessAdmin
	}
	return game.AccessNormal
}

func (a *StaticAccess) IsSilenced(addr netip.Addr) bool {
	return matchAny(a.Silenced, addr.String())
}

func (a *StaticAccess) IsEmulatorAllowed(string) bool { return true }

func (a *StaticAccess) IsGameAllowed(string) bool { return true }

func (a *StaticAccess) Announcement(netip.Addr) string { return "" }

func matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if match(p, s) {
			return true
		}
	}
	return false
}

func match(pattern, s string) bool {
	if pattern == s {
		return true
	}
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}
