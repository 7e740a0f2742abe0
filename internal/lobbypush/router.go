package lobbypush

import "strings"

// defaultEvents are pushed to targets without an allowlist.
var defaultEvents = map[string]bool{
	EventGameCreated: true,
	EventGameStarted: true,
	EventGameClosed:  true,
	EventAnnounce:    true,
}

func MatchTargets(targets []Target, ev Event) []Target {
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if !t.Enabled || !scopeMatches(t, ev) || !eventAllowed(t.EventAllowlist, ev.Type) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func scopeMatches(t Target, ev Event) bool {
	switch t.ScopeType {
	case "all":
		return true
	case "rom":
		return t.ScopeValue != "" && ev.RomName != "" &&
			strings.Contains(strings.ToLower(ev.RomName), strings.ToLower(t.ScopeValue))
	}
	return false
}

func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return defaultEvents[evType]
	}
	for _, v := range allowlist {
		if v == evType {
			return true
		}
	}
	return false
}
