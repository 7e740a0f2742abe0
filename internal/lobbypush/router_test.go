package lobbypush

import "testing"

func TestMatchTargets(t *testing.T) {
	targets := []Target{
		{Platform: "discord", Endpoint: "a", ScopeType: "all", Enabled: true},
		{Platform: "discord", Endpoint: "b", ScopeType: "rom", ScopeValue: "street fighter", Enabled: true},
		{Platform: "feishu", Endpoint: "c", ScopeType: "all", EventAllowlist: []string{EventUserJoined}, Enabled: true},
		{Platform: "discord", Endpoint: "d", ScopeType: "all", Enabled: false},
	}
	cases := []struct {
		name string
		ev   Event
		want []string
	}{
		{"rom match ignores case", Event{Type: EventGameCreated, RomName: "Street Fighter II"}, []string{"a", "b"}},
		{"rom mismatch", Event{Type: EventGameStarted, RomName: "Puyo Puyo"}, []string{"a"}},
		{"no rom for announcement", Event{Type: EventAnnounce}, []string{"a"}},
		{"allowlist only", Event{Type: EventUserJoined}, []string{"c"}},
		{"not a default event", Event{Type: EventUserQuit}, nil},
	}
	for _, tc := range cases {
		got := MatchTargets(targets, tc.ev)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: matched %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i, target := range got {
			if target.Endpoint != tc.want[i] {
				t.Fatalf("%s: target %d = %q, want %q", tc.name, i, target.Endpoint, tc.want[i])
			}
		}
	}
}
