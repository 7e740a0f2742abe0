// Package lobbypush posts lobby activity from the event feed to chat
// webhooks.
package lobbypush

import "time"

// Target is one webhook. ScopeType "all" matches every game; "rom" matches
// games whose ROM name contains ScopeValue, ignoring case.
type Target struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
	ServerName          string
}

func (c Config) Enabled() bool { return len(c.Targets) > 0 }

// Event is a feed record reduced to what messages show.
type Event struct {
	Type     string
	ServerTS int64
	GameID   uint16
	RomName  string
	Owner    string
	Players  int
	MaxUsers int
	UserName string
	Message  string
}

type pushJob struct {
	Target  Target
	Event   Event
	Attempt int
}

func (j pushJob) key() string { return targetKey(j.Target) }

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
