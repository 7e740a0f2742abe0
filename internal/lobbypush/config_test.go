package lobbypush

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kaillera-relay/internal/config"
)

func TestConfigFromRelayFiltersTargets(t *testing.T) {
	cfg, err := ConfigFromRelay(config.RelayConfig{
		PushWorkers:   3,
		PushRetryMax:  2,
		PushRetryBase: 200 * time.Millisecond,
		PushTargets: `[
		  {"platform":"Discord","endpoint":"https://a","scope_type":"rom","scope_value":"street","enabled":true},
		  {"platform":"feishu","endpoint":"","enabled":true},
		  {"platform":"discord","endpoint":"https://b","scope_type":"invalid","enabled":true},
		  {"platform":"discord","endpoint":"https://c","enabled":false}
		]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromRelay: %v", err)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(cfg.Targets))
	}
	if cfg.Targets[0].Platform != "discord" {
		t.Fatalf("platform = %q, want discord", cfg.Targets[0].Platform)
	}
	if cfg.Workers != 3 || cfg.RetryMax != 2 || cfg.RetryBase != 200*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfigFromRelayDefaultScopeIsAll(t *testing.T) {
	cfg, err := ConfigFromRelay(config.RelayConfig{
		PushTargets: `[{"platform":"discord","endpoint":"https://a","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromRelay: %v", err)
	}
	if got := cfg.Targets[0].ScopeType; got != "all" {
		t.Fatalf("scope = %q, want all", got)
	}
	if cfg.Workers != 2 || cfg.RetryBase != 500*time.Millisecond {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestConfigFromRelayFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"discord","endpoint":"https://from-file","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := ConfigFromRelay(config.RelayConfig{
		PushTargetsFile: path,
		PushTargets:     `[{"platform":"discord","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromRelay: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" {
		t.Fatalf("targets = %+v, want the file's", cfg.Targets)
	}
}

func TestConfigFromRelayErrors(t *testing.T) {
	if _, err := ConfigFromRelay(config.RelayConfig{PushTargetsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("missing file: want error")
	}
	if _, err := ConfigFromRelay(config.RelayConfig{PushTargets: `{`}); err == nil {
		t.Fatal("bad json: want error")
	}
	cfg, err := ConfigFromRelay(config.RelayConfig{})
	if err != nil || cfg.Enabled() {
		t.Fatalf("empty config = %+v, %v; want disabled", cfg, err)
	}
}
