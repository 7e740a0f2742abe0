package config

import (
	"testing"
	"time"
)

func TestLoadRelayDefaults(t *testing.T) {
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if cfg.UDPAddr != ":27888" {
		t.Fatalf("UDPAddr = %q, want :27888", cfg.UDPAddr)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MaxPing() != time.Second {
		t.Fatalf("MaxPing() = %v, want 1s", cfg.MaxPing())
	}
	if cfg.GameBufferSize != 4096 {
		t.Fatalf("GameBufferSize = %d, want 4096", cfg.GameBufferSize)
	}
	if len(cfg.AllowedConnectionTypes) != 6 {
		t.Fatalf("AllowedConnectionTypes = %v, want 6 entries", cfg.AllowedConnectionTypes)
	}
	if cfg.LagstatWindow != time.Minute {
		t.Fatalf("LagstatWindow = %v, want 1m", cfg.LagstatWindow)
	}
	if cfg.Charset != "shift_jis" {
		t.Fatalf("Charset = %q, want shift_jis", cfg.Charset)
	}
}

func TestLoadRelayPostgresOptional(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
}

func TestLoadRelayParseTypes(t *testing.T) {
	t.Setenv("MAX_PING", "250")
	t.Setenv("ALLOWED_CONNECTION_TYPES", "1,3")
	t.Setenv("KEEPALIVE_TIMEOUT", "45s")
	t.Setenv("LOGIN_MESSAGES", "welcome|have fun")
	t.Setenv("ADMIN_ADDRS", "10.0.0.1,10.0.0.2")
	t.Setenv("ALLOW_SINGLE_PLAYER", "false")

	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if cfg.MaxPing() != 250*time.Millisecond {
		t.Fatalf("MaxPing() = %v, want 250ms", cfg.MaxPing())
	}
	if len(cfg.AllowedConnectionTypes) != 2 || cfg.AllowedConnectionTypes[1] != 3 {
		t.Fatalf("AllowedConnectionTypes = %v, want [1 3]", cfg.AllowedConnectionTypes)
	}
	if cfg.KeepAliveTimeout != 45*time.Second {
		t.Fatalf("KeepAliveTimeout = %v, want 45s", cfg.KeepAliveTimeout)
	}
	if len(cfg.LoginMessages) != 2 || cfg.LoginMessages[1] != "have fun" {
		t.Fatalf("LoginMessages = %v", cfg.LoginMessages)
	}
	if len(cfg.AdminAddrs) != 2 {
		t.Fatalf("AdminAddrs = %v", cfg.AdminAddrs)
	}
	if cfg.AllowSinglePlayer {
		t.Fatal("AllowSinglePlayer = true, want false")
	}
}

func TestLoadRelayPushDefaults(t *testing.T) {
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if cfg.PushTargets != "" || cfg.PushTargetsFile != "" {
		t.Fatalf("push targets set by default: %q %q", cfg.PushTargets, cfg.PushTargetsFile)
	}
	if cfg.PushWorkers != 2 || cfg.PushRetryMax != 3 || cfg.PushRetryBase != 500*time.Millisecond {
		t.Fatalf("push defaults = %d %d %v", cfg.PushWorkers, cfg.PushRetryMax, cfg.PushRetryBase)
	}
}

func TestLoadRelayMasterListDefaults(t *testing.T) {
	t.Setenv("TOUCH_KAILLERA", "true")

	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if !cfg.TouchKaillera || cfg.TouchEmulinker {
		t.Fatalf("touch = %v/%v, want kaillera only", cfg.TouchKaillera, cfg.TouchEmulinker)
	}
	if cfg.MasterInterval != time.Minute || cfg.ServerLocation != "Unknown" {
		t.Fatalf("interval = %v location = %q", cfg.MasterInterval, cfg.ServerLocation)
	}
	if cfg.KailleraMasterURL == "" || cfg.EmulinkerMasterURL == "" {
		t.Fatalf("master urls empty")
	}
}
