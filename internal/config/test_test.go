package config

import "testing"

func TestLoadTestRequiresDSN(t *testing.T) {
	t.Setenv("TEST_POSTGRES_DSN", "")
	if _, err := LoadTest(); err == nil {
		t.Fatal("LoadTest() with empty dsn: want error")
	}
	t.Setenv("TEST_POSTGRES_DSN", "postgres://localhost/relay")
	t.Setenv("TEST_KEEP_SCHEMA", "true")
	cfg, err := LoadTest()
	if err != nil || !cfg.KeepSchema {
		t.Fatalf("LoadTest() = %+v, %v", cfg, err)
	}
}
