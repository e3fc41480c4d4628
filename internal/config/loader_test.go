package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesAndUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.GracePeriod != def.GracePeriod || cfg.Reconnection != def.Reconnection {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.GracePeriod != 60*time.Second {
		t.Fatalf("unexpected default grace period: %v", cfg.GracePeriod)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("PARTYLINE_ADDR", ":9999")
	t.Setenv("PARTYLINE_MAX_CLIENTS", "3")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("env override ignored: %s", cfg.Addr)
	}
	if cfg.MaxClients != 3 {
		t.Fatalf("env override ignored: %d", cfg.MaxClients)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":7777\"\nlog_level: debug\nreconnection: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7777" || cfg.LogLevel != "debug" || cfg.Reconnection {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}
