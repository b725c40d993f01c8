package config

import (
	"bytes"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.GatewayPort != 5010 {
		t.Errorf("GatewayPort = %d, want 5010", cfg.GatewayPort)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.IdleTimeout)
	}
	if cfg.ChecksumPolicy != ChecksumOff {
		t.Errorf("ChecksumPolicy = %q, want %q", cfg.ChecksumPolicy, ChecksumOff)
	}
	if !bytes.Equal(cfg.RealtimeCommands, []byte{0xDF}) {
		t.Errorf("RealtimeCommands = % X, want DF", []byte(cfg.RealtimeCommands))
	}
	if !bytes.Equal(cfg.UploadCommands, []byte{0x40}) {
		t.Errorf("UploadCommands = % X, want 40", []byte(cfg.UploadCommands))
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = (%v, %v), want UTC", loc, err)
	}
	if cfg.ListenAddr() != ":5010" {
		t.Errorf("ListenAddr() = %q", cfg.ListenAddr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "6000")
	t.Setenv("IDLE_TIMEOUT", "90s")
	t.Setenv("DEVICE_TIMEZONE", "Asia/Jakarta")
	t.Setenv("REALTIME_COMMANDS", "0xDF, 0x7E")
	t.Setenv("UPLOAD_COMMANDS", "0x40,0x42")
	t.Setenv("CHECKSUM_POLICY", "strict")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.GatewayPort != 6000 {
		t.Errorf("GatewayPort = %d", cfg.GatewayPort)
	}
	if cfg.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v", cfg.IdleTimeout)
	}
	set := cfg.CommandSet()
	if !bytes.Equal(set.Realtime, []byte{0xDF, 0x7E}) || !bytes.Equal(set.Upload, []byte{0x40, 0x42}) {
		t.Errorf("CommandSet() = %+v", set)
	}
	if cfg.ChecksumPolicy != ChecksumStrict || cfg.StoreDriver != StoreMemory {
		t.Errorf("policy %q driver %q", cfg.ChecksumPolicy, cfg.StoreDriver)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timezone", "DEVICE_TIMEZONE", "Mars/Olympus"},
		{"bad command code", "REALTIME_COMMANDS", "0x1FF"},
		{"command collides with heartbeat", "UPLOAD_COMMANDS", "0x7F"},
		{"bad checksum policy", "CHECKSUM_POLICY", "sometimes"},
		{"bad store driver", "STORE_DRIVER", "mongo"},
		{"http sink without url", "SINK_MODE", "http"},
		{"port out of range", "GATEWAY_PORT", "70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s returned nil error", tt.key, tt.value)
			}
		})
	}
}
