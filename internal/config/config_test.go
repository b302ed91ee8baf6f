package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Listen != ":8080" {
		t.Errorf("Default listen = %s, want :8080", cfg.Server.Listen)
	}
	if cfg.Cache.TTL != "30m" {
		t.Errorf("Default cache TTL = %s, want 30m", cfg.Cache.TTL)
	}
	if cfg.Extract.Slots != 5 {
		t.Errorf("Default extract slots = %d, want 5", cfg.Extract.Slots)
	}
	if cfg.Tasks.MaxAge != "1h" {
		t.Errorf("Default task max age = %s, want 1h", cfg.Tasks.MaxAge)
	}
}

func TestGetCacheTTL(t *testing.T) {
	tests := []struct {
		input    string
		wantSecs int64
		wantErr  bool
	}{
		{"30m", 1800, false},
		{"1h", 3600, false},
		{"90s", 90, false},
		{"", 1800, false}, // empty falls back to default
		{"invalid", 0, true},
		{"-5m", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Cache.TTL = tt.input
			dur, err := cfg.GetCacheTTL()
			if (err != nil) != tt.wantErr {
				t.Errorf("GetCacheTTL(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if err == nil && int64(dur.Seconds()) != tt.wantSecs {
				t.Errorf("GetCacheTTL(%s) = %v, want %d seconds", tt.input, dur, tt.wantSecs)
			}
		})
	}
}

func TestConfig_Save_Load(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Listen = ":9090"
	cfg.Cache.RedisURL = "redis://localhost:6379/0"

	err := cfg.Save(configPath)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Server.Listen != ":9090" {
		t.Errorf("Loaded listen = %s, want :9090", loaded.Server.Listen)
	}
	if loaded.Cache.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Loaded redis URL = %s, want redis://localhost:6379/0", loaded.Cache.RedisURL)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Listen != ":8080" {
		t.Errorf("Loaded listen = %s, want default :8080", loaded.Server.Listen)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STREAMGATE_LISTEN", ":7070")
	t.Setenv("STREAMGATE_EXTRACT_SLOTS", "9")
	t.Setenv("STREAMGATE_RATE_LIMIT", "2.5")

	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Listen != ":7070" {
		t.Errorf("env listen = %s, want :7070", loaded.Server.Listen)
	}
	if loaded.Extract.Slots != 9 {
		t.Errorf("env slots = %d, want 9", loaded.Extract.Slots)
	}
	if loaded.Server.RateLimit != 2.5 {
		t.Errorf("env rate limit = %v, want 2.5", loaded.Server.RateLimit)
	}
}

func TestGetTaskMaxAge(t *testing.T) {
	cfg := DefaultConfig()
	age, err := cfg.GetTaskMaxAge()
	if err != nil {
		t.Fatalf("GetTaskMaxAge() error = %v", err)
	}
	if age != time.Hour {
		t.Errorf("GetTaskMaxAge() = %v, want 1h", age)
	}
}

func TestAppDir(t *testing.T) {
	dir := AppDir()
	if dir == "" {
		t.Error("AppDir() returned empty string")
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".streamgate")
	if dir != expected {
		t.Errorf("AppDir() = %s, want %s", dir, expected)
	}
}
