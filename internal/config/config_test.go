package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parity_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `{
  "map_name": "de_test",
  "game_dir": "/games/hl2",
  "test_positions": [
    {"name": "spawn", "x": 1, "y": 2, "z": 3, "pitch": 0, "yaw": 90},
    {"name": "mid", "x": 10, "y": 20, "z": 30, "pitch": -15, "yaw": 180, "ssim_threshold": 0.8}
  ]
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GameMod != "mod_tf" {
		t.Errorf("GameMod = %q, want mod_tf", cfg.GameMod)
	}
	if cfg.ScreenshotDir != "parity_screenshots" {
		t.Errorf("ScreenshotDir = %q, want parity_screenshots", cfg.ScreenshotDir)
	}
	if cfg.GoldenDir != "parity_golden" {
		t.Errorf("GoldenDir = %q, want parity_golden", cfg.GoldenDir)
	}
	if cfg.Timeout != 30 {
		t.Errorf("Timeout = %d, want 30", cfg.Timeout)
	}
	if cfg.CVars == nil {
		t.Error("CVars should default to an empty map")
	}
	if len(cfg.Positions) != 2 {
		t.Fatalf("Positions = %d, want 2", len(cfg.Positions))
	}
}

func TestLoadPositionThresholds(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Positions[0].SimilarityThreshold(); got != DefaultThreshold {
		t.Errorf("spawn threshold = %v, want default %v", got, DefaultThreshold)
	}
	if got := cfg.Positions[1].SimilarityThreshold(); got != 0.8 {
		t.Errorf("mid threshold = %v, want 0.8", got)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("PARITY_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load from PARITY_CONFIG: %v", err)
	}
	if cfg.MapName != "de_test" {
		t.Errorf("MapName = %q, want de_test", cfg.MapName)
	}
}

func TestLoadNoPath(t *testing.T) {
	t.Setenv("PARITY_CONFIG", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when no config path is available")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"map_name": `)); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func threshold(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			MapName: "de_test",
			GameDir: "/games/hl2",
			Timeout: 30,
			Positions: []CameraPosition{
				{Name: "spawn"},
				{Name: "mid"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing map", func(c *Config) { c.MapName = "" }, "map_name"},
		{"missing game dir", func(c *Config) { c.GameDir = "" }, "game_dir"},
		{"no positions", func(c *Config) { c.Positions = nil }, "test_positions"},
		{"zero timeout", func(c *Config) { c.Timeout = -5 }, "timeout"},
		{"unnamed position", func(c *Config) { c.Positions[1].Name = "" }, "has no name"},
		{"duplicate names", func(c *Config) { c.Positions[1].Name = "spawn" }, "duplicate"},
		{"path separator in name", func(c *Config) { c.Positions[0].Name = "a/b" }, "filesystem-safe"},
		{"leading dot", func(c *Config) { c.Positions[0].Name = ".hidden" }, "filesystem-safe"},
		{"threshold above one", func(c *Config) { c.Positions[0].Threshold = threshold(1.5) }, "outside"},
		{"threshold below zero", func(c *Config) { c.Positions[0].Threshold = threshold(-0.1) }, "outside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFilesystemSafe(t *testing.T) {
	good := []string{"spawn", "mid_tower", "point-3", "cam.2"}
	for _, name := range good {
		if !filesystemSafe(name) {
			t.Errorf("filesystemSafe(%q) = false, want true", name)
		}
	}
	bad := []string{"a/b", `a\b`, "a b", "pos:1", ".dotfile", "naïve"}
	for _, name := range bad {
		if filesystemSafe(name) {
			t.Errorf("filesystemSafe(%q) = true, want false", name)
		}
	}
}

func TestExpandUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandUser("~/configs/parity.json")
	if err != nil {
		t.Fatalf("expandUser: %v", err)
	}
	want := filepath.Join(home, "configs/parity.json")
	if got != want {
		t.Errorf("expandUser = %q, want %q", got, want)
	}

	if got, _ := expandUser("/abs/path.json"); got != "/abs/path.json" {
		t.Errorf("absolute path changed: %q", got)
	}
}
