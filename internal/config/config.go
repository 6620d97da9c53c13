package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultScreenshotDir = "parity_screenshots"
	defaultGoldenDir     = "parity_golden"
	defaultGameMod       = "mod_tf"
	defaultTimeout       = 30
	// DefaultThreshold is the similarity floor applied when a position
	// does not carry its own ssim_threshold.
	DefaultThreshold = 0.95
)

// Config holds one fully resolved parity run. After Load returns, every
// field carries a concrete value; consumers never re-derive defaults.
type Config struct {
	MapName       string            `json:"map_name"`
	GameDir       string            `json:"game_dir"`
	GameMod       string            `json:"game_mod"`
	ScreenshotDir string            `json:"screenshot_dir"`
	GoldenDir     string            `json:"golden_dir"`
	Positions     []CameraPosition  `json:"test_positions"`
	CVars         map[string]string `json:"cvars"`
	Timeout       int               `json:"timeout"` // seconds
	Logging       Logging           `json:"logging"`
}

// CameraPosition is one named camera pose the engine is teleported to.
type CameraPosition struct {
	Name      string   `json:"name"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Z         float64  `json:"z"`
	Pitch     float64  `json:"pitch"`
	Yaw       float64  `json:"yaw"`
	Threshold *float64 `json:"ssim_threshold,omitempty"`
}

// SimilarityThreshold returns the configured threshold or the default.
func (p CameraPosition) SimilarityThreshold() float64 {
	if p.Threshold != nil {
		return *p.Threshold
	}
	return DefaultThreshold
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Load reads a run configuration from path, applying defaults for the
// optional fields. A missing or malformed file is fatal to the invocation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PARITY_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("no configuration file given (use --config or PARITY_CONFIG)")
	}

	expanded, err := expandUser(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg := defaultConfig()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		GameMod:       defaultGameMod,
		ScreenshotDir: defaultScreenshotDir,
		GoldenDir:     defaultGoldenDir,
		CVars:         map[string]string{},
		Timeout:       defaultTimeout,
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
	}
}

func (c *Config) applyDefaults() {
	if c.GameMod == "" {
		c.GameMod = defaultGameMod
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = defaultScreenshotDir
	}
	if c.GoldenDir == "" {
		c.GoldenDir = defaultGoldenDir
	}
	if c.CVars == nil {
		c.CVars = map[string]string{}
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate rejects configurations the run loop cannot execute safely.
// Duplicate or unsafe position names would make artifact files collide
// silently, so they are hard errors rather than warnings.
func (c *Config) Validate() error {
	if c.MapName == "" {
		return fmt.Errorf("config: map_name is required")
	}
	if c.GameDir == "" {
		return fmt.Errorf("config: game_dir is required")
	}
	if len(c.Positions) == 0 {
		return fmt.Errorf("config: test_positions is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %d", c.Timeout)
	}

	seen := make(map[string]struct{}, len(c.Positions))
	for i, pos := range c.Positions {
		if pos.Name == "" {
			return fmt.Errorf("config: test_positions[%d] has no name", i)
		}
		if !filesystemSafe(pos.Name) {
			return fmt.Errorf("config: position name %q is not filesystem-safe", pos.Name)
		}
		if _, dup := seen[pos.Name]; dup {
			return fmt.Errorf("config: duplicate position name %q", pos.Name)
		}
		seen[pos.Name] = struct{}{}
		if pos.Threshold != nil && (*pos.Threshold < 0 || *pos.Threshold > 1) {
			return fmt.Errorf("config: position %q ssim_threshold %v outside [0,1]", pos.Name, *pos.Threshold)
		}
	}
	return nil
}

// filesystemSafe limits position names to characters that survive being
// embedded in an artifact filename on every platform the engine runs on.
func filesystemSafe(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(name, ".")
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
