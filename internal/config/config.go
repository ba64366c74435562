package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	BackendHeadless = "headless"
	BackendX11      = "x11"

	ActionMark   = "mark"
	ActionIgnore = "ignore"
)

// Config is the effective daemon configuration.
type Config struct {
	LogLevel        string         `yaml:"log_level"`
	Backend         string         `yaml:"backend"`
	Display         string         `yaml:"display,omitempty"`
	ProtocolVersion uint32         `yaml:"protocol_version"`
	Resize          ResizeConfig   `yaml:"resize"`
	Liveness        LivenessConfig `yaml:"liveness"`
	Outputs         []OutputConfig `yaml:"outputs"`
	Seats           []string       `yaml:"seats"`
	BreakGrabHotkey string         `yaml:"break_grab_hotkey"`
}

// ResizeConfig sets the floor for interactive resizes.
type ResizeConfig struct {
	MinWidth  int `yaml:"min_width"`
	MinHeight int `yaml:"min_height"`
}

// LivenessConfig controls ping scheduling and what happens when a client
// does not answer.
type LivenessConfig struct {
	// PingIntervalSeconds of 0 disables periodic pings.
	PingIntervalSeconds int    `yaml:"ping_interval_seconds"`
	PingTimeoutSeconds  int    `yaml:"ping_timeout_seconds"`
	UnresponsiveAction  string `yaml:"unresponsive_action"`
}

// RectConfig is a rectangle in global coordinates.
type RectConfig struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// OutputConfig is a fake screen for the headless backend.
type OutputConfig struct {
	Name   string `yaml:"name"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Available defaults to the whole output.
	Available *RectConfig `yaml:"available,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		Backend:         BackendHeadless,
		ProtocolVersion: 1,
		Resize:          ResizeConfig{MinWidth: 1, MinHeight: 1},
		Liveness: LivenessConfig{
			PingIntervalSeconds: 10,
			PingTimeoutSeconds:  5,
			UnresponsiveAction:  ActionMark,
		},
		Outputs: []OutputConfig{
			{Name: "headless-0", Width: 1920, Height: 1080},
		},
		Seats:           []string{"seat0"},
		BreakGrabHotkey: "Mod4-Escape",
	}
}

// PingInterval returns the liveness ping period, or 0 when disabled.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Liveness.PingIntervalSeconds) * time.Second
}

// PingTimeout returns how long a ping may stay unanswered.
func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.Liveness.PingTimeoutSeconds) * time.Second
}

// SlogLevel maps log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save validates the config and writes it to the default path.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo validates the config and writes it to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(path string, format string, args ...any) {
		result = multierror.Append(result, &ValidationError{Path: path, Err: fmt.Errorf(format, args...)})
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("log_level", "log_level must be one of: debug, info, warning, error")
	}
	switch c.Backend {
	case BackendHeadless, BackendX11:
	default:
		fail("backend", "backend must be one of: headless, x11")
	}
	if c.ProtocolVersion == 0 {
		fail("protocol_version", "protocol_version must be >= 1")
	}
	if c.Resize.MinWidth < 1 {
		fail("resize.min_width", "min_width must be >= 1")
	}
	if c.Resize.MinHeight < 1 {
		fail("resize.min_height", "min_height must be >= 1")
	}
	if c.Liveness.PingIntervalSeconds < 0 {
		fail("liveness.ping_interval_seconds", "ping_interval_seconds must be >= 0")
	}
	if c.Liveness.PingTimeoutSeconds < 1 {
		fail("liveness.ping_timeout_seconds", "ping_timeout_seconds must be >= 1")
	}
	switch c.Liveness.UnresponsiveAction {
	case ActionMark, ActionIgnore:
	default:
		fail("liveness.unresponsive_action", "unresponsive_action must be one of: mark, ignore")
	}

	if c.Backend == BackendHeadless {
		if len(c.Outputs) == 0 {
			fail("outputs", "the headless backend needs at least one output")
		}
		if len(c.Seats) == 0 {
			fail("seats", "the headless backend needs at least one seat")
		}
	}
	names := make(map[string]struct{}, len(c.Outputs))
	for i, out := range c.Outputs {
		path := fmt.Sprintf("outputs.%d", i)
		if strings.TrimSpace(out.Name) == "" {
			fail(path+".name", "output name is required")
		} else if _, dup := names[out.Name]; dup {
			fail(path+".name", "duplicate output name %q", out.Name)
		}
		names[out.Name] = struct{}{}
		if out.Width < 1 || out.Height < 1 {
			fail(path, "output size must be positive, got %dx%d", out.Width, out.Height)
		}
		if a := out.Available; a != nil && (a.Width < 1 || a.Height < 1) {
			fail(path+".available", "available size must be positive, got %dx%d", a.Width, a.Height)
		}
	}
	seats := make(map[string]struct{}, len(c.Seats))
	for i, seat := range c.Seats {
		if strings.TrimSpace(seat) == "" {
			fail(fmt.Sprintf("seats.%d", i), "seat name is required")
			continue
		}
		if _, dup := seats[seat]; dup {
			fail(fmt.Sprintf("seats.%d", i), "duplicate seat %q", seat)
		}
		seats[seat] = struct{}{}
	}
	if c.Backend == BackendX11 && strings.TrimSpace(c.BreakGrabHotkey) == "" {
		fail("break_grab_hotkey", "break_grab_hotkey is required for the x11 backend")
	}

	return result.ErrorOrNil()
}
