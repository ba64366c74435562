package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/shell"
)

// ConfigSynchronizer pushes a reloaded configuration into the running
// daemon. Settings that only take effect at startup are reported, not
// applied.
type ConfigSynchronizer struct {
	registry *shell.Registry
	loop     *loop.Loop
	watchdog *Watchdog
	level    *slog.LevelVar
	logger   *slog.Logger

	mu      sync.Mutex
	current *config.Config
}

// NewConfigSynchronizer creates a synchronizer starting from cfg.
func NewConfigSynchronizer(cfg *config.Config, registry *shell.Registry, l *loop.Loop, watchdog *Watchdog, level *slog.LevelVar, logger *slog.Logger) *ConfigSynchronizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConfigSynchronizer{
		registry: registry,
		loop:     l,
		watchdog: watchdog,
		level:    level,
		logger:   logger,
		current:  cfg,
	}
}

// Current returns the configuration last applied.
func (s *ConfigSynchronizer) Current() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Apply updates the resize floor, the liveness policy and the log level.
// It returns the keys whose change needs a restart.
func (s *ConfigSynchronizer) Apply(ctx context.Context, cfg *config.Config) ([]string, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no config to apply")
	}

	minSize := minSizeFromConfig(cfg)
	if err := s.loop.Call(ctx, func() { s.registry.SetMinSize(minSize) }); err != nil {
		return nil, fmt.Errorf("apply resize floor: %w", err)
	}
	if s.watchdog != nil {
		s.watchdog.SetPolicy(policyFromConfig(cfg))
	}
	if s.level != nil {
		s.level.Set(cfg.SlogLevel())
	}

	s.mu.Lock()
	restart := restartRequired(s.current, cfg)
	s.current = cfg
	s.mu.Unlock()

	s.logger.Info("config applied",
		"log_level", cfg.LogLevel,
		"min_width", minSize.Width,
		"min_height", minSize.Height,
		"ping_interval", cfg.PingInterval(),
		"ping_timeout", cfg.PingTimeout())
	if len(restart) > 0 {
		s.logger.Warn("config changes need a restart", "keys", restart)
	}
	return restart, nil
}

func minSizeFromConfig(cfg *config.Config) platform.Size {
	return platform.Size{Width: cfg.Resize.MinWidth, Height: cfg.Resize.MinHeight}
}

func policyFromConfig(cfg *config.Config) LivenessPolicy {
	return LivenessPolicy{
		Interval: cfg.PingInterval(),
		Timeout:  cfg.PingTimeout(),
		Action:   shell.UnresponsiveAction(cfg.Liveness.UnresponsiveAction),
	}
}

// restartRequired lists startup-only keys that differ between old and next.
func restartRequired(old, next *config.Config) []string {
	if old == nil {
		return nil
	}
	var keys []string
	if old.Backend != next.Backend {
		keys = append(keys, "backend")
	}
	if old.Display != next.Display {
		keys = append(keys, "display")
	}
	if old.ProtocolVersion != next.ProtocolVersion {
		keys = append(keys, "protocol_version")
	}
	if !reflect.DeepEqual(old.Outputs, next.Outputs) {
		keys = append(keys, "outputs")
	}
	if !reflect.DeepEqual(old.Seats, next.Seats) {
		keys = append(keys, "seats")
	}
	if old.BreakGrabHotkey != next.BreakGrabHotkey {
		keys = append(keys, "break_grab_hotkey")
	}
	return keys
}
