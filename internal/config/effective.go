package config

import "fmt"

// ValidationError is a problem with one config key, optionally located in
// the file that set it.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.Backend != nil {
		cfg.Backend = *raw.Backend
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.ProtocolVersion != nil {
		cfg.ProtocolVersion = *raw.ProtocolVersion
	}
	if r := raw.Resize; r != nil {
		if r.MinWidth != nil {
			cfg.Resize.MinWidth = *r.MinWidth
		}
		if r.MinHeight != nil {
			cfg.Resize.MinHeight = *r.MinHeight
		}
	}
	if l := raw.Liveness; l != nil {
		if l.PingIntervalSeconds != nil {
			cfg.Liveness.PingIntervalSeconds = *l.PingIntervalSeconds
		}
		if l.PingTimeoutSeconds != nil {
			cfg.Liveness.PingTimeoutSeconds = *l.PingTimeoutSeconds
		}
		if l.UnresponsiveAction != nil {
			cfg.Liveness.UnresponsiveAction = *l.UnresponsiveAction
		}
	}
	if raw.Outputs != nil {
		cfg.Outputs = raw.Outputs
	}
	if raw.Seats != nil {
		cfg.Seats = raw.Seats
	}
	if raw.BreakGrabHotkey != nil {
		cfg.BreakGrabHotkey = *raw.BreakGrabHotkey
	}
	return cfg
}
