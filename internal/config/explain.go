package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	log_level
//	backend
//	display
//	protocol_version
//	resize.min_width
//	liveness.unresponsive_action
//	outputs.<index>.name
//	seats
//	break_grab_hotkey
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	unknown := fmt.Errorf("unknown path: %s", path)
	leaf := func(v any) (any, error) {
		if len(parts) != 1 {
			return nil, unknown
		}
		return v, nil
	}

	switch parts[0] {
	case "log_level":
		return leaf(cfg.LogLevel)
	case "backend":
		return leaf(cfg.Backend)
	case "display":
		return leaf(cfg.Display)
	case "protocol_version":
		return leaf(cfg.ProtocolVersion)
	case "break_grab_hotkey":
		return leaf(cfg.BreakGrabHotkey)
	case "resize":
		if len(parts) == 1 {
			return cfg.Resize, nil
		}
		if len(parts) != 2 {
			return nil, unknown
		}
		switch parts[1] {
		case "min_width":
			return cfg.Resize.MinWidth, nil
		case "min_height":
			return cfg.Resize.MinHeight, nil
		}
		return nil, unknown
	case "liveness":
		if len(parts) == 1 {
			return cfg.Liveness, nil
		}
		if len(parts) != 2 {
			return nil, unknown
		}
		switch parts[1] {
		case "ping_interval_seconds":
			return cfg.Liveness.PingIntervalSeconds, nil
		case "ping_timeout_seconds":
			return cfg.Liveness.PingTimeoutSeconds, nil
		case "unresponsive_action":
			return cfg.Liveness.UnresponsiveAction, nil
		}
		return nil, unknown
	case "seats":
		if len(parts) == 1 {
			return cfg.Seats, nil
		}
		i, err := index(parts[1], len(cfg.Seats))
		if err != nil || len(parts) != 2 {
			return nil, unknown
		}
		return cfg.Seats[i], nil
	case "outputs":
		if len(parts) == 1 {
			return cfg.Outputs, nil
		}
		i, err := index(parts[1], len(cfg.Outputs))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out := cfg.Outputs[i]
		if len(parts) == 2 {
			return out, nil
		}
		if len(parts) != 3 {
			return nil, unknown
		}
		switch parts[2] {
		case "name":
			return out.Name, nil
		case "x":
			return out.X, nil
		case "y":
			return out.Y, nil
		case "width":
			return out.Width, nil
		case "height":
			return out.Height, nil
		case "available":
			return out.Available, nil
		}
		return nil, unknown
	default:
		return nil, unknown
	}
}

func index(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %d out of range", i)
	}
	return i, nil
}
