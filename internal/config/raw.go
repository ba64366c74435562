package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawResize struct {
	MinWidth  *int `yaml:"min_width"`
	MinHeight *int `yaml:"min_height"`
}

type RawLiveness struct {
	PingIntervalSeconds *int    `yaml:"ping_interval_seconds"`
	PingTimeoutSeconds  *int    `yaml:"ping_timeout_seconds"`
	UnresponsiveAction  *string `yaml:"unresponsive_action"`
}

// RawConfig is one config file as written. Unset fields keep the value from
// earlier files or the defaults.
type RawConfig struct {
	Include         IncludeList    `yaml:"include"`
	LogLevel        *string        `yaml:"log_level"`
	Backend         *string        `yaml:"backend"`
	Display         *string        `yaml:"display"`
	ProtocolVersion *uint32        `yaml:"protocol_version"`
	Resize          *RawResize     `yaml:"resize"`
	Liveness        *RawLiveness   `yaml:"liveness"`
	Outputs         []OutputConfig `yaml:"outputs"`
	Seats           []string       `yaml:"seats"`
	BreakGrabHotkey *string        `yaml:"break_grab_hotkey"`
}

// merge overlays o on r. Lists replace rather than append.
func (r RawConfig) merge(o RawConfig) RawConfig {
	out := r
	out.Include = nil
	if o.LogLevel != nil {
		out.LogLevel = o.LogLevel
	}
	if o.Backend != nil {
		out.Backend = o.Backend
	}
	if o.Display != nil {
		out.Display = o.Display
	}
	if o.ProtocolVersion != nil {
		out.ProtocolVersion = o.ProtocolVersion
	}
	if o.Resize != nil {
		merged := RawResize{}
		if r.Resize != nil {
			merged = *r.Resize
		}
		if o.Resize.MinWidth != nil {
			merged.MinWidth = o.Resize.MinWidth
		}
		if o.Resize.MinHeight != nil {
			merged.MinHeight = o.Resize.MinHeight
		}
		out.Resize = &merged
	}
	if o.Liveness != nil {
		merged := RawLiveness{}
		if r.Liveness != nil {
			merged = *r.Liveness
		}
		if o.Liveness.PingIntervalSeconds != nil {
			merged.PingIntervalSeconds = o.Liveness.PingIntervalSeconds
		}
		if o.Liveness.PingTimeoutSeconds != nil {
			merged.PingTimeoutSeconds = o.Liveness.PingTimeoutSeconds
		}
		if o.Liveness.UnresponsiveAction != nil {
			merged.UnresponsiveAction = o.Liveness.UnresponsiveAction
		}
		out.Liveness = &merged
	}
	if o.Outputs != nil {
		out.Outputs = o.Outputs
	}
	if o.Seats != nil {
		out.Seats = o.Seats
	}
	if o.BreakGrabHotkey != nil {
		out.BreakGrabHotkey = o.BreakGrabHotkey
	}
	return out
}
