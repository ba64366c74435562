package mcp

import "github.com/1broseidon/wlshell/internal/ipc"

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Client           string `json:"client,omitempty" jsonschema:"Only list windows of this client id"`
	UnresponsiveOnly bool   `json:"unresponsive_only,omitempty" jsonschema:"Only list windows whose pings timed out"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowInfo `json:"windows"`
}

// ListPopupsInput is the input for the list_popups tool.
type ListPopupsInput struct{}

// PingWindowInput is the input for the ping_window tool.
type PingWindowInput struct {
	Surface uint32 `json:"surface" jsonschema:"required,Surface id of the window to ping"`
	Client  string `json:"client,omitempty" jsonschema:"Client id owning the surface; required when the surface id is ambiguous"`
}

// BreakGrabsInput is the input for the break_grabs tool.
type BreakGrabsInput struct{}

// BreakGrabsOutput is the output for the break_grabs tool.
type BreakGrabsOutput struct {
	Cancelled int `json:"cancelled"`
}
