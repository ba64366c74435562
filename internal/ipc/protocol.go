package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandListWindows CommandType = "LIST_WINDOWS"
	CommandListPopups  CommandType = "LIST_POPUPS"
	CommandPingWindow  CommandType = "PING_WINDOW"
	CommandBreakGrabs  CommandType = "BREAK_GRABS"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Backend         string `json:"backend"`
	ProtocolVersion uint32 `json:"protocol_version"`
	Clients         int    `json:"clients"`
	Windows         int    `json:"windows"`
	ActiveGrabs     int    `json:"active_grabs"`
	PopupStacks     int    `json:"popup_stacks"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	DaemonRunning   bool   `json:"daemon_running"`
}

// WindowInfo describes one shell surface.
type WindowInfo struct {
	Client       string `json:"client"`
	Object       uint32 `json:"object"`
	Surface      uint32 `json:"surface"`
	Role         string `json:"role"`
	State        string `json:"state"`
	Title        string `json:"title,omitempty"`
	Class        string `json:"class,omitempty"`
	Output       string `json:"output,omitempty"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Visible      bool   `json:"visible"`
	Grab         string `json:"grab,omitempty"`
	PendingPings int    `json:"pending_pings"`
	Unresponsive bool   `json:"unresponsive"`
}

// WindowsData represents the data returned by LIST_WINDOWS
type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// PopupRef names one popup in a chain.
type PopupRef struct {
	Client  string `json:"client"`
	Object  uint32 `json:"object"`
	Surface uint32 `json:"surface"`
}

// PopupStack is the popup chain of one pointer device, bottom first.
type PopupStack struct {
	Device uint32     `json:"device"`
	Serial uint32     `json:"serial"`
	Client string     `json:"client"`
	Popups []PopupRef `json:"popups"`
}

// GrabInfo describes an active device grab.
type GrabInfo struct {
	Device uint32 `json:"device"`
	Kind   string `json:"kind"`
}

// PopupsData represents the data returned by LIST_POPUPS
type PopupsData struct {
	Stacks []PopupStack `json:"stacks"`
	Grabs  []GrabInfo   `json:"grabs"`
}

// PingWindowPayload selects the window to ping. Client may be left empty
// when the surface id is unique.
type PingWindowPayload struct {
	Client  string `json:"client,omitempty"`
	Surface uint32 `json:"surface"`
}

type PingWindowData struct {
	Client string `json:"client"`
	Object uint32 `json:"object"`
	Serial uint32 `json:"serial"`
}

type BreakGrabsData struct {
	Cancelled int `json:"cancelled"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
