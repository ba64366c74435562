package wire

import (
	"encoding/json"
	"fmt"
)

// Op names a request or event.
type Op string

// Requests.
const (
	OpBind           Op = "bind"
	OpCreateSurface  Op = "create_surface"
	OpDestroySurface Op = "destroy_surface"
	OpAttach         Op = "attach"
	OpCommitSize     Op = "commit_size"
	OpCreateRole     Op = "create_role"
	OpSetToplevel    Op = "set_toplevel"
	OpSetTransient   Op = "set_transient"
	OpSetFullscreen  Op = "set_fullscreen"
	OpSetMaximized   Op = "set_maximized"
	OpSetPopup       Op = "set_popup"
	OpMove           Op = "move"
	OpResize         Op = "resize"
	OpSetTitle       Op = "set_title"
	OpSetClass       Op = "set_class"
	OpPong           Op = "pong"
	OpDestroy        Op = "destroy"
	OpPointerMotion  Op = "pointer_motion"
	OpPointerButton  Op = "pointer_button"
)

// Events.
const (
	EventBound     Op = "bound"
	EventPing      Op = "ping"
	EventConfigure Op = "configure"
	EventPopupDone Op = "popup_done"
	EventButton    Op = "button"
	EventError     Op = "error"
)

// Message is one line on the wire in either direction. Fields that an op
// does not use are left zero.
type Message struct {
	Op        Op     `json:"op"`
	Client    string `json:"client,omitempty"`
	Version   uint32 `json:"version,omitempty"`
	Object    uint32 `json:"object,omitempty"`
	Surface   uint32 `json:"surface,omitempty"`
	Parent    uint32 `json:"parent,omitempty"`
	Seat      string `json:"seat,omitempty"`
	Serial    uint32 `json:"serial,omitempty"`
	Edges     uint32 `json:"edges,omitempty"`
	X         int    `json:"x,omitempty"`
	Y         int    `json:"y,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Flags     uint32 `json:"flags,omitempty"`
	Method    uint32 `json:"method,omitempty"`
	Framerate uint32 `json:"framerate,omitempty"`
	Output    string `json:"output,omitempty"`
	Text      string `json:"text,omitempty"`
	Visible   bool   `json:"visible,omitempty"`
	Button    uint32 `json:"button,omitempty"`
	Pressed   bool   `json:"pressed,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ParseMessage decodes one line.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if m.Op == "" {
		return nil, fmt.Errorf("message has no op")
	}
	return &m, nil
}

// Marshal encodes m as one newline-terminated line.
func (m *Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
