// Package mcp exposes the running shell to MCP clients over stdio. Every
// tool is a thin call through the daemon's control socket.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wlshell/internal/ipc"
)

const (
	ServerName    = "wlshell"
	ServerVersion = "0.1.0"
)

// Control is the subset of the control-socket client the tools use.
type Control interface {
	GetStatus() (*ipc.StatusData, error)
	ListWindows() (*ipc.WindowsData, error)
	ListPopups() (*ipc.PopupsData, error)
	PingWindow(client string, surface uint32) (*ipc.PingWindowData, error)
	BreakGrabs() (int, error)
}

var _ Control = (*ipc.Client)(nil)

// Server is the MCP server for inspecting a wlshell daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	control   Control
}

// NewServer creates a server that talks to the daemon through control.
func NewServer(control Control) *Server {
	s := &Server{control: control}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the shell daemon status: backend, protocol version, bound clients, windows, active grabs and open popup stacks.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List every window role with its state, geometry, output, active grab and liveness. Optionally filter by client id or by unresponsive windows only.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_popups",
		Description: "List open popup stacks per input device (bottom first) and every active pointer grab.",
	}, s.handleListPopups)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "ping_window",
		Description: "Send a liveness ping to the window on the given surface. Pass client when the surface id is used by more than one client.",
	}, s.handlePingWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "break_grabs",
		Description: "Force-end every active move, resize and popup grab. Use when a client has left a pointer grabbed.",
	}, s.handleBreakGrabs)
}
