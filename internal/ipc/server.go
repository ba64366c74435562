package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/runtimepath"
	"github.com/1broseidon/wlshell/internal/shell"
)

const loopTimeout = 2 * time.Second

// ServerConfig wires the control socket to a running shell.
type ServerConfig struct {
	// SocketPath defaults to runtimepath.SocketPath().
	SocketPath string
	Registry   *shell.Registry
	Loop       *loop.Loop
	Backend    string
	// Reload reloads configuration; RELOAD fails when it is nil.
	Reload func() error
	Logger *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	registry     *shell.Registry
	loop         *loop.Loop
	backend      string
	reload       func() error
	logger       *slog.Logger
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		path, err := runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
		socketPath = path
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		registry:   cfg.Registry,
		loop:       cfg.Loop,
		backend:    cfg.Backend,
		reload:     cfg.Reload,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "path", s.socketPath)

	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandListWindows:
		return s.handleListWindows()
	case CommandListPopups:
		return s.handleListPopups()
	case CommandPingWindow:
		return s.handlePingWindow(req.Payload)
	case CommandBreakGrabs:
		return s.handleBreakGrabs()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// onLoop runs fn on the shell event loop.
func (s *Server) onLoop(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), loopTimeout)
	defer cancel()
	if err := s.loop.Call(ctx, fn); err != nil {
		return fmt.Errorf("shell not responding: %w", err)
	}
	return nil
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleReload() *Response {
	s.logger.Info("IPC: received RELOAD")
	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	status := StatusData{
		Backend:       s.backend,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
	}
	err := s.onLoop(func() {
		status.ProtocolVersion = s.registry.Version()
		status.Clients = s.registry.Clients()
		status.Windows = len(s.registry.Roles())
		status.ActiveGrabs = len(s.registry.Arena().Active())
		status.PopupStacks = len(s.registry.Popups().Stacks())
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(status)
}

func (s *Server) handleListWindows() *Response {
	var data WindowsData
	err := s.onLoop(func() {
		data.Windows = make([]WindowInfo, 0)
		for _, role := range s.registry.Roles() {
			data.Windows = append(data.Windows, windowInfo(role))
		}
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(data)
}

func windowInfo(role *shell.Role) WindowInfo {
	g := role.Geometry()
	info := WindowInfo{
		Client:       string(role.Client()),
		Object:       uint32(role.Object()),
		Surface:      uint32(role.Surface().ID()),
		Role:         role.Tag().String(),
		State:        role.State().String(),
		Title:        role.Title(),
		Class:        role.ClassName(),
		Output:       role.OutputName(),
		X:            g.X,
		Y:            g.Y,
		Width:        g.Width,
		Height:       g.Height,
		Visible:      role.Surface().Visible(),
		PendingPings: role.PendingPings(),
		Unresponsive: role.Unresponsive(),
	}
	if g := role.ActiveGrab(); g != nil {
		info.Grab = g.Kind()
	}
	return info
}

func (s *Server) handleListPopups() *Response {
	data := PopupsData{Stacks: []PopupStack{}, Grabs: []GrabInfo{}}
	err := s.onLoop(func() {
		for _, st := range s.registry.Popups().Stacks() {
			stack := PopupStack{
				Device: uint32(st.Device),
				Serial: st.Serial,
				Client: string(st.Client),
			}
			for _, p := range st.Popups {
				ref := PopupRef{Client: string(p.Client())}
				if role, ok := p.(*shell.Role); ok {
					ref.Object = uint32(role.Object())
					ref.Surface = uint32(role.Surface().ID())
				}
				stack.Popups = append(stack.Popups, ref)
			}
			data.Stacks = append(data.Stacks, stack)
		}
		for _, g := range s.registry.Arena().Active() {
			data.Grabs = append(data.Grabs, GrabInfo{Device: uint32(g.Device), Kind: g.Kind})
		}
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(data)
}

func (s *Server) handlePingWindow(payload json.RawMessage) *Response {
	var req PingWindowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid ping payload: %v", err))
	}

	var (
		data    PingWindowData
		matches int
	)
	err := s.onLoop(func() {
		var target *shell.Role
		for _, role := range s.registry.Roles() {
			if role.Surface().ID() != platform.SurfaceID(req.Surface) {
				continue
			}
			if req.Client != "" && string(role.Client()) != req.Client {
				continue
			}
			target = role
			matches++
		}
		if matches != 1 {
			return
		}
		data = PingWindowData{
			Client: string(target.Client()),
			Object: uint32(target.Object()),
			Serial: target.Ping(),
		}
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	switch {
	case matches == 0:
		return NewErrorResponse(fmt.Sprintf("No window with surface %d", req.Surface))
	case matches > 1:
		return NewErrorResponse(fmt.Sprintf("Surface %d is ambiguous, pass a client", req.Surface))
	}
	return ok(data)
}

func (s *Server) handleBreakGrabs() *Response {
	var data BreakGrabsData
	err := s.onLoop(func() {
		data.Cancelled = s.registry.CancelGrabs()
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	s.logger.Info("IPC: grabs broken", "cancelled", data.Cancelled)
	return ok(data)
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
