package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/shell"
	"github.com/1broseidon/wlshell/internal/surface"
	"github.com/google/uuid"
)

const (
	maxLineBytes = 64 * 1024
	outboxDepth  = 256
)

var (
	errUnknownOp    = errors.New("unknown op")
	errAlreadyBound = errors.New("already bound")
	errNoInput      = errors.New("backend does not accept injected input")
)

// conn is one client connection. Everything except the reader and writer
// goroutines runs on the event loop.
type conn struct {
	server   *Server
	id       platform.ClientID
	nc       net.Conn
	surfaces *surface.Store
	logger   *slog.Logger

	outbox chan Message
	bound  bool
	closed bool
}

var _ shell.EventSink = (*conn)(nil)

func newConn(s *Server, nc net.Conn) *conn {
	id := platform.ClientID(uuid.NewString())
	return &conn{
		server:   s,
		id:       id,
		nc:       nc,
		surfaces: surface.NewStore(id),
		logger:   s.logger.With("client", id),
		outbox:   make(chan Message, outboxDepth),
	}
}

func (c *conn) readLoop(ctx context.Context) {
	sc := bufio.NewScanner(c.nc)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		m, perr := ParseMessage(line)
		err := c.server.loop.Call(ctx, func() {
			if perr != nil {
				c.ProtocolError(0, perr.Error())
				return
			}
			c.handle(m)
		})
		if err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("read failed", "error", err)
	}
}

func (c *conn) writeLoop() {
	defer c.nc.Close()
	for m := range c.outbox {
		data, err := m.Marshal()
		if err != nil {
			c.logger.Error("failed to encode event", "op", m.Op, "error", err)
			continue
		}
		if _, err := c.nc.Write(data); err != nil {
			c.logger.Debug("write failed", "error", err)
			return
		}
	}
}

// finish drops the client's roles and surfaces. Runs once the reader stops.
func (c *conn) finish() {
	err := c.server.loop.Call(context.Background(), func() {
		if c.bound {
			c.server.registry.DisconnectClient(c.id)
		}
		for _, s := range c.surfaces.All() {
			c.surfaces.Remove(s.ID())
		}
		c.shutdown()
	})
	if err != nil {
		c.nc.Close()
	}
}

// shutdown stops event delivery; the writer flushes what is queued and
// closes the socket.
func (c *conn) shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

func (c *conn) send(m Message) {
	if c.closed {
		return
	}
	select {
	case c.outbox <- m:
	default:
		c.logger.Warn("client not reading events, disconnecting")
		c.shutdown()
	}
}

func (c *conn) Ping(object platform.ObjectID, serial uint32) {
	c.send(Message{Op: EventPing, Object: uint32(object), Serial: serial})
}

func (c *conn) Configure(object platform.ObjectID, edges platform.Edges, width, height int) {
	c.send(Message{Op: EventConfigure, Object: uint32(object), Edges: uint32(edges), Width: width, Height: height})
}

func (c *conn) PopupDone(object platform.ObjectID) {
	c.send(Message{Op: EventPopupDone, Object: uint32(object)})
}

func (c *conn) PointerButton(serial, button uint32, pressed bool) {
	c.send(Message{Op: EventButton, Serial: serial, Button: button, Pressed: pressed})
}

func (c *conn) ProtocolError(object platform.ObjectID, message string) {
	c.send(Message{Op: EventError, Object: uint32(object), Message: message})
}

// handle applies one request and reports failures the client must hear
// about. Grab conflicts, stale popups and spurious pongs are dropped
// silently; the registry has already logged them.
func (c *conn) handle(m *Message) {
	err := c.apply(m)
	switch {
	case err == nil:
	case errors.Is(err, shell.ErrProtocolVersionMismatch):
		c.shutdown()
	case shell.IsFatal(err):
		c.ProtocolError(platform.ObjectID(m.Object), err.Error())
		c.shutdown()
	case errors.Is(err, shell.ErrConflictingGrab),
		errors.Is(err, shell.ErrStalePopup),
		errors.Is(err, shell.ErrSpuriousPong):
	default:
		c.ProtocolError(platform.ObjectID(m.Object), fmt.Sprintf("%s: %v", m.Op, err))
	}
}

func (c *conn) apply(m *Message) error {
	reg := c.server.registry
	if m.Op == OpBind {
		if c.bound {
			return errAlreadyBound
		}
		if _, err := reg.BindClient(c.id, m.Version, c); err != nil {
			return err
		}
		c.bound = true
		c.send(Message{Op: EventBound, Client: string(c.id), Version: m.Version})
		return nil
	}
	if !c.bound {
		return fmt.Errorf("%w: %s before bind", shell.ErrNotBound, m.Op)
	}

	obj := platform.ObjectID(m.Object)
	switch m.Op {
	case OpCreateSurface:
		_, err := c.surfaces.Create(platform.SurfaceID(m.Surface), platform.Size{Width: m.Width, Height: m.Height})
		return err
	case OpDestroySurface:
		s, err := c.surfaces.Get(platform.SurfaceID(m.Surface))
		if err != nil {
			return err
		}
		if role, ok := reg.RoleForSurface(s); ok {
			reg.DestroyRole(c.id, role.Object())
		}
		c.surfaces.Remove(s.ID())
		return nil
	case OpAttach:
		s, err := c.surfaces.Get(platform.SurfaceID(m.Surface))
		if err != nil {
			return err
		}
		s.Attach(m.Visible)
		return nil
	case OpCommitSize:
		s, err := c.surfaces.Get(platform.SurfaceID(m.Surface))
		if err != nil {
			return err
		}
		s.Commit(platform.Size{Width: m.Width, Height: m.Height})
		return nil
	case OpCreateRole:
		s, err := c.surfaces.Get(platform.SurfaceID(m.Surface))
		if err != nil {
			return fmt.Errorf("%w: %v", shell.ErrUnknownSurface, err)
		}
		_, err = reg.CreateRole(c.id, obj, s)
		return err
	case OpDestroy:
		if !reg.DestroyRole(c.id, obj) {
			return fmt.Errorf("%w: %d", shell.ErrUnknownObject, obj)
		}
		return nil
	case OpPointerMotion:
		if c.server.input == nil {
			return errNoInput
		}
		return c.server.input.PointerMotion(m.Seat, platform.Point{X: m.X, Y: m.Y})
	case OpPointerButton:
		return c.pointerButton(m)
	}

	req, err := c.request(m)
	if err != nil {
		return err
	}
	return reg.Dispatch(c.id, req)
}

// pointerButton injects a button event. A press no grab consumed is
// delivered to this client with a fresh serial, the one set_popup expects.
func (c *conn) pointerButton(m *Message) error {
	if c.server.input == nil {
		return errNoInput
	}
	consumed, err := c.server.input.PointerButton(m.Seat, m.Button, m.Pressed)
	if err != nil || consumed {
		return err
	}
	reg := c.server.registry
	var s uint32
	if m.Pressed {
		if s, err = reg.NotePointerPress(m.Seat, c.id); err != nil {
			return err
		}
	} else {
		s = reg.Serials().Next()
	}
	c.PointerButton(s, m.Button, m.Pressed)
	return nil
}

// request converts a role request into its shell form.
func (c *conn) request(m *Message) (shell.Request, error) {
	obj := platform.ObjectID(m.Object)
	switch m.Op {
	case OpSetToplevel:
		return shell.SetToplevel{Object: obj}, nil
	case OpSetTransient:
		return shell.SetTransient{Object: obj, Parent: c.parent(m.Parent), X: m.X, Y: m.Y, Flags: m.Flags}, nil
	case OpSetFullscreen:
		return shell.SetFullscreen{Object: obj, Method: m.Method, Framerate: m.Framerate, Output: m.Output}, nil
	case OpSetMaximized:
		return shell.SetMaximized{Object: obj, Output: m.Output}, nil
	case OpSetPopup:
		return shell.SetPopup{Object: obj, Seat: m.Seat, Serial: m.Serial, Parent: c.parent(m.Parent), X: m.X, Y: m.Y, Flags: m.Flags}, nil
	case OpMove:
		return shell.Move{Object: obj, Seat: m.Seat, Serial: m.Serial}, nil
	case OpResize:
		return shell.Resize{Object: obj, Seat: m.Seat, Serial: m.Serial, Edges: platform.Edges(m.Edges)}, nil
	case OpSetTitle:
		return shell.SetTitle{Object: obj, Title: m.Text}, nil
	case OpSetClass:
		return shell.SetClass{Object: obj, Class: m.Text}, nil
	case OpPong:
		return shell.Pong{Object: obj, Serial: m.Serial}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownOp, m.Op)
}

// parent returns the surface with id, or a nil interface when there is none.
func (c *conn) parent(id uint32) platform.Surface {
	s, err := c.surfaces.Get(platform.SurfaceID(id))
	if err != nil {
		return nil
	}
	return s
}
