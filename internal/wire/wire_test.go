package wire

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/wlshell/internal/headless"
	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/shell"
)

type harness struct {
	t        *testing.T
	ctx      context.Context
	backend  *headless.Backend
	registry *shell.Registry
	loop     *loop.Loop
	server   *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := headless.New([]headless.OutputSpec{
		{Name: "out0", Geometry: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}},
	}, []string{"seat0"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(0, nil)
	go l.Run(ctx)
	reg := shell.NewRegistry(shell.Config{Backend: backend})
	srv := NewServer(ServerConfig{Registry: reg, Loop: l, Input: backend})
	return &harness{t: t, ctx: ctx, backend: backend, registry: reg, loop: l, server: srv}
}

// call runs fn on the event loop.
func (h *harness) call(fn func()) {
	h.t.Helper()
	if err := h.loop.Call(h.ctx, fn); err != nil {
		h.t.Fatalf("loop.Call() error: %v", err)
	}
}

type testClient struct {
	t    *testing.T
	nc   net.Conn
	r    *bufio.Reader
	done chan struct{}
}

func (h *harness) connect() *testClient {
	h.t.Helper()
	serverSide, clientSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.server.ServeConn(h.ctx, serverSide)
	}()
	c := &testClient{t: h.t, nc: clientSide, r: bufio.NewReader(clientSide), done: done}
	h.t.Cleanup(func() { clientSide.Close() })
	return c
}

func (c *testClient) send(m Message) {
	c.t.Helper()
	data, err := m.Marshal()
	if err != nil {
		c.t.Fatalf("Marshal() error: %v", err)
	}
	c.raw(data)
}

func (c *testClient) raw(data []byte) {
	c.t.Helper()
	c.nc.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.nc.Write(data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) next() (Message, error) {
	c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return Message{}, err
	}
	m, err := ParseMessage(line)
	if err != nil {
		return Message{}, err
	}
	return *m, nil
}

func (c *testClient) expect(op Op) Message {
	c.t.Helper()
	m, err := c.next()
	if err != nil {
		c.t.Fatalf("waiting for %s: %v", op, err)
	}
	if m.Op != op {
		c.t.Fatalf("event = %+v, want op %s", m, op)
	}
	return m
}

// sync waits until every request sent so far has been handled and returns
// the events they produced. Requests are handled in order, so the error for
// an unknown op marks the point.
func (c *testClient) sync() []Message {
	c.t.Helper()
	c.send(Message{Op: "sync"})
	var events []Message
	for {
		m, err := c.next()
		if err != nil {
			c.t.Fatalf("sync: %v", err)
		}
		if m.Op == EventError && strings.HasPrefix(m.Message, "sync:") {
			return events
		}
		events = append(events, m)
	}
}

func (c *testClient) bind() platform.ClientID {
	c.t.Helper()
	c.send(Message{Op: OpBind, Version: shell.DefaultProtocolVersion})
	m := c.expect(EventBound)
	if m.Client == "" {
		c.t.Fatalf("bound event has no client id")
	}
	return platform.ClientID(m.Client)
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	for {
		m, err := c.next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return
		}
		if err != nil {
			c.t.Fatalf("expected close, got %v", err)
		}
		c.t.Logf("event before close: %+v", m)
	}
}

func TestBindAssignsDistinctClients(t *testing.T) {
	h := newHarness(t)
	a := h.connect().bind()
	b := h.connect().bind()
	if a == b {
		t.Fatalf("clients share id %s", a)
	}
	h.call(func() {
		if !h.registry.Bound(a) || !h.registry.Bound(b) {
			t.Fatalf("expected both clients bound")
		}
	})
}

func TestBindVersionMismatchClosesConnection(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.send(Message{Op: OpBind, Version: 2})

	m := c.expect(EventError)
	if m.Message != "incompatible version, server is 1 client wants 2" {
		t.Fatalf("error message = %q", m.Message)
	}
	c.expectClosed()
}

func TestRequestBeforeBindIsFatal(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 10, Height: 10})

	m := c.expect(EventError)
	if !strings.Contains(m.Message, "not bound") {
		t.Fatalf("error message = %q", m.Message)
	}
	c.expectClosed()
}

func TestMalformedLinesAreReported(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.bind()

	c.raw([]byte("{not json\n"))
	c.send(Message{Op: "frobnicate"})
	events := c.sync()
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2 errors", events)
	}
	if !strings.Contains(events[0].Message, "failed to parse") {
		t.Fatalf("first error = %q", events[0].Message)
	}
	if !strings.Contains(events[1].Message, "unknown op") {
		t.Fatalf("second error = %q", events[1].Message)
	}
}

func TestMaximizeSendsConfigure(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	id := c.bind()

	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 640, Height: 480})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpSetMaximized, Object: 10})
	events := c.sync()
	if len(events) != 1 || events[0].Op != EventConfigure {
		t.Fatalf("events = %+v, want one configure", events)
	}
	if events[0].Object != 10 || events[0].Width != 1920 || events[0].Height != 1080 {
		t.Fatalf("configure = %+v", events[0])
	}

	h.call(func() {
		role, err := h.registry.Role(id, 10)
		if err != nil {
			t.Fatalf("Role() error: %v", err)
		}
		if role.State() != platform.StateMaximized {
			t.Fatalf("State() = %v, want maximized", role.State())
		}
	})
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []Message
		wantErr string
	}{
		{
			name:    "duplicate role",
			msgs:    []Message{{Op: OpCreateRole, Object: 11, Surface: 1}},
			wantErr: "already has a role",
		},
		{
			name:    "role for unknown surface",
			msgs:    []Message{{Op: OpCreateRole, Object: 11, Surface: 9}},
			wantErr: "unknown surface",
		},
		{
			name:    "unknown object",
			msgs:    []Message{{Op: OpSetToplevel, Object: 99}},
			wantErr: "unknown object",
		},
		{
			name:    "unknown output",
			msgs:    []Message{{Op: OpSetFullscreen, Object: 10, Output: "nope"}},
			wantErr: "unknown output",
		},
		{
			name:    "unknown seat",
			msgs:    []Message{{Op: OpMove, Object: 10, Seat: "seat9"}},
			wantErr: "unknown seat",
		},
		{
			name:    "duplicate surface",
			msgs:    []Message{{Op: OpCreateSurface, Surface: 1, Width: 1, Height: 1}},
			wantErr: "create_surface",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := h.connect()
			c.bind()
			c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 100, Height: 100})
			c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
			for _, m := range tt.msgs {
				c.send(m)
			}
			events := c.sync()
			if len(events) != 1 || events[0].Op != EventError {
				t.Fatalf("events = %+v, want one error", events)
			}
			if !strings.Contains(events[0].Message, tt.wantErr) {
				t.Fatalf("error = %q, want %q", events[0].Message, tt.wantErr)
			}
		})
	}
}

func TestSilentRejections(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 100, Height: 100})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpPong, Object: 10, Serial: 12345})
	c.send(Message{Op: OpMove, Object: 10, Seat: "seat0"})
	c.send(Message{Op: OpResize, Object: 10, Seat: "seat0", Edges: uint32(platform.EdgeRight)})

	if events := c.sync(); len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
}

func TestPingPong(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 100, Height: 100})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.sync()

	h.call(func() { h.registry.PingAll() })
	ping := c.expect(EventPing)
	if ping.Object != 10 || ping.Serial == 0 {
		t.Fatalf("ping = %+v", ping)
	}
	c.send(Message{Op: OpPong, Object: 10, Serial: ping.Serial})
	c.sync()

	h.call(func() {
		if n := h.registry.Serials().Pending(); n != 0 {
			t.Fatalf("Pending() = %d, want 0", n)
		}
	})
}

func TestPopupDismissedByOutsideClick(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 400, Height: 300})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpAttach, Surface: 1, Visible: true})
	c.send(Message{Op: OpSetToplevel, Object: 10})
	c.send(Message{Op: OpCreateSurface, Surface: 2, Width: 50, Height: 50})
	c.send(Message{Op: OpCreateRole, Object: 20, Surface: 2})
	c.send(Message{Op: OpPointerMotion, Seat: "seat0", X: 10, Y: 10})
	c.send(Message{Op: OpPointerButton, Seat: "seat0", Button: 272, Pressed: true})

	press := c.expect(EventButton)
	if press.Serial == 0 || !press.Pressed {
		t.Fatalf("button = %+v", press)
	}

	c.send(Message{Op: OpSetPopup, Object: 20, Seat: "seat0", Serial: press.Serial, Parent: 1, X: 5, Y: 5})
	c.send(Message{Op: OpAttach, Surface: 2, Visible: true})
	if events := c.sync(); len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
	h.call(func() {
		stacks := h.registry.Popups().Stacks()
		if len(stacks) != 1 || len(stacks[0].Popups) != 1 {
			t.Fatalf("Stacks() = %+v, want one popup", stacks)
		}
	})

	c.send(Message{Op: OpPointerMotion, Seat: "seat0", X: 1000, Y: 1000})
	c.send(Message{Op: OpPointerButton, Seat: "seat0", Button: 272, Pressed: true})
	done := c.expect(EventPopupDone)
	if done.Object != 20 {
		t.Fatalf("popup_done = %+v, want object 20", done)
	}
	h.call(func() {
		if h.registry.Arena().Held(1) {
			t.Fatalf("device still grabbed after dismissal")
		}
	})
}

func TestStalePopupGetsPopupDone(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 400, Height: 300})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpCreateSurface, Surface: 2, Width: 50, Height: 50})
	c.send(Message{Op: OpCreateRole, Object: 20, Surface: 2})
	c.send(Message{Op: OpAttach, Surface: 2, Visible: true})
	c.send(Message{Op: OpSetPopup, Object: 20, Seat: "seat0", Serial: 777, Parent: 1})

	events := c.sync()
	if len(events) != 1 || events[0].Op != EventPopupDone || events[0].Object != 20 {
		t.Fatalf("events = %+v, want popup_done for 20", events)
	}
}

func TestDestroySurfaceDropsRole(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	id := c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 100, Height: 100})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpDestroySurface, Surface: 1})
	c.send(Message{Op: OpDestroy, Object: 10})

	events := c.sync()
	if len(events) != 1 || !strings.Contains(events[0].Message, "unknown object") {
		t.Fatalf("events = %+v, want unknown object for the second destroy", events)
	}
	h.call(func() {
		if _, err := h.registry.Role(id, 10); !errors.Is(err, shell.ErrUnknownObject) {
			t.Fatalf("Role() error = %v, want ErrUnknownObject", err)
		}
		if n := h.backend.LiveViews(); n != 0 {
			t.Fatalf("LiveViews() = %d, want 0", n)
		}
	})
}

func TestDisconnectDestroysRoles(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	id := c.bind()
	c.send(Message{Op: OpCreateSurface, Surface: 1, Width: 100, Height: 100})
	c.send(Message{Op: OpCreateRole, Object: 10, Surface: 1})
	c.send(Message{Op: OpMove, Object: 10, Seat: "seat0"})
	c.sync()

	c.nc.Close()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection not torn down")
	}

	h.call(func() {
		if h.registry.Bound(id) {
			t.Fatalf("client still bound after disconnect")
		}
		if h.registry.Arena().Held(1) {
			t.Fatalf("move grab survived disconnect")
		}
		if n := h.backend.LiveViews(); n != 0 {
			t.Fatalf("LiveViews() = %d, want 0", n)
		}
	})
	if n := h.server.Clients(); n != 0 {
		t.Fatalf("Clients() = %d, want 0", n)
	}
}

func TestNoInputBackend(t *testing.T) {
	h := newHarness(t)
	h.server.input = nil
	c := h.connect()
	c.bind()
	c.send(Message{Op: OpPointerMotion, Seat: "seat0", X: 1, Y: 1})
	events := c.sync()
	if len(events) != 1 || !strings.Contains(events[0].Message, "injected input") {
		t.Fatalf("events = %+v", events)
	}
}

func TestListenServeClose(t *testing.T) {
	h := newHarness(t)
	dir, err := os.MkdirTemp("", "wl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "wlshell-0")

	if err := h.server.Listen(path); err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- h.server.Serve(h.ctx) }()

	nc, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()
	c := &testClient{t: t, nc: nc, r: bufio.NewReader(nc)}
	c.bind()

	if err := h.server.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket left behind: %v", err)
	}
}
