//go:build linux

package platform

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/wlshell/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// X11Seat is the only seat the X11 backend offers: the core pointer.
const X11Seat = "seat0"

// LinuxBackendConfig configures a LinuxBackend.
type LinuxBackendConfig struct {
	// Post runs fn on the shell event loop. Pointer events arrive on the X
	// event goroutine and are handed over through it.
	Post func(fn func())
	// OnPress receives, on the event loop, every press no grab consumed.
	OnPress func(seat string, button uint32, pos Point)
	Logger  *slog.Logger
}

// LinuxBackend hosts the shell inside an X11 session: outputs are the RandR
// monitors and the seat pointer is the X core pointer.
type LinuxBackend struct {
	conn    *x11.Connection
	post    func(fn func())
	onPress func(seat string, button uint32, pos Point)
	logger  *slog.Logger
	outputs []*linuxOutput
	pointer *x11Pointer
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, cfg LinuxBackendConfig) (*LinuxBackend, error) {
	if cfg.Post == nil {
		return nil, fmt.Errorf("linux backend needs an event loop")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &LinuxBackend{conn: conn, post: cfg.Post, onPress: cfg.OnPress, logger: logger}
	b.pointer = &x11Pointer{backend: b, id: 1}
	if err := b.Refresh(); err != nil {
		return nil, err
	}
	conn.OnPointer(x11.PointerHandlers{
		Motion: func(x, y int) {
			b.post(func() { b.pointer.motion(Point{X: x, Y: y}) })
		},
		Button: func(button uint32, pressed bool, x, y int) {
			b.post(func() { b.pointer.button(button, pressed, Point{X: x, Y: y}) })
		},
	})
	return b, nil
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay(display string, cfg LinuxBackendConfig) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	b, err := NewLinuxBackend(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Refresh re-reads the monitor layout. Must run on the event loop.
func (b *LinuxBackend) Refresh() error {
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no monitors found")
	}
	outputs := make([]*linuxOutput, 0, len(monitors))
	for _, m := range monitors {
		outputs = append(outputs, outputFromMonitor(m))
	}
	b.outputs = outputs
	b.logger.Info("outputs loaded", "count", len(outputs))
	return nil
}

func (b *LinuxBackend) Outputs() []Output {
	out := make([]Output, len(b.outputs))
	for i, o := range b.outputs {
		out[i] = o
	}
	return out
}

func (b *LinuxBackend) Primary() Output {
	if len(b.outputs) == 0 {
		return nil
	}
	return b.outputs[0]
}

func (b *LinuxBackend) Lookup(name string) (Output, bool) {
	for _, o := range b.outputs {
		if o.name == name {
			return o, true
		}
	}
	return nil, false
}

func (b *LinuxBackend) Pointer(seat string) (Pointer, bool) {
	if seat != X11Seat {
		return nil, false
	}
	return b.pointer, true
}

func (b *LinuxBackend) CreateView(surface SurfaceID, output Output) View {
	return &linuxView{output: output}
}

type linuxOutput struct {
	name      string
	geometry  Rect
	available Rect
}

func outputFromMonitor(m x11.Monitor) *linuxOutput {
	return &linuxOutput{
		name:      m.Name,
		geometry:  Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
		available: Rect{X: m.Work.X, Y: m.Work.Y, Width: m.Work.Width, Height: m.Work.Height},
	}
}

func (o *linuxOutput) Name() string            { return o.name }
func (o *linuxOutput) Geometry() Rect          { return o.geometry }
func (o *linuxOutput) AvailableGeometry() Rect { return o.available }

type linuxView struct {
	output Output
}

func (v *linuxView) Output() Output { return v.output }
func (v *linuxView) Destroy()       {}

// x11Pointer is the core pointer. All of its state is owned by the event loop.
type x11Pointer struct {
	backend *LinuxBackend
	id      DeviceID
	pos     Point
	handler GrabHandler
}

func (p *x11Pointer) ID() DeviceID { return p.id }

func (p *x11Pointer) Position() Point {
	if p.handler != nil {
		return p.pos
	}
	if x, y, err := p.backend.conn.QueryPointer(); err == nil {
		p.pos = Point{X: x, Y: y}
	}
	return p.pos
}

func (p *x11Pointer) StartGrab(h GrabHandler) error {
	p.Position()
	if err := p.backend.conn.GrabPointer(); err != nil {
		p.backend.logger.Warn("pointer grab failed", "error", err)
		return err
	}
	p.handler = h
	return nil
}

func (p *x11Pointer) EndGrab() {
	if p.handler == nil {
		return
	}
	p.handler = nil
	if err := p.backend.conn.UngrabPointer(); err != nil {
		p.backend.logger.Warn("pointer ungrab failed", "error", err)
	}
}

func (p *x11Pointer) motion(pos Point) {
	p.pos = pos
	if p.handler != nil {
		p.handler.Motion(pos)
	}
}

func (p *x11Pointer) button(button uint32, pressed bool, pos Point) {
	p.pos = pos
	switch {
	case p.handler != nil:
		p.handler.Button(button, pressed)
	case pressed && p.backend.onPress != nil:
		p.backend.onPress(X11Seat, button, pos)
	}
}
