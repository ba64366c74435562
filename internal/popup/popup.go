// Package popup keeps the per-device stacks of open popups and the grab that
// dismisses them on a click elsewhere.
package popup

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/1broseidon/wlshell/internal/grab"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/serial"
)

// ErrStale is returned when a popup presents a serial that does not match
// the device's current grab serial, or belongs to a client other than the
// one owning the active chain. Serial 0 never matches.
var ErrStale = errors.New("stale popup serial")

// Popup is a window with the popup role.
type Popup interface {
	Client() platform.ClientID
	// PopupSerial is the serial the client presented in set_popup.
	PopupSerial() uint32
	// PopupGeometry is the popup's global geometry, used for hit testing.
	PopupGeometry() platform.Rect
	// PopupDone tells the client the popup was dismissed.
	PopupDone()
}

// PressFunc is called for a button press that lands inside an open popup,
// with the serial the client must present to open a nested popup.
type PressFunc func(p Popup, serial uint32)

// Manager owns one Grabber per pointer device, created on demand.
type Manager struct {
	arena    *grab.Arena
	serials  *serial.Allocator
	grabbers map[platform.DeviceID]*Grabber
	logger   *slog.Logger

	// OnPressInside, when set, is called for presses inside an open popup.
	OnPressInside PressFunc
}

// NewManager creates a manager sharing the given arena and serial allocator.
func NewManager(arena *grab.Arena, serials *serial.Allocator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		arena:    arena,
		serials:  serials,
		grabbers: make(map[platform.DeviceID]*Grabber),
		logger:   logger,
	}
}

// GrabberFor returns the grabber for p, creating it the first time.
func (m *Manager) GrabberFor(p platform.Pointer) *Grabber {
	if g, ok := m.grabbers[p.ID()]; ok {
		return g
	}
	g := &Grabber{manager: m, pointer: p}
	m.grabbers[p.ID()] = g
	return g
}

// NotePress allocates the serial for a button press delivered to client on
// p. While no chain is open, that serial and client become the ones a new
// popup must present.
func (m *Manager) NotePress(p platform.Pointer, client platform.ClientID) uint32 {
	s := m.serials.Replace(serial.KindPopupGrab, p.ID())
	g := m.GrabberFor(p)
	if len(g.stack) == 0 {
		g.serial = s
		g.client = client
	}
	return s
}

// ForgetDevice drops the grabber of a device that went away, dismissing its
// chain first.
func (m *Manager) ForgetDevice(id platform.DeviceID) {
	g, ok := m.grabbers[id]
	if !ok {
		return
	}
	g.DismissAll()
	m.serials.Forget(id)
	delete(m.grabbers, id)
}

// StackInfo describes one device's popup chain.
type StackInfo struct {
	Device platform.DeviceID
	Serial uint32
	Client platform.ClientID
	Popups []Popup
}

// Stacks lists the grabbers that have an open chain, ordered by device.
func (m *Manager) Stacks() []StackInfo {
	var out []StackInfo
	for id, g := range m.grabbers {
		if len(g.stack) == 0 {
			continue
		}
		out = append(out, StackInfo{
			Device: id,
			Serial: g.serial,
			Client: g.client,
			Popups: slices.Clone(g.stack),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// Grabber is the popup stack of one pointer device. While the stack is not
// empty it holds the device's exclusive grab.
type Grabber struct {
	manager *Manager
	pointer platform.Pointer
	handle  grab.Handle
	stack   []Popup
	serial  uint32
	client  platform.ClientID
}

var _ platform.GrabHandler = (*Grabber)(nil)

// Serial returns the serial a popup must present to join the chain.
func (g *Grabber) Serial() uint32 { return g.serial }

// Client returns the client owning the chain, or "" when unowned.
func (g *Grabber) Client() platform.ClientID { return g.client }

// Depth returns the number of open popups.
func (g *Grabber) Depth() int { return len(g.stack) }

// Contains reports whether p is in the chain.
func (g *Grabber) Contains(p Popup) bool {
	return slices.Contains(g.stack, p)
}

// Top returns the most recently admitted popup.
func (g *Grabber) Top() (Popup, bool) {
	if len(g.stack) == 0 {
		return nil, false
	}
	return g.stack[len(g.stack)-1], true
}

// Admit pushes p on the chain when its serial matches. A mismatching popup
// is told it is done right away and the chain's owning client is cleared;
// the stack itself is left alone.
func (g *Grabber) Admit(p Popup) error {
	if g.Contains(p) {
		return nil
	}
	if g.serial == 0 || p.PopupSerial() != g.serial || (g.client != "" && g.client != p.Client()) {
		g.manager.logger.Warn("rejecting stale popup",
			"device", g.pointer.ID(),
			"client", p.Client(),
			"serial", p.PopupSerial(),
			"grab_serial", g.serial)
		g.client = ""
		p.PopupDone()
		return fmt.Errorf("%w: got %d, want %d", ErrStale, p.PopupSerial(), g.serial)
	}

	if len(g.stack) == 0 {
		h, err := g.manager.arena.Acquire(g.pointer, grab.KindPopup, g)
		if err != nil {
			p.PopupDone()
			return err
		}
		g.handle = h
	}
	g.client = p.Client()
	g.stack = append(g.stack, p)
	g.manager.logger.Debug("popup admitted", "device", g.pointer.ID(), "depth", len(g.stack))
	return nil
}

// Dismiss closes p and every popup above it, top first, and returns how many
// were closed. The chain is detached before anyone is notified, so a popup
// destroyed from within PopupDone finds nothing left to remove.
func (g *Grabber) Dismiss(p Popup) int {
	idx := slices.Index(g.stack, p)
	if idx < 0 {
		return 0
	}
	closed := slices.Clone(g.stack[idx:])
	clear(g.stack[idx:])
	g.stack = g.stack[:idx]

	if len(g.stack) == 0 {
		// A closed chain needs a new press to reopen.
		g.serial = 0
		g.client = ""
		g.manager.arena.Release(g.handle)
		g.handle = grab.Handle{}
	}

	for i := len(closed) - 1; i >= 0; i-- {
		closed[i].PopupDone()
	}
	g.manager.logger.Debug("popups dismissed", "device", g.pointer.ID(), "count", len(closed), "depth", len(g.stack))
	return len(closed)
}

// Remove dismisses p and everything above it because p went away, and clears
// the chain's owning client.
func (g *Grabber) Remove(p Popup) int {
	n := g.Dismiss(p)
	if n > 0 {
		g.client = ""
	}
	return n
}

// DismissAll closes the whole chain.
func (g *Grabber) DismissAll() int {
	if len(g.stack) == 0 {
		return 0
	}
	return g.Dismiss(g.stack[0])
}

func (g *Grabber) Motion(platform.Point) {}

// Button gives every press a new serial, so serials from before it go
// stale. A press inside a popup makes that serial the one a nested popup
// must present; a press outside every popup dismisses the chain.
func (g *Grabber) Button(_ uint32, pressed bool) {
	if !pressed || len(g.stack) == 0 {
		return
	}
	s := g.manager.serials.Replace(serial.KindPopupGrab, g.pointer.ID())
	pos := g.pointer.Position()
	for i := len(g.stack) - 1; i >= 0; i-- {
		p := g.stack[i]
		if p.PopupGeometry().Contains(pos) {
			g.serial = s
			if fn := g.manager.OnPressInside; fn != nil {
				fn(p, s)
			}
			return
		}
	}
	g.DismissAll()
}

// Cancel is called when the device grab is torn down externally.
func (g *Grabber) Cancel() {
	g.handle = grab.Handle{}
	g.DismissAll()
}
