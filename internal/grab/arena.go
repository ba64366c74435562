// Package grab arbitrates exclusive ownership of pointer devices and
// implements the interactive move and resize operations.
package grab

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/1broseidon/wlshell/internal/platform"
)

// ErrAlreadyHeld is returned by Acquire when the device is already grabbed.
var ErrAlreadyHeld = errors.New("pointer device already grabbed")

// Handle identifies one acquisition of a device. A handle outlives its grab;
// operations on a stale handle are no-ops.
type Handle struct {
	Device platform.DeviceID
	gen    uint64
}

// Valid reports whether h came from a successful Acquire.
func (h Handle) Valid() bool {
	return h.gen != 0
}

// Info describes an active grab.
type Info struct {
	Device platform.DeviceID
	Kind   string
}

type slot struct {
	gen     uint64
	kind    string
	pointer platform.Pointer
	handler platform.GrabHandler
}

// Arena holds at most one grab per pointer device.
type Arena struct {
	slots  map[platform.DeviceID]*slot
	gen    uint64
	logger *slog.Logger
}

// NewArena creates an empty arena.
func NewArena(logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Arena{
		slots:  make(map[platform.DeviceID]*slot),
		logger: logger,
	}
}

// Acquire installs h as the exclusive handler of p's event stream. The
// requester is rejected outright when the device is held.
func (a *Arena) Acquire(p platform.Pointer, kind string, h platform.GrabHandler) (Handle, error) {
	id := p.ID()
	if held, ok := a.slots[id]; ok {
		return Handle{}, fmt.Errorf("%w: device %d held by %s grab", ErrAlreadyHeld, id, held.kind)
	}

	a.gen++
	s := &slot{gen: a.gen, kind: kind, pointer: p, handler: h}
	a.slots[id] = s
	handle := Handle{Device: id, gen: s.gen}

	if err := p.StartGrab(&router{arena: a, handle: handle}); err != nil {
		delete(a.slots, id)
		return Handle{}, fmt.Errorf("device %d refused %s grab: %w", id, kind, err)
	}
	a.logger.Debug("grab acquired", "device", id, "kind", kind)
	return handle, nil
}

// Release ends the grab identified by h and hands the device back. It
// returns false if h is no longer current.
func (a *Arena) Release(h Handle) bool {
	s := a.take(h)
	if s == nil {
		return false
	}
	s.pointer.EndGrab()
	a.logger.Debug("grab released", "device", h.Device, "kind", s.kind)
	return true
}

// Cancel forcibly ends the grab identified by h and notifies its handler.
func (a *Arena) Cancel(h Handle) bool {
	s := a.take(h)
	if s == nil {
		return false
	}
	s.pointer.EndGrab()
	a.logger.Debug("grab cancelled", "device", h.Device, "kind", s.kind)
	s.handler.Cancel()
	return true
}

// CancelAll cancels every active grab and returns how many were cancelled.
func (a *Arena) CancelAll() int {
	handles := make([]Handle, 0, len(a.slots))
	for id, s := range a.slots {
		handles = append(handles, Handle{Device: id, gen: s.gen})
	}
	n := 0
	for _, h := range handles {
		if a.Cancel(h) {
			n++
		}
	}
	return n
}

// Current reports whether h still owns its device.
func (a *Arena) Current(h Handle) bool {
	s, ok := a.slots[h.Device]
	return ok && s.gen == h.gen
}

// Held reports whether the device has an active grab.
func (a *Arena) Held(device platform.DeviceID) bool {
	_, ok := a.slots[device]
	return ok
}

// Active lists active grabs ordered by device.
func (a *Arena) Active() []Info {
	out := make([]Info, 0, len(a.slots))
	for id, s := range a.slots {
		out = append(out, Info{Device: id, Kind: s.kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

func (a *Arena) take(h Handle) *slot {
	s, ok := a.slots[h.Device]
	if !ok || s.gen != h.gen {
		return nil
	}
	delete(a.slots, h.Device)
	return s
}

func (a *Arena) handler(h Handle) platform.GrabHandler {
	s, ok := a.slots[h.Device]
	if !ok || s.gen != h.gen {
		return nil
	}
	return s.handler
}

// router is what the pointer sees. Events that arrive after the grab ended
// are dropped.
type router struct {
	arena  *Arena
	handle Handle
}

func (r *router) Motion(pos platform.Point) {
	if h := r.arena.handler(r.handle); h != nil {
		h.Motion(pos)
	}
}

func (r *router) Button(button uint32, pressed bool) {
	if h := r.arena.handler(r.handle); h != nil {
		h.Button(button, pressed)
	}
}

func (r *router) Cancel() {
	r.arena.Cancel(r.handle)
}
