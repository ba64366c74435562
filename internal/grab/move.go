package grab

import "github.com/1broseidon/wlshell/internal/platform"

const (
	KindMove   = "move"
	KindResize = "resize"
	KindPopup  = "popup"
)

// Target is the window an interactive grab manipulates.
type Target interface {
	Position() platform.Point
	Size() platform.Size
	Move(pos platform.Point)
	Configure(edges platform.Edges, size platform.Size)
	// GrabEnded is called exactly once when the grab is over, however it ended.
	GrabEnded(g Grab)
}

// Grab is an interactive operation bound to one window and one pointer.
type Grab interface {
	platform.GrabHandler
	Kind() string
	Handle() Handle
	// End releases the device and finishes the grab. Safe to call twice.
	End()
}

// buttons records presses seen during a grab. The button that started the
// grab was pressed before it, so its release is the first release of a
// button not in the set.
type buttons map[uint32]struct{}

// ends reports whether the event releases the button that started the grab.
func (b buttons) ends(button uint32, pressed bool) bool {
	if pressed {
		b[button] = struct{}{}
		return false
	}
	if _, ok := b[button]; ok {
		delete(b, button)
		return false
	}
	return true
}

// Move drags a window so it keeps its offset from the pointer.
type Move struct {
	arena   *Arena
	handle  Handle
	target  Target
	offset  platform.Point
	pressed buttons
	done    bool
}

var _ Grab = (*Move)(nil)

// StartMove grabs p and starts dragging target.
func StartMove(arena *Arena, p platform.Pointer, target Target) (*Move, error) {
	m := &Move{
		arena:   arena,
		target:  target,
		offset:  p.Position().Sub(target.Position()),
		pressed: buttons{},
	}
	h, err := arena.Acquire(p, KindMove, m)
	if err != nil {
		return nil, err
	}
	m.handle = h
	return m, nil
}

func (m *Move) Kind() string   { return KindMove }
func (m *Move) Handle() Handle { return m.handle }

// Offset is the pointer position relative to the window origin at grab time.
func (m *Move) Offset() platform.Point {
	return m.offset
}

func (m *Move) Motion(pos platform.Point) {
	if m.done {
		return
	}
	m.target.Move(pos.Sub(m.offset))
}

func (m *Move) Button(button uint32, pressed bool) {
	if m.pressed.ends(button, pressed) {
		m.End()
	}
}

func (m *Move) Cancel() {
	m.End()
}

func (m *Move) End() {
	if m.done {
		return
	}
	m.done = true
	m.arena.Release(m.handle)
	m.target.GrabEnded(m)
}
