package headless

import "github.com/1broseidon/wlshell/internal/platform"

// Pointer is a synthetic pointer driven by MoveTo, Press and Release.
type Pointer struct {
	id      platform.DeviceID
	pos     platform.Point
	handler platform.GrabHandler
	starts  int
	ends    int
	refuse  error
}

var _ platform.Pointer = (*Pointer)(nil)

// NewPointer creates a pointer at the origin.
func NewPointer(id platform.DeviceID) *Pointer {
	return &Pointer{id: id}
}

func (p *Pointer) ID() platform.DeviceID     { return p.id }
func (p *Pointer) Position() platform.Point { return p.pos }

func (p *Pointer) StartGrab(h platform.GrabHandler) error {
	if p.refuse != nil {
		return p.refuse
	}
	p.handler = h
	p.starts++
	return nil
}

// RefuseGrabs makes StartGrab fail with err until called again with nil.
func (p *Pointer) RefuseGrabs(err error) {
	p.refuse = err
}

func (p *Pointer) EndGrab() {
	if p.handler == nil {
		return
	}
	p.handler = nil
	p.ends++
}

// Grabbed reports whether a grab handler is installed.
func (p *Pointer) Grabbed() bool {
	return p.handler != nil
}

// GrabCounts returns how many grabs were started and ended on this pointer.
func (p *Pointer) GrabCounts() (started, ended int) {
	return p.starts, p.ends
}

// Warp sets the position without generating motion.
func (p *Pointer) Warp(pos platform.Point) {
	p.pos = pos
}

// MoveTo sets the position and forwards motion to the grab handler.
func (p *Pointer) MoveTo(pos platform.Point) {
	p.pos = pos
	if p.handler != nil {
		p.handler.Motion(pos)
	}
}

// Press forwards a button press to the grab handler. It reports whether the
// event was consumed by a grab.
func (p *Pointer) Press(button uint32) bool {
	if p.handler == nil {
		return false
	}
	p.handler.Button(button, true)
	return true
}

// Release forwards a button release to the grab handler.
func (p *Pointer) Release(button uint32) bool {
	if p.handler == nil {
		return false
	}
	p.handler.Button(button, false)
	return true
}

// Unplug cancels any grab as if the device went away.
func (p *Pointer) Unplug() {
	if h := p.handler; h != nil {
		h.Cancel()
	}
}
