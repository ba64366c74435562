// Package headless is a display backend with no real hardware: outputs come
// from configuration and every seat owns a synthetic pointer.
package headless

import (
	"errors"
	"fmt"
	"sort"

	"github.com/1broseidon/wlshell/internal/platform"
)

// ErrUnknownSeat is returned when input is injected for a seat that does not
// exist.
var ErrUnknownSeat = errors.New("unknown seat")

// OutputSpec describes a fake screen.
type OutputSpec struct {
	Name      string
	Geometry  platform.Rect
	Available platform.Rect
}

// Output is a fixed-geometry output.
type Output struct {
	name      string
	geometry  platform.Rect
	available platform.Rect
}

var _ platform.Output = (*Output)(nil)

// NewOutput creates an output. An invalid available rect falls back to the
// full geometry.
func NewOutput(spec OutputSpec) *Output {
	avail := spec.Available
	if !avail.IsValid() {
		avail = spec.Geometry
	}
	return &Output{name: spec.Name, geometry: spec.Geometry, available: avail}
}

func (o *Output) Name() string                     { return o.name }
func (o *Output) Geometry() platform.Rect          { return o.geometry }
func (o *Output) AvailableGeometry() platform.Rect { return o.available }

// Backend implements platform.Backend in memory.
type Backend struct {
	outputs []*Output
	seats   map[string]*Pointer
	views   map[*View]struct{}
}

var _ platform.Backend = (*Backend)(nil)

// New builds a backend with the given outputs and seat names. Device ids are
// assigned in seat order starting at 1.
func New(outputs []OutputSpec, seats []string) *Backend {
	b := &Backend{
		seats: make(map[string]*Pointer),
		views: make(map[*View]struct{}),
	}
	for _, spec := range outputs {
		b.outputs = append(b.outputs, NewOutput(spec))
	}
	for i, name := range seats {
		b.seats[name] = NewPointer(platform.DeviceID(i + 1))
	}
	return b
}

// Outputs returns every output in configuration order.
func (b *Backend) Outputs() []platform.Output {
	out := make([]platform.Output, len(b.outputs))
	for i, o := range b.outputs {
		out[i] = o
	}
	return out
}

// Primary returns the first output, or nil when none are configured.
func (b *Backend) Primary() platform.Output {
	if len(b.outputs) == 0 {
		return nil
	}
	return b.outputs[0]
}

func (b *Backend) Lookup(name string) (platform.Output, bool) {
	for _, o := range b.outputs {
		if o.name == name {
			return o, true
		}
	}
	return nil, false
}

// Pointer resolves a seat name.
func (b *Backend) Pointer(seat string) (platform.Pointer, bool) {
	p, ok := b.seats[seat]
	if !ok {
		return nil, false
	}
	return p, true
}

// Seat returns the concrete pointer of a seat for input injection.
func (b *Backend) Seat(name string) (*Pointer, bool) {
	p, ok := b.seats[name]
	return p, ok
}

// SeatNames returns seat names in sorted order.
func (b *Backend) SeatNames() []string {
	names := make([]string, 0, len(b.seats))
	for name := range b.seats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PointerMotion moves the pointer of seat to pos.
func (b *Backend) PointerMotion(seat string, pos platform.Point) error {
	p, ok := b.seats[seat]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSeat, seat)
	}
	p.MoveTo(pos)
	return nil
}

// PointerButton presses or releases button on seat. consumed is true when a
// grab took the event.
func (b *Backend) PointerButton(seat string, button uint32, pressed bool) (consumed bool, err error) {
	p, ok := b.seats[seat]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSeat, seat)
	}
	if pressed {
		return p.Press(button), nil
	}
	return p.Release(button), nil
}

// CreateView records a view for surface on output.
func (b *Backend) CreateView(surface platform.SurfaceID, output platform.Output) platform.View {
	v := &View{backend: b, surface: surface, output: output}
	b.views[v] = struct{}{}
	return v
}

// LiveViews returns the number of views not yet destroyed.
func (b *Backend) LiveViews() int {
	return len(b.views)
}

// View is a render proxy that renders nothing.
type View struct {
	backend *Backend
	surface platform.SurfaceID
	output  platform.Output
}

func (v *View) Output() platform.Output { return v.output }

func (v *View) Destroy() {
	delete(v.backend.views, v)
}
