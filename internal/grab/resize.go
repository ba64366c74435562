package grab

import "github.com/1broseidon/wlshell/internal/platform"

// Resize grows or shrinks a window from the edges it was started on.
// Left and top edges keep the opposite edge fixed by moving the origin.
type Resize struct {
	arena   *Arena
	handle  Handle
	target  Target
	edges   platform.Edges
	start   platform.Point
	origin  platform.Point
	initial platform.Size
	min     platform.Size
	current platform.Rect
	pressed buttons
	done    bool
}

var _ Grab = (*Resize)(nil)

// StartResize grabs p and starts resizing target from edges. Sizes never go
// below min; a non-positive min dimension is treated as 1.
func StartResize(arena *Arena, p platform.Pointer, target Target, edges platform.Edges, min platform.Size) (*Resize, error) {
	if min.Width < 1 {
		min.Width = 1
	}
	if min.Height < 1 {
		min.Height = 1
	}
	r := &Resize{
		arena:   arena,
		target:  target,
		edges:   edges,
		start:   p.Position(),
		origin:  target.Position(),
		initial: target.Size(),
		min:     min,
		pressed: buttons{},
	}
	r.current = platform.RectFrom(r.origin, r.initial)
	h, err := arena.Acquire(p, KindResize, r)
	if err != nil {
		return nil, err
	}
	r.handle = h
	return r, nil
}

func (r *Resize) Kind() string   { return KindResize }
func (r *Resize) Handle() Handle { return r.handle }

// Edges returns the active edge set.
func (r *Resize) Edges() platform.Edges {
	return r.edges
}

// Geometry returns the geometry computed for the last motion event.
func (r *Resize) Geometry() platform.Rect {
	return r.current
}

func (r *Resize) Motion(pos platform.Point) {
	if r.done {
		return
	}
	next := r.compute(pos)
	moved := next.Origin() != r.current.Origin()
	r.current = next

	r.target.Configure(r.edges, next.Size())
	if moved {
		r.target.Move(next.Origin())
	}
}

func (r *Resize) compute(pos platform.Point) platform.Rect {
	d := pos.Sub(r.start)
	w, h := r.initial.Width, r.initial.Height

	switch {
	case r.edges.Has(platform.EdgeLeft):
		w -= d.X
	case r.edges.Has(platform.EdgeRight):
		w += d.X
	}
	switch {
	case r.edges.Has(platform.EdgeTop):
		h -= d.Y
	case r.edges.Has(platform.EdgeBottom):
		h += d.Y
	}

	w = max(w, r.min.Width)
	h = max(h, r.min.Height)

	x, y := r.origin.X, r.origin.Y
	if r.edges.Has(platform.EdgeLeft) {
		x = r.origin.X + r.initial.Width - w
	}
	if r.edges.Has(platform.EdgeTop) {
		y = r.origin.Y + r.initial.Height - h
	}
	return platform.Rect{X: x, Y: y, Width: w, Height: h}
}

func (r *Resize) Button(button uint32, pressed bool) {
	if r.pressed.ends(button, pressed) {
		r.End()
	}
}

func (r *Resize) Cancel() {
	r.End()
}

func (r *Resize) End() {
	if r.done {
		return
	}
	r.done = true
	r.arena.Release(r.handle)
	r.target.GrabEnded(r)
}
