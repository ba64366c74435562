package platform

// SurfaceID identifies a client surface within its client connection.
type SurfaceID uint32

// ObjectID identifies a protocol object within its client connection.
type ObjectID uint32

// ClientID identifies a client connection.
type ClientID string

// DeviceID identifies an input device. Grabs and popup stacks are keyed by it.
type DeviceID uint32

// Point is a position in the global compositor space.
type Point struct {
	X int
	Y int
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// Rect describes a rectangular region in global coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RectFrom builds a rect from an origin and a size.
func RectFrom(origin Point, size Size) Rect {
	return Rect{X: origin.X, Y: origin.Y, Width: size.Width, Height: size.Height}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rect dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// IsValid reports whether the rect has a positive area.
func (r Rect) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// WindowState is the state tag pushed to a surface.
type WindowState int

const (
	StateNormal WindowState = iota
	StateMaximized
	StateFullscreen
)

func (s WindowState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateMaximized:
		return "maximized"
	case StateFullscreen:
		return "fullscreen"
	default:
		return "unknown"
	}
}

// Edges is the set of window edges taking part in an interactive resize.
// Values match the wl_shell_surface resize enum.
type Edges uint32

const (
	EdgeNone        Edges = 0
	EdgeTop         Edges = 1
	EdgeBottom      Edges = 2
	EdgeLeft        Edges = 4
	EdgeTopLeft     Edges = 5
	EdgeBottomLeft  Edges = 6
	EdgeRight       Edges = 8
	EdgeTopRight    Edges = 9
	EdgeBottomRight Edges = 10
)

// Has reports whether all edges in o are set in e.
func (e Edges) Has(o Edges) bool {
	return e&o == o
}

// SurfaceListener receives surface lifecycle notifications. Nil fields are skipped.
type SurfaceListener struct {
	Visibility func(visible bool)
	Resized    func(size Size)
}

// Surface is a client surface as seen by the shell. The buffer pipeline owns it;
// the shell only observes visibility and size and issues move/resize commands.
type Surface interface {
	ID() SurfaceID
	Client() ClientID
	Size() Size
	Visible() bool
	GlobalPosition() Point
	SetGlobalPosition(pos Point)
	GlobalGeometry() Rect
	Resize(size Size)
	SetState(state WindowState)
	SetTransientParent(parent Surface, offset Point, inactive bool)
	TransientParent() Surface
	TransientOffset() Point
	Subscribe(l SurfaceListener) (cancel func())
}

// Output is a display in the shared global coordinate space.
type Output interface {
	Name() string
	Geometry() Rect
	AvailableGeometry() Rect
}

// OutputProvider enumerates outputs.
type OutputProvider interface {
	Outputs() []Output
	Primary() Output
	Lookup(name string) (Output, bool)
}

// GrabHandler receives the event stream of a grabbed pointer.
type GrabHandler interface {
	Motion(pos Point)
	Button(button uint32, pressed bool)
	// Cancel is called when the grab is torn down from outside the handler.
	Cancel()
}

// Pointer is a pointer device that can be exclusively grabbed.
type Pointer interface {
	ID() DeviceID
	Position() Point
	// StartGrab routes every event of the device to h until EndGrab. It
	// fails when the device cannot be taken, and then installs nothing.
	StartGrab(h GrabHandler) error
	EndGrab()
}

// SeatResolver maps a seat reference from a request to its pointer.
type SeatResolver interface {
	Pointer(seat string) (Pointer, bool)
}

// View is an opaque render proxy bound to one output.
type View interface {
	Output() Output
	Destroy()
}

// ViewFactory creates render proxies for surfaces.
type ViewFactory interface {
	CreateView(surface SurfaceID, output Output) View
}

// Backend bundles the collaborators a display backend provides.
type Backend interface {
	OutputProvider
	SeatResolver
	ViewFactory
}
