package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/wlshell/internal/grab"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/popup"
	"github.com/1broseidon/wlshell/internal/serial"
)

// Tag is the role a surface was given. It is independent of WindowState.
type Tag int

const (
	TagNone Tag = iota
	TagToplevel
	TagTransient
	TagPopup
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagToplevel:
		return "toplevel"
	case TagTransient:
		return "transient"
	case TagPopup:
		return "popup"
	default:
		return "unknown"
	}
}

// TransientInactive is the set_transient flag asking not to take focus.
const TransientInactive uint32 = 0x1

// Role is the window-role object attached to one surface.
//
// previous is set exactly while state is Maximized or Fullscreen. At most one
// of move/resize is active, held in grab.
type Role struct {
	registry *Registry
	client   *Client
	object   platform.ObjectID
	surface  platform.Surface
	logger   *slog.Logger

	tag       Tag
	state     platform.WindowState
	previous  *platform.Rect
	stateOut  platform.Output
	title     string
	className string

	grab grab.Grab

	popupPointer platform.Pointer
	popupSerial  uint32
	popupGrabber *popup.Grabber

	pendingPings map[uint32]time.Time
	unresponsive bool

	view        platform.View
	unsubscribe func()
	destroyed   bool
}

var (
	_ grab.Target = (*Role)(nil)
	_ popup.Popup = (*Role)(nil)
)

func (r *Role) Object() platform.ObjectID    { return r.object }
func (r *Role) Surface() platform.Surface    { return r.surface }
func (r *Role) Tag() Tag                     { return r.tag }
func (r *Role) State() platform.WindowState  { return r.state }
func (r *Role) Title() string                { return r.title }
func (r *Role) ClassName() string            { return r.className }
func (r *Role) Unresponsive() bool           { return r.unresponsive }
func (r *Role) Client() platform.ClientID    { return r.client.id }
func (r *Role) Destroyed() bool              { return r.destroyed }
func (r *Role) PopupSerial() uint32          { return r.popupSerial }
func (r *Role) PopupGeometry() platform.Rect { return r.surface.GlobalGeometry() }
func (r *Role) PendingPings() int            { return len(r.pendingPings) }
func (r *Role) View() platform.View          { return r.view }
func (r *Role) ActiveGrab() grab.Grab        { return r.grab }
func (r *Role) Position() platform.Point     { return r.surface.GlobalPosition() }
func (r *Role) Size() platform.Size          { return r.surface.Size() }
func (r *Role) Geometry() platform.Rect      { return r.surface.GlobalGeometry() }
func (r *Role) Move(pos platform.Point)      { r.surface.SetGlobalPosition(pos) }
func (r *Role) InPopupStack() bool           { return r.popupGrabber != nil && r.popupGrabber.Contains(r) }

// OutputName names the output the window's view is bound to.
func (r *Role) OutputName() string {
	if r.view == nil || r.view.Output() == nil {
		return ""
	}
	return r.view.Output().Name()
}

// PreviousGeometry returns the geometry saved before the last maximize or
// fullscreen transition.
func (r *Role) PreviousGeometry() (platform.Rect, bool) {
	if r.previous == nil {
		return platform.Rect{}, false
	}
	return *r.previous, true
}

// Configure resizes the surface and tells the client the new size.
func (r *Role) Configure(edges platform.Edges, size platform.Size) {
	r.surface.Resize(size)
	r.client.sink.Configure(r.object, edges, size.Width, size.Height)
}

// GrabEnded clears the active grab once the pointer lets go.
func (r *Role) GrabEnded(g grab.Grab) {
	if r.grab == g {
		r.grab = nil
		r.logger.Info("grab ended", "kind", g.Kind())
	}
}

// PopupDone tells the client its popup was dismissed. Nothing is sent once
// the role is destroyed.
func (r *Role) PopupDone() {
	if r.destroyed {
		return
	}
	r.client.sink.PopupDone(r.object)
}

// RequestMaximize fills the available area of output. A nil output means the
// output the window is on.
func (r *Role) RequestMaximize(output platform.Output) error {
	output, err := r.registry.outputFor(r, output)
	if err != nil {
		return err
	}
	if r.state == platform.StateMaximized && r.stateOut == output {
		return nil
	}

	avail := output.AvailableGeometry()
	if r.state == platform.StateNormal {
		prev := r.Geometry()
		if !prev.IsValid() {
			prev = avail
		}
		r.previous = &prev
	}
	r.applyState(platform.StateMaximized, output, avail)
	return nil
}

// RequestFullscreen covers the whole of output. Method and framerate are
// accepted and not acted on.
func (r *Role) RequestFullscreen(method, framerate uint32, output platform.Output) error {
	output, err := r.registry.outputFor(r, output)
	if err != nil {
		return err
	}
	if r.state == platform.StateFullscreen && r.stateOut == output {
		return nil
	}

	// Unlike maximize this snapshots from any state, so leaving fullscreen
	// lands on the geometry it was entered from.
	prev := r.Geometry()
	r.previous = &prev
	r.logger.Debug("fullscreen", "method", method, "framerate", framerate, "output", output.Name())
	r.applyState(platform.StateFullscreen, output, output.Geometry())
	return nil
}

func (r *Role) applyState(state platform.WindowState, output platform.Output, rect platform.Rect) {
	// A grab started in the old state must not keep dragging the new geometry.
	r.endGrab()
	r.Move(rect.Origin())
	r.Configure(platform.EdgeNone, rect.Size())
	r.state = state
	r.stateOut = output
	r.surface.SetState(state)
	r.registry.bindView(r, output)
	r.logger.Info("state changed", "state", state, "output", output.Name())
}

// RequestToplevel drops any transient or popup relation and restores the
// geometry saved before maximize or fullscreen.
func (r *Role) RequestToplevel() {
	r.leavePopup()
	r.surface.SetTransientParent(nil, platform.Point{}, false)
	r.tag = TagToplevel
	r.Restore()
}

// Restore returns to the normal state and the saved geometry. It is a no-op
// in the normal state.
func (r *Role) Restore() {
	if r.state == platform.StateNormal {
		return
	}
	r.endGrab()
	if prev := r.previous; prev != nil {
		r.Move(prev.Origin())
		r.Configure(platform.EdgeNone, prev.Size())
	}
	r.previous = nil
	r.state = platform.StateNormal
	r.stateOut = nil
	r.surface.SetState(platform.StateNormal)
	r.rebindView()
	r.logger.Info("state changed", "state", platform.StateNormal)
}

// leavePopup takes the window out of its popup chain, closing any popups
// stacked above it, and forgets the press it was opened by.
func (r *Role) leavePopup() {
	if r.popupGrabber != nil {
		g := r.popupGrabber
		r.popupGrabber = nil
		g.Dismiss(r)
	}
	r.popupPointer = nil
	r.popupSerial = 0
}

// RequestTransient places the window relative to parent. State is unchanged.
func (r *Role) RequestTransient(parent platform.Surface, offset platform.Point, flags uint32) {
	r.leavePopup()
	r.surface.SetTransientParent(parent, offset, flags&TransientInactive != 0)
	r.Move(parent.GlobalPosition().Add(offset))
	r.tag = TagTransient
}

// RequestPopup makes the window a popup of parent opened by the press that
// produced serial. The popup joins the device's chain once it is visible.
func (r *Role) RequestPopup(p platform.Pointer, serialNo uint32, parent platform.Surface, offset platform.Point) error {
	if r.InPopupStack() {
		r.popupGrabber.Dismiss(r)
	}
	r.surface.SetTransientParent(parent, offset, false)
	r.tag = TagPopup
	r.popupPointer = p
	r.popupSerial = serialNo
	r.popupGrabber = r.registry.popups.GrabberFor(p)

	if r.surface.Visible() {
		return r.admitPopup()
	}
	return nil
}

func (r *Role) admitPopup() error {
	if r.popupGrabber == nil || r.InPopupStack() {
		return nil
	}
	if parent := r.surface.TransientParent(); parent != nil {
		r.Move(parent.GlobalPosition().Add(r.surface.TransientOffset()))
	}
	if err := r.popupGrabber.Admit(r); err != nil {
		if errors.Is(err, popup.ErrStale) {
			return fmt.Errorf("%w: %w", ErrStalePopup, err)
		}
		return fmt.Errorf("%w: %w", ErrConflictingGrab, err)
	}
	return nil
}

// onResized follows a normal window onto the output its center now lies on.
// Maximized and fullscreen windows stay on the output they were sized for.
func (r *Role) onResized(platform.Size) {
	if r.destroyed || r.state != platform.StateNormal {
		return
	}
	r.rebindView()
}

func (r *Role) rebindView() {
	if out, err := r.registry.outputFor(r, nil); err == nil {
		r.registry.bindView(r, out)
	}
}

func (r *Role) onVisibility(visible bool) {
	if r.destroyed || r.tag != TagPopup || r.popupGrabber == nil {
		return
	}
	if visible {
		if err := r.admitPopup(); err != nil {
			r.logger.Warn("popup rejected", "error", err)
		}
		return
	}
	if r.InPopupStack() {
		r.popupGrabber.Remove(r)
	}
}

// RequestMove starts dragging the window with p.
func (r *Role) RequestMove(p platform.Pointer) error {
	if r.grab != nil {
		return fmt.Errorf("%w: %s grab already active", ErrConflictingGrab, r.grab.Kind())
	}
	if r.state == platform.StateFullscreen {
		return fmt.Errorf("%w: cannot move a fullscreen window", ErrConflictingGrab)
	}
	m, err := grab.StartMove(r.registry.arena, p, r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConflictingGrab, err)
	}
	r.grab = m
	r.logger.Info("grab started", "kind", m.Kind(), "device", p.ID())
	return nil
}

// RequestResize starts resizing the window from edges with p.
func (r *Role) RequestResize(p platform.Pointer, edges platform.Edges) error {
	if r.grab != nil {
		return fmt.Errorf("%w: %s grab already active", ErrConflictingGrab, r.grab.Kind())
	}
	if r.state != platform.StateNormal {
		return fmt.Errorf("%w: cannot resize a %s window", ErrConflictingGrab, r.state)
	}
	g, err := grab.StartResize(r.registry.arena, p, r, edges, r.registry.MinSize())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConflictingGrab, err)
	}
	r.grab = g
	r.logger.Info("grab started", "kind", g.Kind(), "device", p.ID(), "edges", uint32(edges))
	return nil
}

func (r *Role) SetTitle(title string)     { r.title = title }
func (r *Role) SetClassName(class string) { r.className = class }

// Ping sends a liveness challenge and returns its serial.
func (r *Role) Ping() uint32 {
	s := r.registry.serials.Track(serial.KindPing, r)
	r.pendingPings[s] = r.registry.now()
	r.client.sink.Ping(r.object, s)
	return s
}

// Pong answers the challenge identified by s.
func (r *Role) Pong(s uint32) error {
	if _, ok := r.pendingPings[s]; !ok {
		r.logger.Warn("unexpected pong", "serial", s)
		return fmt.Errorf("%w: serial %d", ErrSpuriousPong, s)
	}
	delete(r.pendingPings, s)
	r.registry.serials.Resolve(s, serial.KindPing, r)
	if r.unresponsive {
		r.unresponsive = false
		r.logger.Info("client responsive again")
	}
	return nil
}

// expirePings drops challenges sent at or before cutoff and returns their
// serials in order.
func (r *Role) expirePings(cutoff time.Time) []uint32 {
	var expired []uint32
	for s, sent := range r.pendingPings {
		if !sent.After(cutoff) {
			expired = append(expired, s)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, s := range expired {
		delete(r.pendingPings, s)
		r.registry.serials.Resolve(s, serial.KindPing, r)
	}
	return expired
}

func (r *Role) endGrab() {
	if g := r.grab; g != nil {
		r.grab = nil
		g.End()
	}
}

// teardown releases everything the role holds. It runs at most once.
func (r *Role) teardown() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	r.endGrab()
	if g := r.popupGrabber; g != nil {
		r.popupGrabber = nil
		g.Remove(r)
	}
	r.registry.serials.Forget(r)
	r.pendingPings = nil
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	if r.view != nil {
		r.view.Destroy()
		r.view = nil
	}
	r.logger.Info("role destroyed")
}
