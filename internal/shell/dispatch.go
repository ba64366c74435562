package shell

import (
	"errors"
	"fmt"

	"github.com/1broseidon/wlshell/internal/platform"
)

// Request is a decoded shell request addressed to one role object.
type Request interface {
	Target() platform.ObjectID
}

type (
	SetToplevel struct {
		Object platform.ObjectID
	}
	SetTransient struct {
		Object platform.ObjectID
		Parent platform.Surface
		X, Y   int
		Flags  uint32
	}
	SetFullscreen struct {
		Object    platform.ObjectID
		Method    uint32
		Framerate uint32
		// Output is an output name; empty picks the window's output.
		Output string
	}
	SetMaximized struct {
		Object platform.ObjectID
		Output string
	}
	SetPopup struct {
		Object platform.ObjectID
		Seat   string
		Serial uint32
		Parent platform.Surface
		X, Y   int
		Flags  uint32
	}
	Move struct {
		Object platform.ObjectID
		Seat   string
		Serial uint32
	}
	Resize struct {
		Object platform.ObjectID
		Seat   string
		Serial uint32
		Edges  platform.Edges
	}
	SetTitle struct {
		Object platform.ObjectID
		Title  string
	}
	SetClass struct {
		Object platform.ObjectID
		Class  string
	}
	Pong struct {
		Object platform.ObjectID
		Serial uint32
	}
)

func (q SetToplevel) Target() platform.ObjectID   { return q.Object }
func (q SetTransient) Target() platform.ObjectID  { return q.Object }
func (q SetFullscreen) Target() platform.ObjectID { return q.Object }
func (q SetMaximized) Target() platform.ObjectID  { return q.Object }
func (q SetPopup) Target() platform.ObjectID      { return q.Object }
func (q Move) Target() platform.ObjectID          { return q.Object }
func (q Resize) Target() platform.ObjectID        { return q.Object }
func (q SetTitle) Target() platform.ObjectID      { return q.Object }
func (q SetClass) Target() platform.ObjectID      { return q.Object }
func (q Pong) Target() platform.ObjectID          { return q.Object }

// Dispatch routes req to the role it addresses. Rejected requests are logged
// and their error returned; none of them changes existing state.
func (r *Registry) Dispatch(client platform.ClientID, req Request) error {
	role, err := r.Role(client, req.Target())
	if err != nil {
		return err
	}
	err = r.dispatch(role, req)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownSeat), errors.Is(err, ErrUnknownOutput), errors.Is(err, ErrUnknownSurface):
		role.logger.Error("request failed", "request", fmt.Sprintf("%T", req), "error", err)
	default:
		role.logger.Warn("request rejected", "request", fmt.Sprintf("%T", req), "error", err)
	}
	return err
}

func (r *Registry) dispatch(role *Role, req Request) error {
	switch q := req.(type) {
	case SetToplevel:
		role.RequestToplevel()
	case SetTransient:
		if q.Parent == nil {
			return fmt.Errorf("%w: transient parent", ErrUnknownSurface)
		}
		role.RequestTransient(q.Parent, platform.Point{X: q.X, Y: q.Y}, q.Flags)
	case SetFullscreen:
		out, err := r.lookupOutput(q.Output)
		if err != nil {
			return err
		}
		return role.RequestFullscreen(q.Method, q.Framerate, out)
	case SetMaximized:
		out, err := r.lookupOutput(q.Output)
		if err != nil {
			return err
		}
		return role.RequestMaximize(out)
	case SetPopup:
		if q.Parent == nil {
			return fmt.Errorf("%w: popup parent", ErrUnknownSurface)
		}
		p, err := r.lookupSeat(q.Seat)
		if err != nil {
			return err
		}
		return role.RequestPopup(p, q.Serial, q.Parent, platform.Point{X: q.X, Y: q.Y})
	case Move:
		p, err := r.lookupSeat(q.Seat)
		if err != nil {
			return err
		}
		return role.RequestMove(p)
	case Resize:
		p, err := r.lookupSeat(q.Seat)
		if err != nil {
			return err
		}
		return role.RequestResize(p, q.Edges)
	case SetTitle:
		role.SetTitle(q.Title)
	case SetClass:
		role.SetClassName(q.Class)
	case Pong:
		return role.Pong(q.Serial)
	default:
		return fmt.Errorf("unsupported request %T", req)
	}
	return nil
}

func (r *Registry) lookupSeat(seat string) (platform.Pointer, error) {
	if r.backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, seat)
	}
	p, ok := r.backend.Pointer(seat)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, seat)
	}
	return p, nil
}

// lookupOutput resolves an output name. The empty name yields nil, which
// role handlers take to mean the window's own output.
func (r *Registry) lookupOutput(name string) (platform.Output, error) {
	if name == "" {
		return nil, nil
	}
	if r.backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
	}
	out, ok := r.backend.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
	}
	return out, nil
}
