package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

const grabEventMask = xproto.EventMaskPointerMotion | xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease

// PointerHandlers receive root-window pointer events. They run on the X
// event goroutine.
type PointerHandlers struct {
	Motion func(x, y int)
	Button func(button uint32, pressed bool, x, y int)
}

// QueryPointer returns the pointer position in root coordinates.
func (c *Connection) QueryPointer() (x, y int, err error) {
	reply, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pointer: %w", err)
	}
	return int(reply.RootX), int(reply.RootY), nil
}

// GrabPointer takes the core pointer so every motion and button event is
// reported on the root window until UngrabPointer.
func (c *Connection) GrabPointer() error {
	reply, err := xproto.GrabPointer(
		c.XUtil.Conn(),
		false,
		c.Root,
		uint16(grabEventMask),
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
		xproto.WindowNone,
		xproto.CursorNone,
		xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return fmt.Errorf("failed to grab pointer: %w", err)
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("pointer grab refused (status %d)", reply.Status)
	}
	return nil
}

// UngrabPointer releases a grab taken by GrabPointer.
func (c *Connection) UngrabPointer() error {
	if err := xproto.UngrabPointerChecked(c.XUtil.Conn(), xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("failed to ungrab pointer: %w", err)
	}
	return nil
}

// OnPointer routes root-window pointer events to h.
func (c *Connection) OnPointer(h PointerHandlers) {
	if h.Motion != nil {
		xevent.MotionNotifyFun(func(xu *xgbutil.XUtil, ev xevent.MotionNotifyEvent) {
			h.Motion(int(ev.RootX), int(ev.RootY))
		}).Connect(c.XUtil, c.Root)
	}
	if h.Button != nil {
		xevent.ButtonPressFun(func(xu *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
			h.Button(uint32(ev.Detail), true, int(ev.RootX), int(ev.RootY))
		}).Connect(c.XUtil, c.Root)
		xevent.ButtonReleaseFun(func(xu *xgbutil.XUtil, ev xevent.ButtonReleaseEvent) {
			h.Button(uint32(ev.Detail), false, int(ev.RootX), int(ev.RootY))
		}).Connect(c.XUtil, c.Root)
	}
}
