package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Area is a rectangle in root window coordinates.
type Area struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Monitor represents a physical display. Work is the part of it not covered
// by docks and panels.
type Monitor struct {
	ID   int
	Name string
	Area
	Work Area
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:   i,
			Name: outputName,
			Area: Area{
				X:      int(crtcInfo.X),
				Y:      int(crtcInfo.Y),
				Width:  int(crtcInfo.Width),
				Height: int(crtcInfo.Height),
			},
		})
	}

	c.applyWorkAreas(monitors)
	return monitors, nil
}

// applyWorkAreas fills Work for every monitor from dock struts, falling back
// to the EWMH work area of the current desktop.
func (c *Connection) applyWorkAreas(monitors []Monitor) {
	rootWidth, rootHeight, struts := c.dockStruts()

	var workArea *Area
	if areas, err := ewmh.WorkareaGet(c.XUtil); err == nil && len(areas) > 0 {
		desktopIndex := 0
		if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
			if int(currentDesktop) < len(areas) {
				desktopIndex = int(currentDesktop)
			}
		}
		wa := areas[desktopIndex]
		workArea = &Area{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)}
	}

	for i := range monitors {
		m := &monitors[i]
		m.Work = m.Area
		if work, ok := shrinkByStruts(m.Area, rootWidth, rootHeight, struts); ok {
			m.Work = work
			continue
		}
		if workArea != nil {
			m.Work = clipArea(m.Area, *workArea)
		}
	}
}

// dockStruts returns the root size and the struts of every dock window.
func (c *Connection) dockStruts() (rootWidth, rootHeight int, struts []*ewmh.WmStrutPartial) {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return 0, 0, nil
	}
	rootWidth = int(rootGeom.Width)
	rootHeight = int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return rootWidth, rootHeight, nil
	}

	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil {
			continue
		}

		isDock := false
		for _, t := range types {
			if t == "_NET_WM_WINDOW_TYPE_DOCK" {
				isDock = true
				break
			}
		}
		if !isDock {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			struts = append(struts, sp)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			struts = append(struts, &ewmh.WmStrutPartial{
				Left:         s.Left,
				Right:        s.Right,
				Top:          s.Top,
				Bottom:       s.Bottom,
				LeftStartY:   0,
				LeftEndY:     uint(rootHeight - 1),
				RightStartY:  0,
				RightEndY:    uint(rootHeight - 1),
				TopStartX:    0,
				TopEndX:      uint(rootWidth - 1),
				BottomStartX: 0,
				BottomEndX:   uint(rootWidth - 1),
			})
		}
	}
	return rootWidth, rootHeight, struts
}

type strutEdges struct {
	left   int
	right  int
	top    int
	bottom int
}

// shrinkByStruts removes the parts of monitor reserved by struts. It
// reports false when no strut touches the monitor.
func shrinkByStruts(monitor Area, rootWidth, rootHeight int, struts []*ewmh.WmStrutPartial) (Area, bool) {
	var acc strutEdges
	for _, sp := range struts {
		updateStrutsForMonitor(monitor, rootWidth, rootHeight, sp, &acc)
	}
	if acc.left == 0 && acc.right == 0 && acc.top == 0 && acc.bottom == 0 {
		return monitor, false
	}

	monitor.X += acc.left
	monitor.Y += acc.top
	monitor.Width -= acc.left + acc.right
	monitor.Height -= acc.top + acc.bottom
	monitor.Width = max(monitor.Width, 1)
	monitor.Height = max(monitor.Height, 1)
	return monitor, true
}

func updateStrutsForMonitor(monitor Area, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *strutEdges) {
	mon := monitor

	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		r := Area{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) + 1 - int(sp.TopStartX), Height: int(sp.Top)}
		if is := intersect(mon, r); is.Width > 0 && is.Height > 0 {
			acc.top = max(acc.top, is.Height)
		}
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		r := Area{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom), Width: int(sp.BottomEndX) + 1 - int(sp.BottomStartX), Height: int(sp.Bottom)}
		if is := intersect(mon, r); is.Width > 0 && is.Height > 0 {
			acc.bottom = max(acc.bottom, is.Height)
		}
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		r := Area{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) + 1 - int(sp.LeftStartY)}
		if is := intersect(mon, r); is.Width > 0 && is.Height > 0 {
			acc.left = max(acc.left, is.Width)
		}
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		r := Area{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) + 1 - int(sp.RightStartY)}
		if is := intersect(mon, r); is.Width > 0 && is.Height > 0 {
			acc.right = max(acc.right, is.Width)
		}
	}
}

// intersect returns the overlap of a and b; an empty overlap has zero size.
func intersect(a, b Area) Area {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return Area{}
	}
	return Area{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// clipArea limits monitor to work. A work area that misses the monitor
// leaves it unchanged.
func clipArea(monitor, work Area) Area {
	is := intersect(monitor, work)
	if is.Width == 0 || is.Height == 0 {
		return monitor
	}
	return is
}
