// Package hotkeys binds global key sequences on the X root window to daemon
// actions.
package hotkeys

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Handler owns the key grabs it registers on the root window.
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *slog.Logger
	bound  []string
}

var locksOnce sync.Once

// NewHandler creates a hotkey handler bound to root. Lock modifiers never
// prevent a binding from firing.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if xu != nil {
		locksOnce.Do(func() { ignoreLocks(xu) })
	}
	return &Handler{xu: xu, root: root, logger: logger}
}

// Bind grabs sequence (xgbutil syntax, e.g. "Mod4-Escape") and runs action on
// every press. action runs on the X event goroutine.
func (h *Handler) Bind(sequence string, action func()) error {
	if h.xu == nil {
		return fmt.Errorf("hotkeys need an X11 connection")
	}
	if _, codes, err := keybind.ParseString(h.xu, sequence); err != nil {
		return fmt.Errorf("invalid key sequence %q: %w", sequence, err)
	} else if len(codes) == 0 {
		return fmt.Errorf("key sequence %q maps to no keycode", sequence)
	}
	err := keybind.KeyPressFun(func(*xgbutil.XUtil, xevent.KeyPressEvent) {
		h.logger.Debug("hotkey pressed", "sequence", sequence)
		action()
	}).Connect(h.xu, h.root, sequence, true)
	if err != nil {
		return fmt.Errorf("failed to grab %q: %w", sequence, err)
	}
	h.bound = append(h.bound, sequence)
	return nil
}

// Bound lists the sequences grabbed so far.
func (h *Handler) Bound() []string {
	return append([]string(nil), h.bound...)
}

// Close releases every key grab on the root window.
func (h *Handler) Close() {
	if h.xu == nil || len(h.bound) == 0 {
		return
	}
	keybind.Detach(h.xu, h.root)
	h.bound = nil
}

// ignoreLocks makes every combination of CapsLock, NumLock and ScrollLock
// transparent to key matching.
func ignoreLocks(xu *xgbutil.XUtil) {
	locks := []uint16{xproto.ModMaskLock}
	for _, sym := range []string{"Num_Lock", "Scroll_Lock"} {
		if m := modMask(xu, sym); m != 0 && !containsMask(locks, m) {
			locks = append(locks, m)
		}
	}
	masks := []uint16{0}
	for _, lock := range locks {
		for _, m := range masks {
			masks = append(masks, m|lock)
		}
	}
	xevent.IgnoreMods = masks
}

func modMask(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, code := range keybind.StrToKeycodes(xu, keysym) {
		if m := keybind.ModGet(xu, code); m != 0 {
			return m
		}
	}
	return 0
}

func containsMask(masks []uint16, m uint16) bool {
	for _, v := range masks {
		if v == m {
			return true
		}
	}
	return false
}
