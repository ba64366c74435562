//go:build linux

package daemon

import (
	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/hotkeys"
	"github.com/1broseidon/wlshell/internal/platform"
)

// x11Display releases the daemon's key grabs before dropping the connection.
type x11Display struct {
	*platform.LinuxBackend
	keys *hotkeys.Handler
}

func (x x11Display) Disconnect() {
	x.keys.Close()
	x.LinuxBackend.Disconnect()
}

func (d *Daemon) openX11(cfg *config.Config) (platform.Backend, display, error) {
	b, err := platform.NewLinuxBackendFromDisplay(cfg.Display, platform.LinuxBackendConfig{
		Post:    d.post,
		OnPress: d.pointerPress,
		Logger:  d.logger.With("component", "x11"),
	})
	if err != nil {
		return nil, nil, err
	}

	keys := hotkeys.NewHandler(b.XUtil(), b.RootWindow(), d.logger.With("component", "hotkeys"))
	if cfg.BreakGrabHotkey != "" {
		if err := keys.Bind(cfg.BreakGrabHotkey, d.breakGrabs); err != nil {
			d.logger.Warn("failed to register break-grab hotkey", "hotkey", cfg.BreakGrabHotkey, "error", err)
		} else {
			d.logger.Info("break-grab hotkey registered", "hotkey", cfg.BreakGrabHotkey)
		}
	}
	return b, x11Display{LinuxBackend: b, keys: keys}, nil
}

// pointerPress runs on the loop, after the registry exists.
func (d *Daemon) pointerPress(seat string, button uint32, pos platform.Point) {
	if d.registry != nil {
		d.registry.PointerPressAt(seat, button, pos)
	}
}
