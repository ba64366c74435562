//go:build !linux

package daemon

import (
	"errors"

	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/platform"
)

func (d *Daemon) openX11(cfg *config.Config) (platform.Backend, display, error) {
	return nil, nil, errors.New("the x11 backend is only available on linux")
}
