package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProtocolSocketEnv overrides the protocol socket name, like WAYLAND_DISPLAY.
const ProtocolSocketEnv = "WLSHELL_DISPLAY"

// Dir returns the runtime directory used for the wlshell sockets. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/wlshell-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/wlshell-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the daemon control socket path.
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "wlshell.sock"), nil
}

// ProtocolSocketPath returns the socket clients connect to for the shell
// protocol. An absolute WLSHELL_DISPLAY is used as is; a bare name is
// resolved inside the runtime directory.
func ProtocolSocketPath() (string, error) {
	name := os.Getenv(ProtocolSocketEnv)
	if filepath.IsAbs(name) {
		return name, nil
	}
	if name == "" {
		name = "wlshell-0"
	}
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, name), nil
}
