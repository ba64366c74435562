package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got == "" {
		t.Fatal("Dir() returned empty path")
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/wlshell-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPaths(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)
	t.Setenv(ProtocolSocketEnv, "")

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/wlshell.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}

	proto, err := ProtocolSocketPath()
	if err != nil {
		t.Fatalf("ProtocolSocketPath() error: %v", err)
	}
	if proto != filepath.Join(td, "wlshell-0") {
		t.Fatalf("ProtocolSocketPath() = %q", proto)
	}
}

func TestProtocolSocketPath_Env(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	tests := []struct {
		env  string
		want string
	}{
		{"wlshell-7", filepath.Join(td, "wlshell-7")},
		{"/var/run/custom.sock", "/var/run/custom.sock"},
	}
	for _, tt := range tests {
		t.Setenv(ProtocolSocketEnv, tt.env)
		got, err := ProtocolSocketPath()
		if err != nil {
			t.Fatalf("ProtocolSocketPath() error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("ProtocolSocketPath() = %q, want %q", got, tt.want)
		}
	}
}
