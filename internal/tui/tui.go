// Package tui is a live terminal view of a running shell daemon.
package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/wlshell/internal/ipc"
)

// DefaultInterval is how often the view polls the daemon.
const DefaultInterval = time.Second

// Source is what the view reads from; *ipc.Client implements it.
type Source interface {
	GetStatus() (*ipc.StatusData, error)
	ListWindows() (*ipc.WindowsData, error)
	ListPopups() (*ipc.PopupsData, error)
	PingWindow(client string, surface uint32) (*ipc.PingWindowData, error)
	BreakGrabs() (int, error)
}

// TUI represents the terminal user interface state.
type TUI struct {
	source   Source
	interval time.Duration
}

// New creates a view polling source every interval.
func New(source Source, interval time.Duration) *TUI {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TUI{source: source, interval: interval}
}

// Run starts the TUI main loop.
func (t *TUI) Run() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("top requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	p := tea.NewProgram(newModel(t.source, t.interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
