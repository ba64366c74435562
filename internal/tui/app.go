package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wlshell/internal/ipc"
)

type tickMsg time.Time

// snapshotMsg carries one poll of the daemon.
type snapshotMsg struct {
	status  *ipc.StatusData
	windows []ipc.WindowInfo
	popups  ipc.PopupsData
	err     error
}

// actionMsg reports the outcome of a key-triggered request.
type actionMsg struct {
	text string
	err  error
}

// model is the root bubbletea model for the TUI.
type model struct {
	source   Source
	interval time.Duration

	activeTab Tab
	selected  int

	// Last snapshot
	connected bool
	status    ipc.StatusData
	windows   []ipc.WindowInfo
	popups    ipc.PopupsData
	lastError string
	notice    string

	// Terminal dimensions
	width  int
	height int
}

func newModel(source Source, interval time.Duration) model {
	return model{
		source:    source,
		interval:  interval,
		activeTab: TabWindows,
	}
}

func (m model) poll() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		status, err := source.GetStatus()
		if err != nil {
			return snapshotMsg{err: err}
		}
		windows, err := source.ListWindows()
		if err != nil {
			return snapshotMsg{err: err}
		}
		popups, err := source.ListPopups()
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{status: status, windows: windows.Windows, popups: *popups}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.poll(), m.tick())

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			m.lastError = msg.err.Error()
			return m, nil
		}
		m.connected = true
		m.lastError = ""
		m.status = *msg.status
		m.windows = msg.windows
		m.popups = msg.popups
		m.clampSelection()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
			m.notice = ""
		} else {
			m.lastError = ""
			m.notice = msg.text
		}
		return m, m.poll()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "tab", "shift+tab":
		m.activeTab = (m.activeTab + 1) % tabCount
		m.selected = 0
		return m, nil
	case "1":
		m.activeTab = TabWindows
		m.selected = 0
	case "2":
		m.activeTab = TabPopups
		m.selected = 0
	case "j", "down":
		m.selected++
		m.clampSelection()
	case "k", "up":
		m.selected--
		m.clampSelection()
	case "r":
		return m, m.poll()
	case "p":
		if m.activeTab != TabWindows || len(m.windows) == 0 {
			return m, nil
		}
		w := m.windows[m.selected]
		source := m.source
		return m, func() tea.Msg {
			data, err := source.PingWindow(w.Client, w.Surface)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{text: fmt.Sprintf("pinged %s/%d (serial %d)", data.Client, data.Object, data.Serial)}
		}
	case "b":
		source := m.source
		return m, func() tea.Msg {
			n, err := source.BreakGrabs()
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{text: fmt.Sprintf("cancelled %d grab(s)", n)}
		}
	}
	return m, nil
}

func (m *model) clampSelection() {
	n := len(m.windows)
	if m.activeTab == TabPopups {
		n = len(m.popups.Stacks)
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.connected, m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.lastError, m.notice, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch m.activeTab {
	case TabWindows:
		content = renderWindows(m.windows, m.selected, m.width, contentHeight)
	case TabPopups:
		content = renderPopups(m.popups, m.width, contentHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
