package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wlshell/internal/ipc"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabWindows Tab = iota
	TabPopups
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabWindows:
		return "Windows"
	case TabPopups:
		return "Popups & Grabs"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderTabBar renders the tab bar with the given active tab and width.
func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d %s", int(i)+1, i)
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return tabBarStyle.Width(width).Render(row)
}

// renderStatusBar renders the daemon summary line.
func renderStatusBar(connected bool, status ipc.StatusData, width int) string {
	var text string
	if connected {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		text = strings.Join([]string{
			dot + " " + status.Backend,
			fmt.Sprintf("v%d", status.ProtocolVersion),
			fmt.Sprintf("clients:%d", status.Clients),
			fmt.Sprintf("windows:%d", status.Windows),
			fmt.Sprintf("grabs:%d", status.ActiveGrabs),
			fmt.Sprintf("popups:%d", status.PopupStacks),
			fmt.Sprintf("up:%ds", status.UptimeSeconds),
		}, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		text = dot + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(text)
}

// renderHelpBar renders the bottom keybinding bar, or the last error or
// action result when there is one.
func renderHelpBar(lastError, notice string, width int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	switch {
	case lastError != "":
		return style.Foreground(lipgloss.Color("196")).Render("error: " + lastError)
	case notice != "":
		return style.Foreground(lipgloss.Color("42")).Render(notice)
	}
	return style.Render("tab: switch  j/k: select  p: ping  b: break grabs  r: refresh  q: quit")
}

const windowRowFormat = "%-10s %4s %4s %-9s %-10s %-10s %-18s %-6s %s"

func renderWindows(windows []ipc.WindowInfo, selected, width, height int) string {
	if len(windows) == 0 {
		return dimStyle.Width(width).Height(height).Render("  no windows")
	}

	lines := []string{headerStyle.Render(fmt.Sprintf(windowRowFormat,
		"CLIENT", "OBJ", "SURF", "ROLE", "STATE", "OUTPUT", "GEOMETRY", "GRAB", "TITLE"))}
	first := 0
	if visible := height - 1; visible > 0 && selected >= visible {
		first = selected - visible + 1
	}
	for i := first; i < len(windows) && len(lines) < height; i++ {
		w := windows[i]
		line := fmt.Sprintf(windowRowFormat,
			shortID(w.Client),
			fmt.Sprint(w.Object),
			fmt.Sprint(w.Surface),
			w.Role,
			w.State,
			w.Output,
			fmt.Sprintf("%dx%d+%d+%d", w.Width, w.Height, w.X, w.Y),
			w.Grab,
			w.Title)
		switch {
		case i == selected:
			line = selectedStyle.Render(line)
		case w.Unresponsive:
			line = warnStyle.Render(line)
		case !w.Visible:
			line = dimStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func renderPopups(data ipc.PopupsData, width, height int) string {
	var lines []string
	lines = append(lines, headerStyle.Render("Grabs"))
	if len(data.Grabs) == 0 {
		lines = append(lines, dimStyle.Render("  none"))
	}
	for _, g := range data.Grabs {
		lines = append(lines, fmt.Sprintf("  device %d  %s", g.Device, g.Kind))
	}
	lines = append(lines, "", headerStyle.Render("Popup stacks"))
	if len(data.Stacks) == 0 {
		lines = append(lines, dimStyle.Render("  none"))
	}
	for _, st := range data.Stacks {
		chain := make([]string, len(st.Popups))
		for i, p := range st.Popups {
			chain[i] = fmt.Sprintf("%d", p.Object)
		}
		lines = append(lines, fmt.Sprintf("  device %d  client %s  serial %d  [%s]",
			st.Device, shortID(st.Client), st.Serial, strings.Join(chain, " > ")))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// shortID trims a client uuid to its first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
