package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Flow      string
	Phase     string
	Connected bool
	Camera    bool
	Endpoint  string
	Busy      string // spinner frame shown while waiting on a device or the network
	Width     int
}

// New creates a status bar model for a flow.
func New(flow, endpoint string) Model {
	return Model{Flow: flow, Endpoint: endpoint}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	camStr := theme.StyleDimmed.Render("camera off")
	if m.Camera {
		camStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("camera on")
	}

	phase := fmt.Sprintf("%s %s", theme.PhaseGlyph(m.Phase), m.Phase)
	if m.Busy != "" {
		phase = m.Busy + " " + m.Phase
	}
	phaseStr := lipgloss.NewStyle().Foreground(theme.PhaseColor(m.Phase)).Render(phase)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.StyleHeader.Render(m.Flow) + sep + connStr + sep + phaseStr + sep + camStr
	if m.Endpoint != "" {
		content += sep + theme.StyleDimmed.Render(m.Endpoint)
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
