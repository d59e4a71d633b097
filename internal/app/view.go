package app

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/session"
	"github.com/facepin/kiosk/internal/theme"
	"github.com/facepin/kiosk/internal/views/enroll"
	"github.com/facepin/kiosk/internal/views/login"
	"github.com/facepin/kiosk/internal/views/page"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.page != nil {
		return page.Render(m.page, m.width)
	}

	if m.overlay == OverlayDebug {
		return m.debug.View(m.width, m.height)
	}

	var body, help string
	if m.sess.Flow == session.FlowEnrollment {
		body = enroll.View(m.form, m.board, m.width)
		help = "  tab:next field  enter:capture / add user  ctrl+d:debug  ctrl+c:quit"
	} else {
		body = login.View(m.board, m.keypad, m.width)
		help = "  r:retry  ctrl+d:debug  q:quit"
	}

	sections := []string{
		m.statusBar.View(),
		body,
		theme.StyleDimmed.Render(help),
	}
	if m.redirecting {
		sections = append(sections, theme.StyleDimmed.Render("  Loading..."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
