// Package login renders the authentication screen from the board.
package login

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/surface"
	"github.com/facepin/kiosk/internal/theme"
	"github.com/facepin/kiosk/internal/views/keypad"
)

var (
	boxStyle = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder)

	maskStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorPinEntry)

	liveStyle = lipgloss.NewStyle().Foreground(theme.ColorDanger)
)

// View renders the screen.
func View(b *surface.Board, pad keypad.Model, width int) string {
	if width < 40 {
		width = 40
	}

	status := b.Text(surface.StatusMessage)
	lines := []string{
		lipgloss.NewStyle().Foreground(theme.MessageColor(status)).Render(status),
		"",
	}

	switch {
	case b.Visible(surface.ProcessedImage):
		src := b.Image(surface.ProcessedImage)
		if len(src) > 48 {
			src = src[:45] + "..."
		}
		lines = append(lines, theme.StyleDimmed.Render("processed frame: "+src))
	case b.Visible(surface.Video):
		lines = append(lines, liveStyle.Render("● LIVE camera"))
	}

	if b.Visible(surface.PinArea) {
		lines = append(lines,
			"",
			theme.StyleHeader.Render("Welcome, "+b.Text(surface.User)),
			"PIN:    "+maskStyle.Render(b.Text(surface.PinMask)),
			"Digit:  "+theme.StyleSelected.Render(b.Text(surface.CurrentDigit)),
			"",
			pad.View(),
		)
	}

	if b.Enabled(surface.RetryButton) {
		lines = append(lines, "", theme.StyleDimmed.Render("r: retry  q: quit"))
	} else {
		lines = append(lines, "", theme.StyleDimmed.Render("q: quit"))
	}

	return boxStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}
