// Package page renders a followed redirect destination with Glamour.
package page

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/client"
	"github.com/facepin/kiosk/internal/theme"
)

// Render formats p for a terminal of the given width. Markdown that fails
// to render is shown as plain text.
func Render(p *client.Page, width int) string {
	if width < 40 {
		width = 40
	}
	inner := width - 6

	title := p.Title
	if title == "" {
		title = p.URL
	}
	color := theme.ColorHealthy
	if p.Status >= 300 {
		color = theme.ColorWarning
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	header := headerStyle.Render(fmt.Sprintf("%s  (%d)", title, p.Status))

	body := p.Markdown
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(inner),
	)
	if err == nil {
		if out, err := r.Render(p.Markdown); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		theme.StyleDimmed.Render(p.URL),
		body,
		"",
		theme.StyleDimmed.Render("press any key to exit"),
	)
	return theme.StyleBorder.Width(width - 2).Padding(0, 1).Render(content)
}
