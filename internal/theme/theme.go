// Package theme provides the Lip Gloss color palette and reusable styles
// for the kiosk TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Phase colors.
var (
	ColorConnecting = lipgloss.Color("#7c3aed")
	ColorCapturing  = lipgloss.Color("#2563eb")
	ColorPinEntry   = lipgloss.Color("#d97706")
	ColorVerifying  = lipgloss.Color("#06b6d4")
	ColorResolved   = lipgloss.Color("#16a34a")
	ColorFailed     = lipgloss.Color("#dc2626")
	ColorIdle       = lipgloss.Color("#4b5563")
)

// Keypad colors.
var (
	ColorKey          = lipgloss.Color("#374151")
	ColorKeyHighlight = lipgloss.Color("#f59e0b")
	ColorKeyCursor    = lipgloss.Color("#fde68a")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// PhaseColor returns the Lip Gloss color for a session phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "connecting", "camera-starting":
		return ColorConnecting
	case "streaming-awaiting-capture", "recognizing", "submitting":
		return ColorCapturing
	case "pin-entry":
		return ColorPinEntry
	case "verifying":
		return ColorVerifying
	case "resolved", "capture-succeeded":
		return ColorResolved
	case "failed", "capture-failed":
		return ColorFailed
	case "idle", "awaiting-capture-trigger":
		return ColorIdle
	default:
		return ColorDefault
	}
}

// MessageColor picks a color for an operator message from its prefix.
func MessageColor(msg string) lipgloss.Color {
	switch {
	case strings.HasPrefix(msg, "Error"):
		return ColorDanger
	case strings.HasPrefix(msg, "Success"), strings.HasPrefix(msg, "Login Successful"):
		return ColorHealthy
	case strings.HasPrefix(msg, "Disconnected"), strings.HasPrefix(msg, "Login Failed"):
		return ColorWarning
	default:
		return ColorBright
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDisabled = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Strikethrough(true)
)

// PhaseGlyph returns a Unicode glyph representing a session phase.
func PhaseGlyph(phase string) string {
	switch phase {
	case "connecting":
		return "◌"
	case "camera-starting":
		return "◎"
	case "streaming-awaiting-capture", "recognizing":
		return "●>"
	case "pin-entry":
		return "#"
	case "verifying", "submitting":
		return "⚙>"
	case "resolved", "capture-succeeded":
		return "✓"
	case "failed", "capture-failed":
		return "✗"
	default:
		return "○"
	}
}
