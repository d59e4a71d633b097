// Package enroll renders the enrollment station: the username, PIN and
// balance inputs and the capture/add-user panels.
package enroll

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/surface"
	"github.com/facepin/kiosk/internal/theme"
)

// Field indexes the form inputs.
type Field int

const (
	FieldUsername Field = iota
	FieldPIN
	FieldBalance
	fieldCount
)

// Form holds the operator inputs.
type Form struct {
	inputs [fieldCount]textinput.Model
	focus  Field
}

// NewForm returns an empty form focused on the username.
func NewForm() Form {
	var f Form

	f.inputs[FieldUsername] = textinput.New()
	f.inputs[FieldUsername].Prompt = "Username: "
	f.inputs[FieldUsername].Placeholder = "letters, digits, _"
	f.inputs[FieldUsername].CharLimit = 64

	f.inputs[FieldPIN] = textinput.New()
	f.inputs[FieldPIN].Prompt = "PIN:      "
	f.inputs[FieldPIN].Placeholder = "4 digits"
	f.inputs[FieldPIN].CharLimit = 4
	f.inputs[FieldPIN].EchoMode = textinput.EchoPassword
	f.inputs[FieldPIN].EchoCharacter = '*'

	f.inputs[FieldBalance] = textinput.New()
	f.inputs[FieldBalance].Prompt = "Balance:  "
	f.inputs[FieldBalance].Placeholder = "0.00"
	f.inputs[FieldBalance].CharLimit = 16

	for i := range f.inputs {
		f.inputs[i].Cursor.SetMode(cursor.CursorStatic)
	}
	f.setFocus(FieldUsername)
	return f
}

func (f *Form) setFocus(field Field) {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.focus = field
	f.inputs[field].Focus()
}

// Focused returns the field receiving keystrokes.
func (f Form) Focused() Field { return f.focus }

// Next moves focus to the following field, wrapping.
func (f *Form) Next() { f.setFocus((f.focus + 1) % fieldCount) }

// Prev moves focus to the preceding field, wrapping.
func (f *Form) Prev() { f.setFocus((f.focus + fieldCount - 1) % fieldCount) }

// Focus moves focus to field.
func (f *Form) Focus(field Field) { f.setFocus(field) }

// Value returns the raw text of a field.
func (f Form) Value(field Field) string { return f.inputs[field].Value() }

// SetValue replaces the text of a field.
func (f *Form) SetValue(field Field, v string) { f.inputs[field].SetValue(v) }

// Reset clears every input and refocuses the username.
func (f *Form) Reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.setFocus(FieldUsername)
}

// Update routes a message to the focused input.
func (f Form) Update(msg tea.Msg) (Form, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

var (
	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder)

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(theme.ColorBg).
			Background(theme.ColorHealthy)
)

func button(label string, enabled bool) string {
	if !enabled {
		return theme.StyleDisabled.Render("[" + label + "]")
	}
	return buttonStyle.Render(label)
}

func message(text string) string {
	if text == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(theme.MessageColor(text)).Render(text)
}

// View renders the station from the form and the board.
func View(f Form, b *surface.Board, width int) string {
	if width < 40 {
		width = 40
	}
	half := width/2 - 2

	var capture []string
	capture = append(capture,
		theme.StyleHeader.Render("1. Capture reference"),
		f.inputs[FieldUsername].View(),
		"",
		button("enter: start capture", b.Enabled(surface.CaptureButton)),
		"",
		message(b.Text(surface.CaptureStatus)),
	)
	switch {
	case b.Visible(surface.Video):
		capture = append(capture, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("● LIVE camera"))
	case b.Visible(surface.CapturedImage):
		capture = append(capture, theme.StyleDimmed.Render("captured: ")+b.Image(surface.CapturedImage))
	}

	add := []string{
		theme.StyleHeader.Render("2. Add user"),
		f.inputs[FieldPIN].View(),
		f.inputs[FieldBalance].View(),
		"",
		button("enter: add user", b.Enabled(surface.AddUserButton)),
		"",
		message(b.Text(surface.AddUserStatus)),
	}

	left := panelStyle.Width(half).Render(strings.Join(capture, "\n"))
	right := panelStyle.Width(half).Render(strings.Join(add, "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
