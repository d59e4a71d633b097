// Package keypad renders the 0-9 keypad used during PIN entry. The
// highlighted key follows the backend; a spring-driven cursor glides
// toward it so the operator can see the selection move.
package keypad

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/theme"
)

const (
	fps       = 60
	frequency = 7.0
	damping   = 0.8
	settled   = 0.01
)

// None means no key is highlighted.
const None = -1

// FrameMsg advances the cursor animation by one frame.
type FrameMsg struct{}

// Model is the keypad state.
type Model struct {
	Highlight int

	x, y      float64
	vx, vy    float64
	spring    harmonica.Spring
	animating bool
}

// New returns a keypad with nothing highlighted.
func New() Model {
	return Model{
		Highlight: None,
		spring:    harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
	}
}

// cell returns the grid column and row of a digit on a phone-style pad.
func cell(d int) (col, row float64) {
	if d == 0 {
		return 1, 3
	}
	return float64((d - 1) % 3), float64((d - 1) / 3)
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// SetHighlight moves the highlight to d. Values outside 0-9 clear it. The
// returned command drives the cursor animation, if one needs starting.
func (m *Model) SetHighlight(d int) tea.Cmd {
	if d < 0 || d > 9 {
		m.Highlight = None
		m.animating = false
		return nil
	}
	prev := m.Highlight
	m.Highlight = d
	if prev == None {
		// Nothing to glide from: appear on the key.
		m.x, m.y = cell(d)
		m.vx, m.vy = 0, 0
		return nil
	}
	if prev == d || m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Animating reports whether the cursor is still moving.
func (m Model) Animating() bool { return m.animating }

// Update advances the animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}
	if m.Highlight == None {
		m.animating = false
		return m, nil
	}

	tx, ty := cell(m.Highlight)
	m.x, m.vx = m.spring.Update(m.x, m.vx, tx)
	m.y, m.vy = m.spring.Update(m.y, m.vy, ty)

	if math.Abs(m.x-tx) < settled && math.Abs(m.y-ty) < settled &&
		math.Abs(m.vx) < settled && math.Abs(m.vy) < settled {
		m.x, m.y, m.vx, m.vy = tx, ty, 0, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

// cursorDigit returns the key under the animated cursor, or None.
func (m Model) cursorDigit() int {
	if m.Highlight == None {
		return None
	}
	col, row := int(math.Round(m.x)), int(math.Round(m.y))
	switch {
	case row == 3 && col == 1:
		return 0
	case row >= 0 && row < 3 && col >= 0 && col < 3:
		return row*3 + col + 1
	}
	return None
}

var (
	keyStyle = lipgloss.NewStyle().
			Width(5).
			Align(lipgloss.Center).
			Foreground(theme.ColorBright).
			Background(theme.ColorKey)

	highlightStyle = keyStyle.
			Bold(true).
			Foreground(theme.ColorBg).
			Background(theme.ColorKeyHighlight)

	cursorStyle = keyStyle.
			Foreground(theme.ColorBg).
			Background(theme.ColorKeyCursor)

	blank = lipgloss.NewStyle().Width(5).Render("")
)

// View renders the pad as four rows of keys.
func (m Model) View() string {
	cursor := m.cursorDigit()
	key := func(d int) string {
		label := fmt.Sprintf("%d", d)
		switch {
		case d == m.Highlight && !m.animating:
			return highlightStyle.Render(label)
		case d == cursor && m.animating:
			return cursorStyle.Render(label)
		default:
			return keyStyle.Render(label)
		}
	}

	rows := make([]string, 0, 4)
	for r := 0; r < 3; r++ {
		var keys []string
		for c := 0; c < 3; c++ {
			keys = append(keys, key(r*3+c+1))
		}
		rows = append(rows, strings.Join(keys, " "))
	}
	rows = append(rows, strings.Join([]string{blank, key(0), blank}, " "))
	return strings.Join(rows, "\n\n")
}
