// Package debug is the kiosk's diagnostic overlay: a bounded log of runtime
// events, each stamped with the session epoch and phase it happened in,
// under a header showing the last published session state.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/facepin/kiosk/internal/metrics"
	"github.com/facepin/kiosk/internal/theme"
)

const maxEntries = 200

// Kind groups entries by the subsystem that produced them.
type Kind string

const (
	KindAll     Kind = ""
	KindChannel Kind = "ws"
	KindCamera  Kind = "cam"
	KindFSM     Kind = "fsm"
	KindNav     Kind = "nav"
	KindError   Kind = "err"
)

// filterOrder is the cycle CycleFilter walks through.
var filterOrder = []Kind{KindAll, KindChannel, KindCamera, KindFSM, KindNav, KindError}

func (k Kind) String() string {
	if k == KindAll {
		return "all"
	}
	return string(k)
}

// Entry is one logged event.
type Entry struct {
	At    time.Time
	Kind  Kind
	Epoch uint64
	Phase string
	Text  string
}

// Model holds the log, the active filter and the state snapshot.
type Model struct {
	entries []Entry
	filter  Kind
	offset  int // lines scrolled up from the newest visible entry
	state   metrics.State
	now     func() time.Time
}

// New creates an empty overlay.
func New() Model {
	return Model{now: time.Now}
}

// Track records the session state that later entries are stamped with.
func (m *Model) Track(s metrics.State) {
	m.state = s
}

// State returns the last tracked snapshot.
func (m Model) State() metrics.State { return m.state }

// Addf appends a formatted entry.
func (m *Model) Addf(kind Kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// Add appends an entry stamped with the tracked epoch and phase. New entries
// snap the view back to the bottom.
func (m *Model) Add(kind Kind, text string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.entries = append(m.entries, Entry{
		At:    now(),
		Kind:  kind,
		Epoch: m.state.Epoch,
		Phase: m.state.Phase,
		Text:  text,
	})
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
	m.offset = 0
}

// Len is the total number of retained entries, ignoring the filter.
func (m Model) Len() int { return len(m.entries) }

// Filter returns the active kind filter.
func (m Model) Filter() Kind { return m.filter }

// CycleFilter moves to the next kind filter and back to the bottom.
func (m *Model) CycleFilter() {
	for i, k := range filterOrder {
		if k == m.filter {
			m.filter = filterOrder[(i+1)%len(filterOrder)]
			break
		}
	}
	m.offset = 0
}

// Visible returns the entries passing the active filter, oldest first.
func (m Model) Visible() []Entry {
	if m.filter == KindAll {
		return m.entries
	}
	var out []Entry
	for _, e := range m.entries {
		if e.Kind == m.filter {
			out = append(out, e)
		}
	}
	return out
}

// Offset is how far the view is scrolled up.
func (m Model) Offset() int { return m.offset }

// ScrollUp moves the view towards older entries.
func (m *Model) ScrollUp(n int) {
	m.offset = min(m.offset+n, max(len(m.Visible())-1, 0))
}

// ScrollDown moves the view towards newer entries.
func (m *Model) ScrollDown(n int) {
	m.offset = max(m.offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the overlay.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-9, 3)

	title := theme.StyleHeader.Render(" DEBUG LOG ")
	header := m.stateLine()
	visible := m.Visible()
	help := theme.StyleDimmed.Render(fmt.Sprintf("↑/↓:scroll  f:filter [%s]  esc:close  %d/%d entries",
		m.filter, len(visible), len(m.entries)))

	if len(visible) == 0 {
		empty := "  No events recorded yet."
		if m.filter != KindAll && len(m.entries) > 0 {
			empty = fmt.Sprintf("  No %s events.", m.filter)
		}
		body := theme.StyleDimmed.Render(empty)
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, header, "", body, "", help))
	}

	end := max(len(visible)-m.offset, 0)
	start := max(end-rows, 0)

	lines := make([]string, 0, end-start)
	for _, e := range visible[start:end] {
		lines = append(lines, m.line(e, innerW))
	}

	more := ""
	if m.offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, header, "", strings.Join(lines, "\n"), more, help)
	return panelStyle(innerW).Render(content)
}

// stateLine summarizes the tracked session state.
func (m Model) stateLine() string {
	s := m.state
	if s.Flow == "" {
		return theme.StyleDimmed.Render("no session state")
	}
	ws := lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("down")
	if s.Connected {
		ws = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("up")
	}
	cam := "off"
	if s.CameraActive {
		cam = "on"
	}
	parts := []string{
		s.Flow,
		lipgloss.NewStyle().Foreground(theme.PhaseColor(s.Phase)).Render(s.Phase),
		fmt.Sprintf("epoch %d", s.Epoch),
		"ws " + ws,
		"cam " + cam,
	}
	if s.Identity != "" {
		parts = append(parts, "user "+s.Identity)
	}
	line := strings.Join(parts, "  ")
	if s.LastError != "" {
		line += "\n" + lipgloss.NewStyle().Foreground(theme.ColorFailed).Render("last error: "+s.LastError)
	}
	return line
}

func (m Model) line(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.At.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind))
	tag := theme.StyleDimmed.Render(fmt.Sprintf("e%d %-12s", e.Epoch, e.Phase))
	text := e.Text
	if limit := width - 40; limit > 3 && len(text) > limit {
		text = text[:limit-3] + "..."
	}
	return fmt.Sprintf("%s %s %s %s", ts, kind, tag, text)
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindChannel:
		return theme.ColorCapturing
	case KindCamera:
		return theme.ColorPinEntry
	case KindFSM:
		return theme.ColorVerifying
	case KindError:
		return theme.ColorFailed
	case KindNav:
		return theme.ColorConnecting
	default:
		return theme.ColorDimmed
	}
}
