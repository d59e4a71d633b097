// Package surface is the kiosk's UI contract: addressable text and image
// regions, show/hide regions, enable/disable controls, and one keypad
// highlight. The session writes to it; the terminal views read from it.
// It is a leaf package with no internal imports.
package surface

// Region addresses a display area.
type Region string

// Control addresses an input control.
type Control string

// Regions shared by both flows.
const (
	// Enrollment.
	CaptureStatus Region = "capture-status"
	AddUserStatus Region = "add-user-status"
	CapturedImage Region = "captured-image"

	// Authentication.
	StatusMessage  Region = "status-message"
	ProcessedImage Region = "processed-image"
	PinArea        Region = "pin-entry-area"
	PinMask        Region = "pin-so-far"
	CurrentDigit   Region = "current-digit"
	User           Region = "user"

	// Both.
	Video Region = "video-container"
)

// Controls.
const (
	CaptureButton Control = "capture-btn"
	AddUserButton Control = "add-user-btn"
	RetryButton   Control = "retry-btn"
)

// NoHighlight clears the keypad highlight.
const NoHighlight = -1

// Surface is the narrow set/get contract the session drives.
type Surface interface {
	SetText(r Region, text string)
	Text(r Region) string
	SetImage(r Region, src string)
	Image(r Region) string
	Show(r Region)
	Hide(r Region)
	Visible(r Region) bool
	Enable(c Control)
	Disable(c Control)
	Enabled(c Control) bool
	Highlight(digit int)
	Highlighted() int
}

// Board is an in-memory Surface. Regions start hidden, controls disabled.
// It is not safe for concurrent use; the event loop owns it.
type Board struct {
	texts     map[Region]string
	images    map[Region]string
	visible   map[Region]bool
	enabled   map[Control]bool
	highlight int
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{
		texts:     make(map[Region]string),
		images:    make(map[Region]string),
		visible:   make(map[Region]bool),
		enabled:   make(map[Control]bool),
		highlight: NoHighlight,
	}
}

func (b *Board) SetText(r Region, text string) { b.texts[r] = text }
func (b *Board) Text(r Region) string          { return b.texts[r] }

// SetImage sets the image source and shows the region.
func (b *Board) SetImage(r Region, src string) {
	b.images[r] = src
	b.visible[r] = true
}

func (b *Board) Image(r Region) string  { return b.images[r] }
func (b *Board) Show(r Region)          { b.visible[r] = true }
func (b *Board) Hide(r Region)          { b.visible[r] = false }
func (b *Board) Visible(r Region) bool  { return b.visible[r] }
func (b *Board) Enable(c Control)       { b.enabled[c] = true }
func (b *Board) Disable(c Control)      { b.enabled[c] = false }
func (b *Board) Enabled(c Control) bool { return b.enabled[c] }
func (b *Board) Highlighted() int       { return b.highlight }

// Highlight marks digit 0-9; any other value clears the highlight.
func (b *Board) Highlight(digit int) {
	if digit < 0 || digit > 9 {
		digit = NoHighlight
	}
	b.highlight = digit
}
