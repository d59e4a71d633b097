package session

import (
	"strings"

	"github.com/facepin/kiosk/internal/surface"
)

// renderPIN draws the PIN widgets from the session's progress. Every PIN
// event funnels through here: mask length is the number of confirmed
// digits, highlight is the digit the backend currently indicates.
func (s Session) renderPIN() []Effect {
	return []Effect{
		SetText{Region: surface.PinMask, Text: strings.Repeat("*", s.PinLength)},
		SetText{Region: surface.CurrentDigit, Text: s.Highlight.String()},
		Highlight{Digit: s.Highlight},
	}
}
