package session

import (
	"github.com/facepin/kiosk/internal/protocol"
	"github.com/facepin/kiosk/internal/surface"
)

// Effect is a side effect requested by a transition.
type Effect interface{ isEffect() }

// UI effects.
type (
	SetText struct {
		Region surface.Region
		Text   string
	}
	SetImage struct {
		Region surface.Region
		Src    string
	}
	Show    struct{ Region surface.Region }
	Hide    struct{ Region surface.Region }
	Enable  struct{ Control surface.Control }
	Disable struct{ Control surface.Control }
	// Highlight marks the keypad digit, or clears it for NoDigit.
	Highlight struct{ Digit protocol.Digit }
	// ResetForm clears the enrollment inputs.
	ResetForm struct{}
)

// Runtime effects.
type (
	// OpenCamera requests device access; the result comes back as
	// CameraOpened or CameraFailed tagged with Epoch.
	OpenCamera struct{ Epoch uint64 }
	// StopCapture stops the transmitter and releases the camera before the
	// next effect runs.
	StopCapture struct{}
	// StartStreaming starts the frame transmitter.
	StartStreaming struct{}
	// Emit sends an event on the channel.
	Emit struct {
		Type    protocol.EventType
		Payload any
	}
	// SubmitEnrollment issues the one-shot enrollment request.
	SubmitEnrollment struct{ Enrollment Enrollment }
	// ArmStallTimer schedules Stalled{Epoch}.
	ArmStallTimer struct{ Epoch uint64 }
	// Redirect navigates away; the session ends.
	Redirect struct{ Path string }
)

// Enrollment is the one-shot submission body.
type Enrollment struct {
	Username  string
	PIN       string
	Balance   string
	ImagePath string
}

func (SetText) isEffect()          {}
func (SetImage) isEffect()         {}
func (Show) isEffect()             {}
func (Hide) isEffect()             {}
func (Enable) isEffect()           {}
func (Disable) isEffect()          {}
func (Highlight) isEffect()        {}
func (ResetForm) isEffect()        {}
func (OpenCamera) isEffect()       {}
func (StopCapture) isEffect()      {}
func (StartStreaming) isEffect()   {}
func (Emit) isEffect()             {}
func (SubmitEnrollment) isEffect() {}
func (ArmStallTimer) isEffect()    {}
func (Redirect) isEffect()         {}

// Paint applies the surface effects to sf and returns the remaining
// effects in their original order.
func Paint(sf surface.Surface, effects []Effect) []Effect {
	var rest []Effect
	for _, e := range effects {
		switch e := e.(type) {
		case SetText:
			sf.SetText(e.Region, e.Text)
		case SetImage:
			sf.SetImage(e.Region, e.Src)
		case Show:
			sf.Show(e.Region)
		case Hide:
			sf.Hide(e.Region)
		case Enable:
			sf.Enable(e.Control)
		case Disable:
			sf.Disable(e.Control)
		case Highlight:
			sf.Highlight(int(e.Digit))
		default:
			rest = append(rest, e)
		}
	}
	return rest
}
