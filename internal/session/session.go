// Package session is the kiosk controller: a pure state machine mapping
// (Session, Event) to (Session, []Effect). It never touches devices,
// sockets or the screen; the runtime executes the returned effects in
// order.
package session

import (
	"fmt"

	"github.com/facepin/kiosk/internal/protocol"
)

// Flow selects which state machine a session runs.
type Flow int

const (
	FlowEnrollment Flow = iota
	FlowAuthentication
)

func (f Flow) String() string {
	switch f {
	case FlowEnrollment:
		return "enrollment"
	case FlowAuthentication:
		return "authentication"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Phase is the current step within a flow.
type Phase string

// Enrollment phases.
const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingTrigger  Phase = "awaiting-capture-trigger"
	PhaseStreaming        Phase = "streaming-awaiting-capture"
	PhaseCaptureSucceeded Phase = "capture-succeeded"
	PhaseSubmitting       Phase = "submitting"
	PhaseCaptureFailed    Phase = "capture-failed"
)

// Authentication phases.
const (
	PhaseConnecting  Phase = "connecting"
	PhaseRecognizing Phase = "recognizing"
	PhasePinEntry    Phase = "pin-entry"
	PhaseVerifying   Phase = "verifying"
	PhaseResolved    Phase = "resolved"
	PhaseFailed      Phase = "failed"
)

// PhaseCameraStarting is shared by both flows.
const PhaseCameraStarting Phase = "camera-starting"

// Session is the controller's state record. Only the length of the PIN is
// ever held; digit values never reach the client.
type Session struct {
	Flow  Flow
	Phase Phase
	// Epoch increments on every phase change. Timers and camera opens carry
	// the epoch they were issued in so late results can be recognised.
	Epoch uint64

	Connected    bool
	CameraActive bool

	// Identity is the username being enrolled, or the recognised user.
	Identity  string
	ImagePath string

	PinLength int
	Highlight protocol.Digit

	LastError string
}

// NewEnrollment returns an enrollment session in its idle phase.
func NewEnrollment() Session {
	return Session{Flow: FlowEnrollment, Phase: PhaseIdle, Highlight: protocol.NoDigit}
}

// NewAuthentication returns an authentication session waiting for the channel.
func NewAuthentication() Session {
	return Session{Flow: FlowAuthentication, Phase: PhaseConnecting, Highlight: protocol.NoDigit}
}

// Enter returns the effects that draw the page-entry baseline.
func (s Session) Enter() []Effect {
	if s.Flow == FlowEnrollment {
		return enrollEnter()
	}
	return loginEnter()
}

// Handle applies one event.
func (s Session) Handle(ev Event) (Session, []Effect) {
	if s.Flow == FlowEnrollment {
		return s.handleEnrollment(ev)
	}
	return s.handleAuthentication(ev)
}

// Terminal reports whether the session has handed off to a redirect.
func (s Session) Terminal() bool {
	return s.Phase == PhaseResolved
}

func (s *Session) enter(p Phase) {
	if s.Phase == p {
		return
	}
	s.Phase = p
	s.Epoch++
}

func (s Session) in(phases ...Phase) bool {
	for _, p := range phases {
		if s.Phase == p {
			return true
		}
	}
	return false
}

// stopCapture records that the camera and transmitter are going down and
// returns the effect that does it.
func (s *Session) stopCapture() Effect {
	s.CameraActive = false
	return StopCapture{}
}
