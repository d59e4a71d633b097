package session

import "time"

// Event is an input to the state machine.
type Event interface{ isEvent() }

// Channel lifecycle.
type (
	Connected     struct{}
	ConnectFailed struct{ Err error }
	Disconnected  struct{ Reason string }
)

// Camera open outcome for the open issued in Epoch.
type (
	CameraOpened struct{ Epoch uint64 }
	CameraFailed struct {
		Epoch uint64
		Err   error
	}
)

// Push is a backend event. Payload is one of the protocol server→client
// payload values; At is when it was received.
type Push struct {
	Payload any
	At      time.Time
}

// Local operator actions.
type (
	// StartCapture is the enrollment "start capture" action.
	StartCapture struct{ Identity string }
	// Submit is the enrollment "add user" action.
	Submit struct{ PIN, Balance string }
	// Retry restarts the camera after an authentication failure.
	Retry struct{}
)

// SubmitDone is the outcome of the one-shot enrollment request.
type SubmitDone struct {
	Message string
	Err     error
}

// Stalled fires when a capture issued in Epoch has gone unsubmitted.
type Stalled struct{ Epoch uint64 }

func (Connected) isEvent()     {}
func (ConnectFailed) isEvent() {}
func (Disconnected) isEvent()  {}
func (CameraOpened) isEvent()  {}
func (CameraFailed) isEvent()  {}
func (Push) isEvent()          {}
func (StartCapture) isEvent()  {}
func (Submit) isEvent()        {}
func (Retry) isEvent()         {}
func (SubmitDone) isEvent()    {}
func (Stalled) isEvent()       {}
