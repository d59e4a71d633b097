package session

import (
	"fmt"
	"strings"

	"github.com/facepin/kiosk/internal/capture"
	"github.com/facepin/kiosk/internal/protocol"
	"github.com/facepin/kiosk/internal/surface"
)

// Enrollment status texts.
const (
	msgConnecting      = "Connecting to server..."
	msgConnectError    = "Error: Cannot connect to server."
	msgDisconnected    = "Disconnected from server. Reconnecting..."
	msgEnrollReady     = "Connected. Enter a username and start the capture."
	msgInitializing    = "Initializing capture..."
	msgCameraActive    = "Camera active. Waiting for the server..."
	msgCaptureReady    = "Camera ready. Look at the camera."
	msgAddingUser      = "Adding user..."
	msgNextCapture     = "User added. Ready for next capture."
	msgStalled         = "Capture not submitted yet. Add the user, or capture again to replace the image."
	msgMissingImageRef = "capture reported success without an image reference"
)

func enrollEnter() []Effect {
	return []Effect{
		SetText{Region: surface.CaptureStatus, Text: msgConnecting},
		SetText{Region: surface.AddUserStatus, Text: ""},
		Hide{Region: surface.Video},
		Hide{Region: surface.CapturedImage},
		Disable{Control: surface.CaptureButton},
		Disable{Control: surface.AddUserButton},
	}
}

func (s Session) handleEnrollment(ev Event) (Session, []Effect) {
	switch ev := ev.(type) {
	case Connected:
		return s.enrollConnected()
	case ConnectFailed:
		s.Connected = false
		return s, []Effect{
			SetText{Region: surface.CaptureStatus, Text: msgConnectError},
			Disable{Control: surface.CaptureButton},
		}
	case Disconnected:
		return s.enrollDisconnected()
	case StartCapture:
		return s.startCapture(ev.Identity)
	case CameraOpened:
		return s.enrollCameraOpened(ev)
	case CameraFailed:
		if ev.Epoch != s.Epoch || s.Phase != PhaseCameraStarting {
			return s, nil
		}
		return s.captureFailed(capture.Message(ev.Err))
	case Push:
		return s.enrollPush(ev)
	case Submit:
		return s.submit(ev)
	case SubmitDone:
		return s.submitDone(ev)
	case Stalled:
		if ev.Epoch != s.Epoch || s.Phase != PhaseCaptureSucceeded {
			return s, nil
		}
		effects := []Effect{SetText{Region: surface.CaptureStatus, Text: msgStalled}}
		if s.Connected {
			effects = append(effects, Enable{Control: surface.CaptureButton})
		}
		return s, effects
	}
	return s, nil
}

func (s Session) enrollConnected() (Session, []Effect) {
	s.Connected = true
	switch s.Phase {
	case PhaseIdle, PhaseAwaitingTrigger, PhaseCaptureFailed:
		s.enter(PhaseAwaitingTrigger)
		return s, []Effect{
			SetText{Region: surface.CaptureStatus, Text: msgEnrollReady},
			Enable{Control: surface.CaptureButton},
		}
	}
	return s, nil
}

func (s Session) enrollDisconnected() (Session, []Effect) {
	s.Connected = false
	effects := []Effect{Disable{Control: surface.CaptureButton}}

	switch s.Phase {
	case PhaseCameraStarting, PhaseStreaming:
		effects = append(effects, s.stopCapture(), Hide{Region: surface.Video})
		s.enter(PhaseCaptureFailed)
		s.LastError = msgDisconnected
	}
	// A stored reference survives: submission does not need the channel.
	return s, append(effects, SetText{Region: surface.CaptureStatus, Text: msgDisconnected})
}

func (s Session) startCapture(raw string) (Session, []Effect) {
	if !s.in(PhaseIdle, PhaseAwaitingTrigger, PhaseCaptureFailed, PhaseCaptureSucceeded) {
		return s, nil
	}

	id, err := ValidateIdentity(raw)
	if err != nil {
		s.LastError = err.Error()
		return s, []Effect{SetText{Region: surface.CaptureStatus, Text: "Error: " + err.Error()}}
	}
	if !s.Connected {
		s.LastError = msgConnectError
		return s, []Effect{SetText{Region: surface.CaptureStatus, Text: msgConnectError}}
	}

	s.Identity = id
	s.ImagePath = ""
	s.LastError = ""
	s.enter(PhaseCameraStarting)
	return s, []Effect{
		SetText{Region: surface.CaptureStatus, Text: msgInitializing},
		SetText{Region: surface.AddUserStatus, Text: ""},
		Show{Region: surface.Video},
		Hide{Region: surface.CapturedImage},
		Disable{Control: surface.CaptureButton},
		Disable{Control: surface.AddUserButton},
		OpenCamera{Epoch: s.Epoch},
	}
}

func (s Session) enrollCameraOpened(ev CameraOpened) (Session, []Effect) {
	if ev.Epoch != s.Epoch || s.Phase != PhaseCameraStarting {
		return s, nil
	}
	if !s.Connected {
		return s.captureFailed(msgConnectError)
	}

	s.CameraActive = true
	s.enter(PhaseStreaming)
	// Frames can flow now, so it is safe to announce the capture.
	return s, []Effect{
		StartStreaming{},
		Emit{Type: protocol.EventStartAdminCapture, Payload: protocol.StartAdminCapture{Username: s.Identity}},
		SetText{Region: surface.CaptureStatus, Text: msgCameraActive},
	}
}

func (s Session) enrollPush(ev Push) (Session, []Effect) {
	capturing := s.in(PhaseCameraStarting, PhaseStreaming)

	switch p := ev.Payload.(type) {
	case protocol.AdminCaptureReady:
		if capturing {
			return s, []Effect{SetText{Region: surface.CaptureStatus, Text: msgCaptureReady}}
		}
	case protocol.AdminStatus:
		if capturing {
			return s, []Effect{SetText{Region: surface.CaptureStatus, Text: p.Message}}
		}
	case protocol.AdminError:
		if capturing {
			return s.captureFailed("Error: " + p.Message)
		}
	case protocol.AdminCaptureSuccess:
		if s.Phase != PhaseStreaming {
			return s, nil
		}
		if strings.TrimSpace(p.ImagePath) == "" {
			return s.captureFailed("Error: " + msgMissingImageRef)
		}
		return s.captureSucceeded(p, ev)
	}
	return s, nil
}

func (s Session) captureSucceeded(p protocol.AdminCaptureSuccess, ev Push) (Session, []Effect) {
	effects := []Effect{s.stopCapture()}
	s.ImagePath = p.ImagePath
	s.LastError = ""
	s.enter(PhaseCaptureSucceeded)

	src := p.ImagePath
	if !ev.At.IsZero() {
		src = fmt.Sprintf("%s?t=%d", p.ImagePath, ev.At.UnixMilli())
	}
	return s, append(effects,
		SetText{Region: surface.CaptureStatus, Text: p.Message},
		SetImage{Region: surface.CapturedImage, Src: src},
		Hide{Region: surface.Video},
		Enable{Control: surface.AddUserButton},
		Disable{Control: surface.CaptureButton},
		ArmStallTimer{Epoch: s.Epoch},
	)
}

// captureFailed stops the camera and returns the form to retry-ready.
func (s Session) captureFailed(text string) (Session, []Effect) {
	effects := []Effect{s.stopCapture()}
	s.LastError = text
	s.enter(PhaseCaptureFailed)
	effects = append(effects,
		SetText{Region: surface.CaptureStatus, Text: text},
		Hide{Region: surface.Video},
		Disable{Control: surface.AddUserButton},
	)
	if s.Connected {
		effects = append(effects, Enable{Control: surface.CaptureButton})
	}
	return s, effects
}

func (s Session) submit(ev Submit) (Session, []Effect) {
	if s.Phase != PhaseCaptureSucceeded {
		return s, nil
	}
	if err := ValidateSubmission(s.Identity, ev.PIN, ev.Balance); err != nil {
		s.LastError = err.Error()
		return s, []Effect{SetText{Region: surface.AddUserStatus, Text: "Error: " + err.Error()}}
	}

	s.LastError = ""
	s.enter(PhaseSubmitting)
	return s, []Effect{
		Disable{Control: surface.AddUserButton},
		Disable{Control: surface.CaptureButton},
		SetText{Region: surface.AddUserStatus, Text: msgAddingUser},
		SubmitEnrollment{Enrollment: Enrollment{
			Username:  s.Identity,
			PIN:       ev.PIN,
			Balance:   strings.TrimSpace(ev.Balance),
			ImagePath: s.ImagePath,
		}},
	}
}

func (s Session) submitDone(ev SubmitDone) (Session, []Effect) {
	if s.Phase != PhaseSubmitting {
		return s, nil
	}

	if ev.Err != nil {
		s.LastError = ev.Err.Error()
		s.enter(PhaseCaptureSucceeded)
		return s, []Effect{
			SetText{Region: surface.AddUserStatus, Text: "Error: " + ev.Err.Error()},
			Enable{Control: surface.AddUserButton},
			ArmStallTimer{Epoch: s.Epoch},
		}
	}

	s.Identity = ""
	s.ImagePath = ""
	s.LastError = ""
	s.enter(PhaseIdle)
	effects := []Effect{
		SetText{Region: surface.AddUserStatus, Text: "Success: " + ev.Message},
		ResetForm{},
		Hide{Region: surface.CapturedImage},
		Disable{Control: surface.AddUserButton},
		SetText{Region: surface.CaptureStatus, Text: msgNextCapture},
	}
	if s.Connected {
		effects = append(effects, Enable{Control: surface.CaptureButton})
	}
	return s, effects
}
