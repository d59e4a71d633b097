package session

import (
	"net/url"
	"unicode/utf8"

	"github.com/facepin/kiosk/internal/capture"
	"github.com/facepin/kiosk/internal/protocol"
	"github.com/facepin/kiosk/internal/surface"
)

// Redirect destinations.
const (
	ConfirmLoginPath = "/confirm_login/"
	LoginFailedPath  = "/login_failed"
)

// Authentication status texts.
const (
	msgStartingCamera = "Starting camera..."
	msgLookingForFace = "Webcam active. Looking for face..."
	msgLoginSuccess   = "Login Successful! Redirecting..."
	msgLoginFailed    = "Login Failed. Redirecting..."
	msgMissingToken   = "Error: Login reported success without a token. Please ask staff for help."
	msgRecognitionErr = "Error: Recognition failed. Press r to try again."
)

func loginEnter() []Effect {
	return []Effect{SetText{Region: surface.StatusMessage, Text: msgConnecting}, Disable{Control: surface.RetryButton}}
}

// liveBaseline shows the raw camera view with no PIN widgets.
func liveBaseline() []Effect {
	return []Effect{
		Hide{Region: surface.PinArea},
		Hide{Region: surface.ProcessedImage},
		Show{Region: surface.Video},
		Highlight{Digit: protocol.NoDigit},
	}
}

func (s Session) handleAuthentication(ev Event) (Session, []Effect) {
	if s.Terminal() {
		return s, nil
	}

	switch ev := ev.(type) {
	case Connected:
		s.Connected = true
		switch s.Phase {
		case PhaseConnecting:
			return s.startCamera()
		case PhaseFailed:
			return s, []Effect{Enable{Control: surface.RetryButton}}
		}
		return s, nil
	case ConnectFailed:
		s.Connected = false
		return s, []Effect{
			SetText{Region: surface.StatusMessage, Text: msgConnectError},
			Disable{Control: surface.RetryButton},
		}
	case Disconnected:
		return s.loginDisconnected()
	case CameraOpened:
		return s.loginCameraOpened(ev)
	case CameraFailed:
		if ev.Epoch != s.Epoch || s.Phase != PhaseCameraStarting {
			return s, nil
		}
		return s.loginFailed(capture.Message(ev.Err))
	case Retry:
		if s.Phase != PhaseFailed {
			return s, nil
		}
		if !s.Connected {
			return s, []Effect{SetText{Region: surface.StatusMessage, Text: msgConnectError}}
		}
		return s.startCamera()
	case Push:
		return s.loginPush(ev.Payload)
	}
	return s, nil
}

func (s Session) startCamera() (Session, []Effect) {
	s.PinLength = 0
	s.Highlight = protocol.NoDigit
	s.LastError = ""
	s.enter(PhaseCameraStarting)
	effects := append(liveBaseline(),
		SetText{Region: surface.StatusMessage, Text: msgStartingCamera},
		Disable{Control: surface.RetryButton},
		OpenCamera{Epoch: s.Epoch},
	)
	return s, effects
}

func (s Session) loginCameraOpened(ev CameraOpened) (Session, []Effect) {
	if ev.Epoch != s.Epoch || s.Phase != PhaseCameraStarting {
		return s, nil
	}
	if !s.Connected {
		effects := []Effect{s.stopCapture()}
		s.enter(PhaseConnecting)
		return s, append(effects, SetText{Region: surface.StatusMessage, Text: msgDisconnected})
	}

	s.CameraActive = true
	s.enter(PhaseRecognizing)
	return s, []Effect{
		StartStreaming{},
		Emit{Type: protocol.EventStartUserLogin, Payload: protocol.StartUserLogin{}},
		SetText{Region: surface.StatusMessage, Text: msgLookingForFace},
	}
}

func (s Session) loginDisconnected() (Session, []Effect) {
	s.Connected = false
	var effects []Effect
	if s.in(PhaseCameraStarting, PhaseRecognizing, PhasePinEntry, PhaseVerifying) {
		// No resumption: the next backend push after reconnect decides.
		effects = append(effects, s.stopCapture())
		s.PinLength = 0
		s.Highlight = protocol.NoDigit
		s.enter(PhaseConnecting)
	}
	effects = append(effects, liveBaseline()...)
	return s, append(effects,
		SetText{Region: surface.StatusMessage, Text: msgDisconnected},
		Disable{Control: surface.RetryButton},
	)
}

// loginFailed is the retry-ready failure baseline. The channel stays up.
func (s Session) loginFailed(text string) (Session, []Effect) {
	effects := []Effect{s.stopCapture()}
	s.LastError = text
	s.PinLength = 0
	s.Highlight = protocol.NoDigit
	s.enter(PhaseFailed)
	effects = append(effects, liveBaseline()...)
	effects = append(effects, SetText{Region: surface.StatusMessage, Text: text})
	if s.Connected {
		effects = append(effects, Enable{Control: surface.RetryButton})
	}
	return s, effects
}

func (s Session) live() bool {
	return s.in(PhaseRecognizing, PhasePinEntry, PhaseVerifying)
}

func (s Session) loginPush(payload any) (Session, []Effect) {
	switch p := payload.(type) {
	case protocol.LoginStatus:
		return s.loginStatus(p)
	case protocol.PinFrameUpdate:
		if s.Phase != PhasePinEntry {
			return s, nil
		}
		s.PinLength = utf8.RuneCountInString(p.PinSoFar)
		s.Highlight = protocol.DigitOf(p.CurrentDigit)
		return s, append([]Effect{SetImage{Region: surface.ProcessedImage, Src: p.ImageData}}, s.renderPIN()...)
	case protocol.PinUpdate:
		if s.Phase != PhasePinEntry {
			return s, nil
		}
		s.PinLength = utf8.RuneCountInString(p.PinSoFar)
		s.Highlight = protocol.DigitOf(p.CurrentDigit)
		return s, s.renderPIN()
	case protocol.LoginResult:
		if !s.live() {
			return s, nil
		}
		return s.loginResult(p)
	}
	return s, nil
}

func (s Session) loginStatus(p protocol.LoginStatus) (Session, []Effect) {
	var effects []Effect
	if p.Message != "" {
		effects = append(effects, SetText{Region: surface.StatusMessage, Text: p.Message})
	}

	if p.Status == protocol.StatusError {
		if s.live() || s.Phase == PhaseCameraStarting {
			text := p.Message
			if text == "" {
				text = msgRecognitionErr
			}
			return s.loginFailed(text)
		}
		return s, append(effects, liveBaseline()...)
	}

	if !s.live() {
		// Out-of-phase push: text only, and PIN widgets stay hidden.
		return s, append(effects, Hide{Region: surface.PinArea})
	}

	if p.Status == protocol.StatusPinEntry {
		s.enter(PhasePinEntry)
		if p.User != "" {
			s.Identity = p.User
		}
		if p.PinSoFar != nil {
			s.PinLength = utf8.RuneCountInString(*p.PinSoFar)
		}
		s.Highlight = protocol.DigitOf(p.CurrentDigit)
		effects = append(effects,
			SetText{Region: surface.User, Text: s.Identity},
			Show{Region: surface.PinArea},
			Hide{Region: surface.Video},
			Show{Region: surface.ProcessedImage},
		)
		return s, append(effects, s.renderPIN()...)
	}

	if p.Status == protocol.StatusVerifying {
		s.enter(PhaseVerifying)
	} else {
		s.enter(PhaseRecognizing)
	}
	s.Highlight = protocol.NoDigit
	return s, append(effects, liveBaseline()...)
}

func (s Session) loginResult(p protocol.LoginResult) (Session, []Effect) {
	// The camera goes down before anything else, redirect included.
	effects := []Effect{s.stopCapture()}
	effects = append(effects, Hide{Region: surface.PinArea}, Highlight{Digit: protocol.NoDigit})

	switch {
	case p.Success && p.Token != "":
		s.enter(PhaseResolved)
		return s, append(effects,
			SetText{Region: surface.StatusMessage, Text: msgLoginSuccess},
			Redirect{Path: ConfirmLoginPath + url.PathEscape(p.Token)},
		)
	case p.Success:
		next, failEffects := s.loginFailed(msgMissingToken)
		return next, append(effects, failEffects[1:]...)
	default:
		s.enter(PhaseResolved)
		return s, append(effects,
			SetText{Region: surface.StatusMessage, Text: msgLoginFailed},
			Redirect{Path: LoginFailedPath},
		)
	}
}
