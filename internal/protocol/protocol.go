// Package protocol defines the wire format of the kiosk's duplex channel.
// Every message in either direction is a JSON envelope carrying an event
// name and an event-specific payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EventType names a channel event.
type EventType string

// Client → server events.
const (
	EventStartAdminCapture EventType = "start_admin_capture"
	EventStartUserLogin    EventType = "start_user_login"
	EventFrameData         EventType = "frame_data"
)

// Server → client events.
const (
	EventAdminCaptureReady   EventType = "admin_capture_ready"
	EventAdminStatus         EventType = "admin_status"
	EventAdminCaptureSuccess EventType = "admin_capture_success"
	EventAdminError          EventType = "admin_error"
	EventLoginStatus         EventType = "login_status"
	EventPinFrameUpdate      EventType = "pin_frame_update"
	EventPinUpdate           EventType = "pin_update"
	EventLoginResult         EventType = "login_result"
)

// ErrUnknownEvent is returned by Decode for event names the kiosk does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope wraps every message on the channel.
type Envelope struct {
	Type    EventType       `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Login status values pushed in LoginStatus.Status.
const (
	StatusRecognizing = "recognizing"
	StatusPinEntry    = "pin_entry"
	StatusVerifying   = "verifying"
	StatusError       = "error"
)

// --- client → server payloads ---

// StartAdminCapture asks the backend to prepare a reference capture.
type StartAdminCapture struct {
	Username string `json:"username"`
}

// StartUserLogin asks the backend to begin recognition.
type StartUserLogin struct{}

// --- server → client payloads ---

// AdminCaptureReady signals the backend is consuming frames for a capture.
type AdminCaptureReady struct{}

// AdminStatus carries a capture progress message.
type AdminStatus struct {
	Message string `json:"message"`
}

// AdminCaptureSuccess reports a stored reference image.
type AdminCaptureSuccess struct {
	Message   string `json:"message"`
	ImagePath string `json:"image_path"`
}

// AdminError reports a failed capture.
type AdminError struct {
	Message string `json:"message"`
}

// LoginStatus is pushed repeatedly during authentication. User, PinSoFar
// and CurrentDigit are only meaningful when Status is StatusPinEntry.
type LoginStatus struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	User         string  `json:"user,omitempty"`
	PinSoFar     *string `json:"pin_so_far,omitempty"`
	CurrentDigit *Digit  `json:"current_digit,omitempty"`
}

// PinFrameUpdate is the per-frame PIN update carrying a processed image.
type PinFrameUpdate struct {
	ImageData    string `json:"image_data"`
	PinSoFar     string `json:"pin_so_far"`
	CurrentDigit *Digit `json:"current_digit"`
}

// PinUpdate is the lower-frequency PIN update.
type PinUpdate struct {
	PinSoFar     string `json:"pin_so_far"`
	CurrentDigit *Digit `json:"current_digit"`
}

// LoginResult terminates an authentication attempt.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

// Digit is a keypad digit 0-9, or NoDigit.
type Digit int

// NoDigit means no digit is highlighted.
const NoDigit Digit = -1

// DigitOf returns *d, or NoDigit when d is nil.
func DigitOf(d *Digit) Digit {
	if d == nil {
		return NoDigit
	}
	return *d
}

// Valid reports whether d is in 0..9.
func (d Digit) Valid() bool { return d >= 0 && d <= 9 }

func (d Digit) String() string {
	if !d.Valid() {
		return ""
	}
	return strconv.Itoa(int(d))
}

// UnmarshalJSON accepts 3, "3" and null. Anything outside 0-9 decodes as NoDigit.
func (d *Digit) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*d = NoDigit
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 9 {
		*d = NoDigit
		return nil
	}
	*d = Digit(n)
	return nil
}

// MarshalJSON writes NoDigit as null.
func (d Digit) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(d))), nil
}

// Encode builds the wire form of an outgoing event.
func Encode(t EventType, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an incoming message into its typed payload.
func Decode(data []byte) (Envelope, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, fmt.Errorf("decode envelope: %w", err)
	}

	var p any
	switch env.Type {
	case EventAdminCaptureReady:
		p = &AdminCaptureReady{}
	case EventAdminStatus:
		p = &AdminStatus{}
	case EventAdminCaptureSuccess:
		p = &AdminCaptureSuccess{}
	case EventAdminError:
		p = &AdminError{}
	case EventLoginStatus:
		p = &LoginStatus{}
	case EventPinFrameUpdate:
		p = &PinFrameUpdate{}
	case EventPinUpdate:
		p = &PinUpdate{}
	case EventLoginResult:
		p = &LoginResult{}
	default:
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return env, nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return env, deref(p), nil
}

// deref turns the decode target back into a value so handlers switch on
// value types.
func deref(p any) any {
	switch v := p.(type) {
	case *AdminCaptureReady:
		return *v
	case *AdminStatus:
		return *v
	case *AdminCaptureSuccess:
		return *v
	case *AdminError:
		return *v
	case *LoginStatus:
		return *v
	case *PinFrameUpdate:
		return *v
	case *PinUpdate:
		return *v
	case *LoginResult:
		return *v
	}
	return p
}
