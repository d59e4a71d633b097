package session

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/facepin/kiosk/internal/capture"
	"github.com/facepin/kiosk/internal/protocol"
	"github.com/facepin/kiosk/internal/surface"
)

func strp(s string) *string { return &s }

func digitp(d int) *protocol.Digit {
	v := protocol.Digit(d)
	return &v
}

// recognizing returns a harness that has connected, opened the camera and
// sent start_user_login.
func recognizing(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, NewAuthentication())
	h.send(Connected{})
	h.openCamera()
	if h.s.Phase != PhaseRecognizing {
		t.Fatalf("setup: phase = %s", h.s.Phase)
	}
	return h
}

func pinEntry(t *testing.T) *harness {
	t.Helper()
	h := recognizing(t)
	h.send(Push{Payload: protocol.LoginStatus{
		Status: protocol.StatusPinEntry, Message: "Hello alice", User: "alice",
		PinSoFar: strp(""), CurrentDigit: digitp(3),
	}})
	return h
}

// assertStopBeforeRedirect checks that a StopCapture precedes every Redirect.
func assertStopBeforeRedirect(t *testing.T, effects []Effect) {
	t.Helper()
	stopped := false
	for _, e := range effects {
		switch e.(type) {
		case StopCapture:
			stopped = true
		case Redirect:
			if !stopped {
				t.Fatal("redirect issued before capture stopped")
			}
		}
	}
}

func TestAuthenticationHappyPath(t *testing.T) {
	h := newHarness(t, NewAuthentication())
	if got := h.board.Text(surface.StatusMessage); got != msgConnecting {
		t.Errorf("initial status = %q", got)
	}

	rt := h.send(Connected{})
	if _, i := findEffect[OpenCamera](rt); i < 0 {
		t.Fatal("camera not started on connect")
	}

	rt = h.openCamera()
	emit, i := findEffect[Emit](rt)
	if i < 0 || emit.Type != protocol.EventStartUserLogin {
		t.Fatalf("start_user_login not sent: %v", rt)
	}
	if h.board.Text(surface.StatusMessage) != msgLookingForFace {
		t.Errorf("status = %q", h.board.Text(surface.StatusMessage))
	}

	h.send(Push{Payload: protocol.LoginStatus{
		Status: protocol.StatusPinEntry, User: "alice", PinSoFar: strp(""), CurrentDigit: digitp(3),
	}})
	if h.s.Phase != PhasePinEntry {
		t.Fatalf("phase = %s", h.s.Phase)
	}
	if !h.board.Visible(surface.PinArea) || h.board.Visible(surface.Video) || !h.board.Visible(surface.ProcessedImage) {
		t.Error("pin entry should swap the live view for the processed view")
	}
	if h.board.Highlighted() != 3 || h.board.Text(surface.PinMask) != "" {
		t.Errorf("highlight %d mask %q", h.board.Highlighted(), h.board.Text(surface.PinMask))
	}
	if h.board.Text(surface.User) != "alice" {
		t.Errorf("user = %q", h.board.Text(surface.User))
	}
	if !h.s.CameraActive {
		t.Error("camera must keep running during pin entry")
	}

	for i, so := range []string{"*", "**", "***"} {
		h.send(Push{Payload: protocol.PinFrameUpdate{ImageData: "data:image/jpeg;base64,AA", PinSoFar: so, CurrentDigit: digitp(i)}})
	}
	if h.board.Text(surface.PinMask) != "***" || h.board.Highlighted() != 2 {
		t.Errorf("mask %q highlight %d", h.board.Text(surface.PinMask), h.board.Highlighted())
	}
	if h.board.Image(surface.ProcessedImage) != "data:image/jpeg;base64,AA" {
		t.Error("processed image not shown")
	}

	rt = h.send(Push{Payload: protocol.LoginResult{Success: true, Token: "abc123"}})
	assertStopBeforeRedirect(t, rt)
	r, i := findEffect[Redirect](rt)
	if i < 0 || r.Path != "/confirm_login/abc123" {
		t.Fatalf("redirect = %+v", r)
	}
	if !h.s.Terminal() || h.s.CameraActive {
		t.Errorf("phase %s active %v", h.s.Phase, h.s.CameraActive)
	}
}

func TestAuthenticationResultBranches(t *testing.T) {
	tests := []struct {
		name     string
		result   protocol.LoginResult
		phase    Phase
		redirect string
		status   string
	}{
		{"success with token", protocol.LoginResult{Success: true, Token: "t/1"}, PhaseResolved, "/confirm_login/t%2F1", msgLoginSuccess},
		{"success without token", protocol.LoginResult{Success: true}, PhaseFailed, "", msgMissingToken},
		{"failure", protocol.LoginResult{Success: false}, PhaseResolved, "/login_failed", msgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := pinEntry(t)
			rt := h.send(Push{Payload: tt.result})

			if h.s.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", h.s.Phase, tt.phase)
			}
			if _, i := findEffect[StopCapture](rt); i != 0 {
				t.Errorf("StopCapture at %d, want first", i)
			}
			if countEffect[StopCapture](rt) != 1 {
				t.Errorf("StopCapture issued %d times", countEffect[StopCapture](rt))
			}
			assertStopBeforeRedirect(t, rt)

			r, i := findEffect[Redirect](rt)
			if tt.redirect == "" && i >= 0 {
				t.Errorf("unexpected redirect to %s", r.Path)
			}
			if tt.redirect != "" && r.Path != tt.redirect {
				t.Errorf("redirect = %q, want %q", r.Path, tt.redirect)
			}
			if got := h.board.Text(surface.StatusMessage); got != tt.status {
				t.Errorf("status = %q, want %q", got, tt.status)
			}
			if h.board.Visible(surface.PinArea) {
				t.Error("pin area visible after result")
			}
		})
	}
}

func TestAuthenticationResultFromRecognizing(t *testing.T) {
	h := recognizing(t)
	rt := h.send(Push{Payload: protocol.LoginResult{Success: false}})
	assertStopBeforeRedirect(t, rt)
	if h.s.Phase != PhaseResolved {
		t.Errorf("phase = %s", h.s.Phase)
	}
}

func TestAuthenticationResolvedIsTerminal(t *testing.T) {
	h := pinEntry(t)
	h.send(Push{Payload: protocol.LoginResult{Success: true, Token: "abc"}})
	before := h.s

	for _, ev := range []Event{
		Disconnected{},
		Connected{},
		Retry{},
		Push{Payload: protocol.LoginStatus{Status: protocol.StatusPinEntry}},
		Push{Payload: protocol.LoginResult{Success: false}},
	} {
		if rt := h.send(ev); len(rt) != 0 {
			t.Errorf("%T after resolve produced %v", ev, rt)
		}
	}
	if h.s != before {
		t.Errorf("resolved session changed: %+v", h.s)
	}
}

func TestAuthenticationCameraPermissionDenied(t *testing.T) {
	h := newHarness(t, NewAuthentication())
	h.send(Connected{})
	h.send(CameraFailed{Epoch: h.lastOpen(), Err: capture.ErrPermissionDenied})

	if h.s.Phase != PhaseFailed {
		t.Fatalf("phase = %s", h.s.Phase)
	}
	if countEffect[Emit](h.runtime) != 0 {
		t.Error("backend signalled after camera failure")
	}
	if got := h.board.Text(surface.StatusMessage); got != capture.Message(capture.ErrPermissionDenied) {
		t.Errorf("status = %q", got)
	}
	if !h.board.Enabled(surface.RetryButton) {
		t.Error("retry not enabled")
	}

	rt := h.send(Retry{})
	if h.s.Phase != PhaseCameraStarting {
		t.Fatalf("retry: phase = %s", h.s.Phase)
	}
	if _, i := findEffect[OpenCamera](rt); i < 0 {
		t.Error("retry did not reopen the camera")
	}
	if h.board.Enabled(surface.RetryButton) {
		t.Error("retry enabled while the camera starts")
	}
}

func TestAuthenticationDisconnectMidPIN(t *testing.T) {
	h := pinEntry(t)
	h.send(Push{Payload: protocol.PinUpdate{PinSoFar: "**", CurrentDigit: digitp(7)}})

	rt := h.send(Disconnected{Reason: "eof"})
	if countEffect[StopCapture](rt) != 1 {
		t.Error("capture not stopped")
	}
	if h.s.Phase != PhaseConnecting || h.s.PinLength != 0 {
		t.Errorf("phase %s pin length %d", h.s.Phase, h.s.PinLength)
	}
	if h.board.Visible(surface.PinArea) {
		t.Error("pin area still visible")
	}
	if h.board.Text(surface.StatusMessage) != msgDisconnected {
		t.Errorf("status = %q", h.board.Text(surface.StatusMessage))
	}
	if h.board.Highlighted() != surface.NoHighlight {
		t.Errorf("highlight = %d", h.board.Highlighted())
	}

	h.send(Connected{})
	h.openCamera()
	if h.s.Phase != PhaseRecognizing {
		t.Fatalf("phase after reconnect = %s", h.s.Phase)
	}
	if emits := countEffect[Emit](h.runtime); emits != 2 {
		t.Errorf("start_user_login sent %d times, want 2", emits)
	}

	// PIN progress only returns with a fresh pin_entry status.
	if rt := h.send(Push{Payload: protocol.PinUpdate{PinSoFar: "***", CurrentDigit: digitp(1)}}); len(rt) != 0 {
		t.Errorf("pin update outside pin entry produced %v", rt)
	}
	if h.board.Visible(surface.PinArea) {
		t.Error("pin entry resumed without a login_status push")
	}
}

func TestAuthenticationCameraOpensAfterDisconnect(t *testing.T) {
	h := newHarness(t, NewAuthentication())
	h.send(Connected{})
	open := h.lastOpen()
	h.send(Disconnected{})

	// The camera result is stale: the disconnect moved the phase on.
	if rt := h.send(CameraOpened{Epoch: open}); len(rt) != 0 {
		t.Errorf("stale open produced %v", rt)
	}
	if countEffect[Emit](h.runtime) != 0 {
		t.Error("start_user_login sent while disconnected")
	}
}

func TestAuthenticationErrorStatus(t *testing.T) {
	h := pinEntry(t)
	rt := h.send(Push{Payload: protocol.LoginStatus{Status: protocol.StatusError, Message: "Face lost"}})

	if h.s.Phase != PhaseFailed || h.s.CameraActive {
		t.Fatalf("phase %s active %v", h.s.Phase, h.s.CameraActive)
	}
	if countEffect[StopCapture](rt) != 1 {
		t.Error("capture not stopped on error status")
	}
	if h.board.Visible(surface.PinArea) || !h.board.Visible(surface.Video) || h.board.Visible(surface.ProcessedImage) {
		t.Error("ui not reset to the live baseline")
	}
	if h.board.Text(surface.StatusMessage) != "Face lost" {
		t.Errorf("status = %q", h.board.Text(surface.StatusMessage))
	}
	if !h.s.Connected {
		t.Error("error status must not end the channel")
	}
	if !h.board.Enabled(surface.RetryButton) {
		t.Error("retry not offered")
	}

	// A later status updates text only.
	h.send(Push{Payload: protocol.LoginStatus{Status: protocol.StatusRecognizing, Message: "Looking..."}})
	if h.s.Phase != PhaseFailed || h.board.Text(surface.StatusMessage) != "Looking..." {
		t.Errorf("phase %s status %q", h.s.Phase, h.board.Text(surface.StatusMessage))
	}
}

func TestAuthenticationVerifyingHidesPIN(t *testing.T) {
	h := pinEntry(t)
	h.send(Push{Payload: protocol.LoginStatus{Status: protocol.StatusVerifying, Message: "Verifying PIN..."}})
	if h.s.Phase != PhaseVerifying {
		t.Fatalf("phase = %s", h.s.Phase)
	}
	if h.board.Visible(surface.PinArea) || !h.board.Visible(surface.Video) {
		t.Error("verifying must show the live view without pin widgets")
	}
	if !h.s.CameraActive {
		t.Error("camera stopped while verifying")
	}
}

// PIN widgets are visible exactly when the session is in pin entry, for
// any sequence of status pushes.
func TestPINVisibleOnlyInPINEntry(t *testing.T) {
	statuses := []string{protocol.StatusRecognizing, protocol.StatusPinEntry, protocol.StatusVerifying, "something_new"}
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		h := recognizing(t)
		for step := 0; step < 30; step++ {
			st := statuses[rng.Intn(len(statuses))]
			h.send(Push{Payload: protocol.LoginStatus{Status: st, PinSoFar: strp(strings.Repeat("*", rng.Intn(4))), CurrentDigit: digitp(rng.Intn(10))}})

			if got, want := h.board.Visible(surface.PinArea), h.s.Phase == PhasePinEntry; got != want {
				t.Fatalf("run %d step %d: status %q phase %s pin visible %v", run, step, st, h.s.Phase, got)
			}
		}
	}
}

// Mask and highlight track the most recent PIN event regardless of type.
func TestPINRenderingFollowsLatestEvent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	h := pinEntry(t)

	for step := 0; step < 200; step++ {
		so := strings.Repeat("*", rng.Intn(5))
		var cur *protocol.Digit
		if rng.Intn(5) > 0 {
			cur = digitp(rng.Intn(10))
		}
		if rng.Intn(2) == 0 {
			h.send(Push{Payload: protocol.PinFrameUpdate{ImageData: "data:,", PinSoFar: so, CurrentDigit: cur}})
		} else {
			h.send(Push{Payload: protocol.PinUpdate{PinSoFar: so, CurrentDigit: cur}})
		}

		if h.board.Text(surface.PinMask) != so {
			t.Fatalf("step %d: mask %q, want %q", step, h.board.Text(surface.PinMask), so)
		}
		want := surface.NoHighlight
		if cur != nil {
			want = int(*cur)
		}
		if h.board.Highlighted() != want {
			t.Fatalf("step %d: highlight %d, want %d", step, h.board.Highlighted(), want)
		}
	}
}

func TestAuthenticationIgnoresAdminEvents(t *testing.T) {
	h := recognizing(t)
	before := h.s
	for _, p := range []any{
		protocol.AdminCaptureReady{},
		protocol.AdminStatus{Message: "x"},
		protocol.AdminCaptureSuccess{ImagePath: "/a.jpg"},
		protocol.AdminError{Message: "x"},
	} {
		if rt := h.send(Push{Payload: p}); len(rt) != 0 {
			t.Errorf("%T produced %v", p, rt)
		}
	}
	if h.s != before {
		t.Errorf("session changed: %+v", h.s)
	}
}
