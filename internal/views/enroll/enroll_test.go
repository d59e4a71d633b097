package enroll

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/facepin/kiosk/internal/surface"
)

func typeInto(f Form, s string) Form {
	for _, r := range s {
		f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return f
}

func TestFormFocusCycle(t *testing.T) {
	f := NewForm()
	if f.Focused() != FieldUsername {
		t.Fatalf("initial focus %d", f.Focused())
	}
	f.Next()
	f.Next()
	if f.Focused() != FieldBalance {
		t.Errorf("focus = %d, want balance", f.Focused())
	}
	f.Next()
	if f.Focused() != FieldUsername {
		t.Errorf("focus did not wrap: %d", f.Focused())
	}
	f.Prev()
	if f.Focused() != FieldBalance {
		t.Errorf("prev did not wrap: %d", f.Focused())
	}
}

func TestFormTypingGoesToFocusedField(t *testing.T) {
	f := NewForm()
	f = typeInto(f, "alice_01")
	f.Next()
	f = typeInto(f, "482199")

	if got := f.Value(FieldUsername); got != "alice_01" {
		t.Errorf("username = %q", got)
	}
	if got := f.Value(FieldPIN); got != "4821" {
		t.Errorf("pin = %q, want the 4-character limit applied", got)
	}
	if got := f.Value(FieldBalance); got != "" {
		t.Errorf("balance = %q", got)
	}
}

func TestFormReset(t *testing.T) {
	f := NewForm()
	f.SetValue(FieldUsername, "bob")
	f.SetValue(FieldPIN, "1234")
	f.Focus(FieldBalance)
	f.Reset()
	if f.Value(FieldUsername) != "" || f.Value(FieldPIN) != "" || f.Focused() != FieldUsername {
		t.Errorf("reset left %q %q focus %d", f.Value(FieldUsername), f.Value(FieldPIN), f.Focused())
	}
}

func TestViewMasksPIN(t *testing.T) {
	f := NewForm()
	f.SetValue(FieldPIN, "4821")
	b := surface.NewBoard()
	b.SetText(surface.CaptureStatus, "Camera ready. Look at the camera.")
	b.Enable(surface.CaptureButton)

	v := View(f, b, 120)
	if strings.Contains(v, "4821") {
		t.Error("PIN rendered in clear")
	}
	if !strings.Contains(v, "Camera ready.") {
		t.Errorf("status missing:\n%s", v)
	}
}

func TestViewShowsCapturedImage(t *testing.T) {
	b := surface.NewBoard()
	b.SetImage(surface.CapturedImage, "/static/captures/a.jpg?t=1")
	v := View(NewForm(), b, 160)
	if !strings.Contains(v, "/static/captures/a.jpg?t=1") {
		t.Errorf("captured image reference missing:\n%s", v)
	}
}
