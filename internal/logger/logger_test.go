package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"WARN", false, false, true},
		{"bogus", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level, "text", &buf)
			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			out := buf.String()
			if got := strings.Contains(out, "msg=d"); got != tt.debugSeen {
				t.Errorf("debug seen = %v", got)
			}
			if got := strings.Contains(out, "msg=i"); got != tt.infoSeen {
				t.Errorf("info seen = %v", got)
			}
			if got := strings.Contains(out, "msg=w"); got != tt.warnSeen {
				t.Errorf("warn seen = %v", got)
			}
		})
	}
}

func TestNewJSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	New("info", "", &buf).Info("hello", "phase", "recognizing")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["phase"] != "recognizing" {
		t.Errorf("record = %v", rec)
	}
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kiosk.log")
	for i := 0; i < 2; i++ {
		w, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		New("info", "text", w).Info("line")
		w.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "msg=line"); n != 2 {
		t.Errorf("got %d lines, want 2", n)
	}
}

func TestOpenFileEmptyDiscards(t *testing.T) {
	w, err := OpenFile("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Error(err)
	}
	if err := w.Close(); err != nil {
		t.Error(err)
	}
}
