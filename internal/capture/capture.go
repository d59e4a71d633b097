// Package capture owns the kiosk's video side: the Capture Source contract,
// the device error taxonomy, and the Frame Transmitter that samples a source
// on a fixed cadence and pushes encoded frames over the channel.
package capture

import (
	"context"
	"encoding/base64"
	"image"
	"time"
)

// Frame is one encoded still image. It is consumed exactly once: sent or
// dropped, never retained.
type Frame struct {
	// Seq is the monotonic sequence number within one transmitter run.
	Seq uint64
	// Timestamp is when the underlying image was captured.
	Timestamp time.Time
	Width     int
	Height    int
	// Data is the JPEG-encoded image.
	Data []byte
	// TraceID correlates a frame in kiosk logs.
	TraceID string
}

// DataURL returns the frame in the form the backend decodes.
func (f Frame) DataURL() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Source is a camera device handle producing a continuously updating frame.
//
// Implementations must guarantee:
//   - Open honours ctx cancellation and returns an error classified by Classify
//   - Close is idempotent and safe before Open; it releases the device
//   - Active and Current are safe to call from any goroutine
type Source interface {
	Open(ctx context.Context) error
	Close() error
	Active() bool
	// Current returns the latest image and its capture time. ok is false
	// until the first image arrives.
	Current() (img image.Image, at time.Time, ok bool)
}
