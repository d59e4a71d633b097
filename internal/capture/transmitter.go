package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/facepin/kiosk/internal/protocol"
	"github.com/google/uuid"
)

// DefaultInterval is the nominal sampling cadence (10 frames/s).
const DefaultInterval = 100 * time.Millisecond

// Skip reasons reported to the Observer.
const (
	SkipDisconnected = "disconnected"
	SkipInactive     = "inactive"
	SkipNoFrame      = "no_frame"
	SkipEncode       = "encode"
	SkipSend         = "send"
)

// Sender is the part of the channel the transmitter needs.
type Sender interface {
	Connected() bool
	Send(t protocol.EventType, payload any) error
}

// Observer receives per-tick outcomes.
type Observer interface {
	FrameSent(size int)
	FrameSkipped(reason string)
}

type nopObserver struct{}

func (nopObserver) FrameSent(int)       {}
func (nopObserver) FrameSkipped(string) {}

// Transmitter samples a Source on a fixed interval and sends each frame as a
// single frame_data message. Ticks that find the channel disconnected or the
// source inactive are skipped; nothing is queued.
type Transmitter struct {
	interval time.Duration
	enc      Encoder
	obs      Observer
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTransmitter creates a stopped transmitter. A nil observer or logger is
// replaced with a no-op.
func NewTransmitter(interval time.Duration, enc Encoder, obs Observer, log *slog.Logger) *Transmitter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if enc == nil {
		enc = JPEGEncoder{Quality: DefaultQuality}
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Transmitter{interval: interval, enc: enc, obs: obs, log: log}
}

// Start begins sampling src and sending on ch. A running transmitter is
// stopped first, so there is never more than one sender.
func (t *Transmitter) Start(ch Sender, src Source) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(ctx, done, ch, src)
}

// Stop cancels future ticks and waits for an in-flight tick to finish.
// Stopping a stopped transmitter is a no-op.
func (t *Transmitter) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether a sampling loop is live.
func (t *Transmitter) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Transmitter) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}

func (t *Transmitter) run(ctx context.Context, done chan struct{}, ch Sender, src Source) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if t.tick(ch, src, seq+1) {
				seq++
			}
		}
	}
}

// tick samples once. It reports whether a frame was sent.
func (t *Transmitter) tick(ch Sender, src Source, seq uint64) bool {
	if !ch.Connected() {
		t.obs.FrameSkipped(SkipDisconnected)
		return false
	}
	if !src.Active() {
		t.obs.FrameSkipped(SkipInactive)
		return false
	}
	img, at, ok := src.Current()
	if !ok || img == nil {
		t.obs.FrameSkipped(SkipNoFrame)
		return false
	}

	data, err := t.enc.Encode(img)
	if err != nil {
		t.log.Warn("frame encode failed", "error", err)
		t.obs.FrameSkipped(SkipEncode)
		return false
	}

	b := img.Bounds()
	f := Frame{
		Seq:       seq,
		Timestamp: at,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Data:      data,
		TraceID:   uuid.NewString(),
	}
	if err := ch.Send(protocol.EventFrameData, f.DataURL()); err != nil {
		t.log.Debug("frame dropped", "seq", f.Seq, "trace_id", f.TraceID, "error", err)
		t.obs.FrameSkipped(SkipSend)
		return false
	}
	t.obs.FrameSent(len(data))
	return true
}
