// Package webcam is the gocv-backed capture.Source for a local camera.
package webcam

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/facepin/kiosk/internal/capture"
	"gocv.io/x/gocv"
)

// maxReadFailures is how many consecutive empty reads mark the device lost.
const maxReadFailures = 30

// Camera reads frames from a device index into a single latest-frame slot.
type Camera struct {
	device int
	fps    float64
	log    *slog.Logger

	// openMu serialises Open so two requests never race for the device.
	openMu sync.Mutex

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	cancel context.CancelFunc
	done   chan struct{}
	active bool
	latest image.Image
	at     time.Time
}

// New creates a closed camera for the given device index.
func New(device int, fps float64, log *slog.Logger) *Camera {
	if fps <= 0 {
		fps = 10
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Camera{device: device, fps: fps, log: log}
}

type openResult struct {
	vc  *gocv.VideoCapture
	err error
}

// Open acquires the device. Opening an open camera is a no-op. If ctx ends
// first the late handle is released in the background.
func (c *Camera) Open(ctx context.Context) error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.Lock()
	if c.vc != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := probe(c.device); err != nil {
		return capture.Classify(err)
	}

	resCh := make(chan openResult, 1)
	go func() {
		vc, err := gocv.OpenVideoCapture(c.device)
		if err == nil && !vc.IsOpened() {
			vc.Close()
			vc, err = nil, fmt.Errorf("device %d: %w", c.device, capture.ErrDeviceBusy)
		}
		resCh <- openResult{vc: vc, err: err}
	}()

	var res openResult
	select {
	case res = <-resCh:
	case <-ctx.Done():
		go func() {
			if late := <-resCh; late.vc != nil {
				late.vc.Close()
			}
		}()
		return capture.Classify(ctx.Err())
	}
	if res.err != nil {
		return capture.Classify(res.err)
	}
	res.vc.Set(gocv.VideoCaptureFPS, c.fps)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.vc = res.vc
	c.cancel = cancel
	c.done = done
	c.active = true
	c.latest = nil
	c.mu.Unlock()

	go c.readLoop(loopCtx, res.vc, done)
	c.log.Info("camera opened", "device", c.device, "fps", c.fps)
	return nil
}

// Close stops the read loop and releases the device. Safe to call any
// number of times.
func (c *Camera) Close() error {
	c.mu.Lock()
	vc, cancel, done := c.vc, c.cancel, c.done
	c.vc, c.cancel, c.done = nil, nil, nil
	c.active = false
	c.latest = nil
	c.mu.Unlock()

	if vc == nil {
		return nil
	}
	cancel()
	<-done
	c.log.Info("camera released", "device", c.device)
	return vc.Close()
}

// Active reports whether frames are flowing.
func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Current returns the latest decoded frame.
func (c *Camera) Current() (image.Image, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.at, c.latest != nil
}

func (c *Camera) readLoop(ctx context.Context, vc *gocv.VideoCapture, done chan struct{}) {
	defer close(done)

	mat := gocv.NewMat()
	defer mat.Close()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / c.fps))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ok := vc.Read(&mat); !ok || mat.Empty() {
			failures++
			if failures == maxReadFailures {
				c.log.Warn("camera stopped delivering frames", "device", c.device)
				c.mu.Lock()
				c.active = false
				c.mu.Unlock()
			}
			continue
		}
		img, err := mat.ToImage()
		if err != nil {
			c.log.Debug("frame conversion failed", "error", err)
			continue
		}

		failures = 0
		c.mu.Lock()
		c.latest = img
		c.at = time.Now()
		c.active = true
		c.mu.Unlock()
	}
}
