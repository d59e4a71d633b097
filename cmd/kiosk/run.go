package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/facepin/kiosk/internal/app"
	"github.com/facepin/kiosk/internal/capture"
	"github.com/facepin/kiosk/internal/capture/webcam"
	"github.com/facepin/kiosk/internal/client"
	"github.com/facepin/kiosk/internal/logger"
	"github.com/facepin/kiosk/internal/metrics"
	"github.com/facepin/kiosk/internal/session"
)

// run wires the devices, channel and diagnostics for one flow and blocks
// until the program exits.
func run(ctx context.Context, flow session.Flow) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := logger.OpenFile(cfg.Log.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log := logger.New(cfg.Log.Level, cfg.Log.Format, logFile).With("flow", flow.String())

	base, err := client.BaseURL(cfg.Server.URL)
	if err != nil {
		return err
	}

	m := metrics.New()
	state := &metrics.StateBox{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		router := metrics.Router(m, state, log)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, router, log); err != nil {
				log.Error("diagnostics server", "err", err)
			}
		}()
	}

	cam := webcam.New(cfg.Camera.Device, cfg.Camera.ReadFPS, log)
	defer cam.Close()

	tx := capture.NewTransmitter(cfg.Stream.Interval, capture.JPEGEncoder{Quality: cfg.Stream.JPEGQuality}, m, log)
	defer tx.Stop()

	ch := client.NewChannel(cfg.Server.URL, cfg.Channel.ReconnectBase, cfg.Channel.ReconnectMax, log)
	defer ch.Disconnect()

	httpClient := client.NewHTTPClient(base, cfg.Enroll.SubmitTimeout)

	model := app.New(ctx, app.Deps{
		Channel:   ch,
		Source:    cam,
		Streamer:  tx,
		Submitter: httpClient,
		Navigator: client.NewNavigator(httpClient),
		Metrics:   m,
		State:     state,
		Log:       log,
	}, app.Options{
		Flow:          flow,
		OpenTimeout:   cfg.Camera.OpenTimeout,
		StallTimeout:  cfg.Enroll.StallTimeout,
		RedirectDelay: cfg.Login.RedirectDelay,
		SubmitTimeout: cfg.Enroll.SubmitTimeout,
		PageLinger:    cfg.Login.PageLinger,
	})

	log.Info("kiosk starting", "url", cfg.Server.URL, "camera", cfg.Camera.Device)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	log.Info("kiosk stopped")
	return nil
}
