// Package metrics holds the kiosk's Prometheus instruments and the
// diagnostics HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for one kiosk process.
type Metrics struct {
	registry       *prometheus.Registry
	framesSent     prometheus.Counter
	frameBytes     prometheus.Counter
	framesSkipped  *prometheus.CounterVec
	connects       prometheus.Counter
	disconnects    prometheus.Counter
	connected      prometheus.Gauge
	cameraFailures *prometheus.CounterVec
	loginResults   *prometheus.CounterVec
	submissions    *prometheus.CounterVec
}

// New creates and registers the kiosk metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_frames_sent_total",
			Help: "Frames written to the channel",
		}),
		frameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_frame_bytes_total",
			Help: "Encoded frame bytes written to the channel",
		}),
		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_frames_skipped_total",
			Help: "Sampling ticks that produced no frame, by reason",
		}, []string{"reason"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_channel_connects_total",
			Help: "Successful channel connections",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_channel_disconnects_total",
			Help: "Channel connections lost",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_channel_connected",
			Help: "1 while the channel is connected",
		}),
		cameraFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_camera_open_failures_total",
			Help: "Camera open failures, by error class",
		}, []string{"class"}),
		loginResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_login_results_total",
			Help: "Authentication outcomes",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_enrollment_submissions_total",
			Help: "Enrollment submissions, by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.framesSent,
		m.frameBytes,
		m.framesSkipped,
		m.connects,
		m.disconnects,
		m.connected,
		m.cameraFailures,
		m.loginResults,
		m.submissions,
	)
	return m
}

// FrameSent records one transmitted frame of size encoded bytes.
func (m *Metrics) FrameSent(size int) {
	m.framesSent.Inc()
	m.frameBytes.Add(float64(size))
}

// FrameSkipped records a sampling tick that sent nothing.
func (m *Metrics) FrameSkipped(reason string) {
	m.framesSkipped.WithLabelValues(reason).Inc()
}

// ChannelConnected records a new connection.
func (m *Metrics) ChannelConnected() {
	m.connects.Inc()
	m.connected.Set(1)
}

// ChannelDisconnected records a lost connection.
func (m *Metrics) ChannelDisconnected() {
	m.disconnects.Inc()
	m.connected.Set(0)
}

// CameraFailed records a failed camera open.
func (m *Metrics) CameraFailed(class string) {
	m.cameraFailures.WithLabelValues(class).Inc()
}

// LoginResult records an authentication outcome: "success", "failure" or
// "inconsistent".
func (m *Metrics) LoginResult(outcome string) {
	m.loginResults.WithLabelValues(outcome).Inc()
}

// Submission records an enrollment submission outcome.
func (m *Metrics) Submission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
