// Package app is the kiosk's Bubble Tea program. It is the only scheduler:
// channel events, camera results, timers and keystrokes all arrive as
// messages, pass through the session state machine, and the returned
// effects are executed here in order.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/facepin/kiosk/internal/capture"
	"github.com/facepin/kiosk/internal/client"
	"github.com/facepin/kiosk/internal/metrics"
	"github.com/facepin/kiosk/internal/protocol"
	"github.com/facepin/kiosk/internal/session"
	"github.com/facepin/kiosk/internal/surface"
	"github.com/facepin/kiosk/internal/theme"
	"github.com/facepin/kiosk/internal/views/debug"
	"github.com/facepin/kiosk/internal/views/enroll"
	"github.com/facepin/kiosk/internal/views/keypad"
	"github.com/facepin/kiosk/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// Channel is the duplex connection to the backend.
type Channel interface {
	capture.Sender
	Connect(ctx context.Context) tea.Cmd
	ReadLoop() tea.Cmd
	Gen() uint64
	Disconnect()
	URL() string
}

// Streamer runs the frame transmitter.
type Streamer interface {
	Start(ch capture.Sender, src capture.Source)
	Stop()
	Running() bool
}

// Submitter issues the one-shot enrollment request.
type Submitter interface {
	AddUser(ctx context.Context, e session.Enrollment) (string, error)
}

// Navigator follows a redirect destination.
type Navigator interface {
	Follow(ctx context.Context, path string) (*client.Page, error)
}

// Recorder receives session outcomes for metrics.
type Recorder interface {
	ChannelConnected()
	ChannelDisconnected()
	CameraFailed(class string)
	LoginResult(outcome string)
	Submission(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ChannelConnected()    {}
func (nopRecorder) ChannelDisconnected() {}
func (nopRecorder) CameraFailed(string)  {}
func (nopRecorder) LoginResult(string)   {}
func (nopRecorder) Submission(string)    {}

// Options tunes timers. Zero values pick the defaults.
type Options struct {
	Flow          session.Flow
	OpenTimeout   time.Duration
	StallTimeout  time.Duration
	RedirectDelay time.Duration
	SubmitTimeout time.Duration
	// PageLinger is how long a followed page stays up before exiting.
	// Zero waits for a key.
	PageLinger time.Duration
}

const (
	defaultOpenTimeout   = 10 * time.Second
	defaultSubmitTimeout = 10 * time.Second
	followTimeout        = 10 * time.Second
)

// Deps are the collaborators the program drives.
type Deps struct {
	Channel   Channel
	Source    capture.Source
	Streamer  Streamer
	Submitter Submitter
	Navigator Navigator
	Metrics   Recorder
	State     *metrics.StateBox
	Log       *slog.Logger
}

// --- internal messages ---

type cameraResultMsg struct {
	Epoch uint64
	Err   error
}

type stallMsg struct{ Epoch uint64 }

type submitResultMsg struct {
	Message string
	Err     error
}

type reconnectMsg struct{}

type redirectMsg struct{ Path string }

type pageMsg struct {
	Page *client.Page
	Err  error
}

type lingerDoneMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ctx  context.Context
	deps Deps
	opts Options
	keys KeyMap

	width  int
	height int

	sess  session.Session
	board *surface.Board

	// Sub-views.
	statusBar status.Model
	form      enroll.Form
	keypad    keypad.Model
	debug     debug.Model
	spinner   spinner.Model
	overlay   Overlay

	redirecting bool
	page        *client.Page
}

// New creates the root model and paints the page-entry baseline.
func New(ctx context.Context, deps Deps, opts Options) Model {
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}

	sess := session.NewEnrollment()
	if opts.Flow == session.FlowAuthentication {
		sess = session.NewAuthentication()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.StyleDimmed

	m := Model{
		ctx:       ctx,
		deps:      deps,
		opts:      opts,
		keys:      DefaultKeyMap(),
		sess:      sess,
		board:     surface.NewBoard(),
		statusBar: status.New(opts.Flow.String(), deps.Channel.URL()),
		form:      enroll.NewForm(),
		keypad:    keypad.New(),
		debug:     debug.New(),
		spinner:   sp,
	}
	session.Paint(m.board, sess.Enter())
	m.syncStatus()
	m.publish()
	return m
}

// Init starts the first connection attempt.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.deps.Channel.Connect(m.ctx), m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.syncStatus()
		return m, cmd

	case keypad.FrameMsg:
		var cmd tea.Cmd
		m.keypad, cmd = m.keypad.Update(msg)
		return m, cmd

	case client.ConnectedMsg:
		if m.redirecting {
			return m, nil
		}
		m.deps.Metrics.ChannelConnected()
		m.debug.Addf(debug.KindChannel, "connected gen=%d", msg.Gen)
		cmd := m.handle(session.Connected{})
		return m, tea.Batch(cmd, m.deps.Channel.ReadLoop())

	case client.ConnectErrorMsg:
		if m.redirecting {
			return m, nil
		}
		m.debug.Addf(debug.KindError, "connect: %v (retry in %s)", msg.Err, msg.RetryIn)
		cmd := m.handle(session.ConnectFailed{Err: msg.Err})
		retry := tea.Tick(msg.RetryIn, func(time.Time) tea.Msg { return reconnectMsg{} })
		return m, tea.Batch(cmd, retry)

	case reconnectMsg:
		if m.redirecting || m.sess.Terminal() {
			return m, nil
		}
		return m, m.deps.Channel.Connect(m.ctx)

	case client.DisconnectedMsg:
		if m.redirecting || msg.Gen != m.deps.Channel.Gen() {
			return m, nil
		}
		m.deps.Metrics.ChannelDisconnected()
		reason := "closed"
		if msg.Err != nil {
			reason = msg.Err.Error()
		}
		m.debug.Addf(debug.KindChannel, "disconnected gen=%d: %s (retry in %s)", msg.Gen, reason, msg.RetryIn)
		m.deps.Log.Warn("channel lost", "gen", msg.Gen, "reason", reason, "retry_in", msg.RetryIn)
		cmd := m.handle(session.Disconnected{Reason: reason})
		if m.sess.Terminal() {
			// A redirect is pending; the channel is about to close anyway.
			return m, cmd
		}
		retry := tea.Tick(msg.RetryIn, func(time.Time) tea.Msg { return reconnectMsg{} })
		return m, tea.Batch(cmd, retry)

	case client.EventMsg:
		if m.redirecting || msg.Gen != m.deps.Channel.Gen() {
			return m, nil
		}
		m.debug.Addf(debug.KindChannel, "%s", msg.Type)
		before := m.sess.Phase
		cmd := m.handle(session.Push{Payload: msg.Payload, At: msg.At})
		if res, ok := msg.Payload.(protocol.LoginResult); ok && m.sess.Phase != before {
			m.deps.Metrics.LoginResult(loginOutcome(res))
		}
		return m, tea.Batch(cmd, m.deps.Channel.ReadLoop())

	case cameraResultMsg:
		return m.cameraResult(msg)

	case stallMsg:
		return m, m.handle(session.Stalled{Epoch: msg.Epoch})

	case submitResultMsg:
		ev := session.SubmitDone{Message: msg.Message}
		switch {
		case msg.Err == nil:
			m.deps.Metrics.Submission("success")
		case errors.Is(msg.Err, client.ErrSubmitRejected):
			m.deps.Metrics.Submission("rejected")
			ev.Err = errors.New(client.RejectionMessage(msg.Err))
		default:
			m.deps.Metrics.Submission("error")
			ev.Err = msg.Err
		}
		if ev.Err != nil {
			m.debug.Addf(debug.KindError, "add user: %v", msg.Err)
			m.deps.Log.Warn("enrollment rejected", "err", msg.Err)
		}
		return m, m.handle(ev)

	case redirectMsg:
		return m.redirect(msg.Path)

	case pageMsg:
		if msg.Err != nil {
			m.deps.Log.Error("follow redirect", "err", msg.Err)
			m.page = &client.Page{Title: "Navigation failed", Markdown: msg.Err.Error()}
		} else {
			m.page = msg.Page
		}
		if m.opts.PageLinger > 0 {
			return m, tea.Tick(m.opts.PageLinger, func(time.Time) tea.Msg { return lingerDoneMsg{} })
		}
		return m, nil

	case lingerDoneMsg:
		return m, tea.Quit
	}

	return m, nil
}

// handle runs one event through the session, paints the board and executes
// the remaining effects in order.
func (m *Model) handle(ev session.Event) tea.Cmd {
	prev := m.sess
	var effects []session.Effect
	m.sess, effects = m.sess.Handle(ev)
	m.publish()
	if m.sess.Phase != prev.Phase {
		m.debug.Addf(debug.KindFSM, "%s -> %s", prev.Phase, m.sess.Phase)
		m.deps.Log.Debug("phase change", "flow", m.sess.Flow.String(), "from", prev.Phase, "to", m.sess.Phase, "epoch", m.sess.Epoch)
	}

	cmds := m.run(session.Paint(m.board, effects))
	if m.board.Highlighted() != m.keypad.Highlight {
		cmds = append(cmds, m.keypad.SetHighlight(m.board.Highlighted()))
	}
	m.syncStatus()
	return tea.Batch(cmds...)
}

// run executes runtime effects. StopCapture completes before the next
// effect starts.
func (m *Model) run(effects []session.Effect) []tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range effects {
		switch e := e.(type) {
		case session.StopCapture:
			m.deps.Streamer.Stop()
			if err := m.deps.Source.Close(); err != nil {
				m.deps.Log.Warn("camera close", "err", err)
			}
			m.debug.Add(debug.KindCamera, "capture stopped")

		case session.OpenCamera:
			m.debug.Addf(debug.KindCamera, "opening (epoch %d)", e.Epoch)
			cmds = append(cmds, m.openCamera(e.Epoch))

		case session.StartStreaming:
			m.deps.Streamer.Start(m.deps.Channel, m.deps.Source)
			m.debug.Add(debug.KindCamera, "streaming")

		case session.Emit:
			if err := m.deps.Channel.Send(e.Type, e.Payload); err != nil {
				m.deps.Log.Warn("emit failed", "type", e.Type, "err", err)
				m.debug.Addf(debug.KindError, "emit %s: %v", e.Type, err)
			} else {
				m.debug.Addf(debug.KindChannel, "-> %s", e.Type)
			}

		case session.SubmitEnrollment:
			cmds = append(cmds, m.submit(e.Enrollment))

		case session.ArmStallTimer:
			if m.opts.StallTimeout > 0 {
				epoch := e.Epoch
				cmds = append(cmds, tea.Tick(m.opts.StallTimeout, func(time.Time) tea.Msg { return stallMsg{Epoch: epoch} }))
			}

		case session.Redirect:
			path := e.Path
			m.debug.Addf(debug.KindNav, "redirect %s", path)
			if m.opts.RedirectDelay > 0 {
				cmds = append(cmds, tea.Tick(m.opts.RedirectDelay, func(time.Time) tea.Msg { return redirectMsg{Path: path} }))
			} else {
				cmds = append(cmds, func() tea.Msg { return redirectMsg{Path: path} })
			}

		case session.ResetForm:
			m.form.Reset()
		}
	}
	return cmds
}

func (m Model) openCamera(epoch uint64) tea.Cmd {
	src, timeout := m.deps.Source, m.opts.OpenTimeout
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return cameraResultMsg{Epoch: epoch, Err: src.Open(ctx)}
	}
}

func (m Model) cameraResult(msg cameraResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		class := capture.Class(msg.Err)
		m.deps.Metrics.CameraFailed(class)
		m.deps.Log.Warn("camera open failed", "epoch", msg.Epoch, "class", class, "err", msg.Err)
		m.debug.Addf(debug.KindError, "camera: %v", msg.Err)
		return m, m.handle(session.CameraFailed{Epoch: msg.Epoch, Err: capture.Classify(msg.Err)})
	}

	if msg.Epoch != m.sess.Epoch && m.sess.Phase != session.PhaseCameraStarting && !m.sess.CameraActive {
		// Nobody wants this device any more.
		m.debug.Addf(debug.KindCamera, "stale open (epoch %d), releasing", msg.Epoch)
		m.deps.Source.Close()
		return m, nil
	}
	return m, m.handle(session.CameraOpened{Epoch: msg.Epoch})
}

func (m Model) submit(e session.Enrollment) tea.Cmd {
	sub, timeout := m.deps.Submitter, m.opts.SubmitTimeout
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		msg, err := sub.AddUser(ctx, e)
		return submitResultMsg{Message: msg, Err: err}
	}
}

// redirect ends the session: capture is torn down, the channel closed, and
// the destination fetched for display.
func (m Model) redirect(path string) (tea.Model, tea.Cmd) {
	if m.redirecting {
		return m, nil
	}
	m.redirecting = true
	m.deps.Streamer.Stop()
	m.deps.Source.Close()
	m.deps.Channel.Disconnect()
	m.deps.Log.Info("redirect", "path", path)

	if m.deps.Navigator == nil {
		return m, tea.Quit
	}
	nav, ctx := m.deps.Navigator, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, followTimeout)
		defer cancel()
		page, err := nav.Follow(ctx, path)
		return pageMsg{Page: page, Err: err}
	}
}

func loginOutcome(r protocol.LoginResult) string {
	switch {
	case r.Success && r.Token != "":
		return "success"
	case r.Success:
		return "inconsistent"
	default:
		return "failure"
	}
}

func busy(p session.Phase) bool {
	switch p {
	case session.PhaseConnecting, session.PhaseCameraStarting, session.PhaseVerifying, session.PhaseSubmitting:
		return true
	}
	return false
}

func (m *Model) syncStatus() {
	m.statusBar.Phase = string(m.sess.Phase)
	m.statusBar.Connected = m.sess.Connected
	m.statusBar.Camera = m.sess.CameraActive
	m.statusBar.Busy = ""
	if busy(m.sess.Phase) {
		m.statusBar.Busy = m.spinner.View()
	}
}

// publish shares the session snapshot with the diagnostics endpoint and
// the debug overlay, which stamps later entries with it.
func (m *Model) publish() {
	st := metrics.State{
		Flow:         m.sess.Flow.String(),
		Phase:        string(m.sess.Phase),
		Epoch:        m.sess.Epoch,
		Connected:    m.sess.Connected,
		CameraActive: m.sess.CameraActive,
		Identity:     m.sess.Identity,
		LastError:    m.sess.LastError,
		UpdatedAt:    time.Now(),
	}
	m.debug.Track(st)
	if m.deps.State != nil {
		m.deps.State.Set(st)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.page != nil {
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case key.Matches(msg, m.keys.Filter):
			m.debug.CycleFilter()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Debug) {
		m.overlay = OverlayDebug
		return m, nil
	}

	if m.sess.Flow == session.FlowAuthentication {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Retry):
			if m.board.Enabled(surface.RetryButton) {
				return m, m.handle(session.Retry{})
			}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Tab):
		m.form.Next()
		return m, nil
	case key.Matches(msg, m.keys.ShiftTab):
		m.form.Prev()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		if m.form.Focused() == enroll.FieldUsername {
			if m.board.Enabled(surface.CaptureButton) {
				return m, m.handle(session.StartCapture{Identity: m.form.Value(enroll.FieldUsername)})
			}
			return m, nil
		}
		if m.board.Enabled(surface.AddUserButton) {
			return m, m.handle(session.Submit{
				PIN:     m.form.Value(enroll.FieldPIN),
				Balance: m.form.Value(enroll.FieldBalance),
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}
