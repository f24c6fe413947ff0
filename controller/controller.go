// Package controller - Measurement session lifecycle on top of a frame source.
//
// A Controller owns one capture.Source and at most one active session. Start
// and Stop are serialized; frames are processed one at a time, in arrival
// order, by a goroutine per session. Every processed frame yields a Display
// that is stored for polling and fanned out to subscribed sinks.
//
//	Idle ──Start──► Acquiring ──first frame──► Calibrating ──quality≥80──► Measuring
//	                    │                           │                          │
//	                    └──────── failure / timeout / Stop / stream end ───────┴──► Stopped
//
// A Start after Stopped passes through Idle again. Sinks are fed from their
// own goroutines, so publishing never holds up a frame or a Stop.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/images"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/profiler"
	"github.com/pkg/errors"
)

var (
	// ErrAcquireTimeout is returned when the source does not open within AcquireTimeout.
	ErrAcquireTimeout = errors.New("controller: acquisition timed out")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("controller: closed")
)

// Config contains the session parameters.
type Config struct {
	// Pipeline holds the DSP constants.
	Pipeline ppg.Config `json:"pipeline" yaml:"pipeline"`
	// ROI configures frame sampling.
	ROI images.ROIOptions `json:"roi" yaml:"roi"`
	// AcquireTimeout bounds Source.Acquire.
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	// FirstFrameTimeout bounds the wait for the first frame after acquisition.
	FirstFrameTimeout time.Duration `json:"first_frame_timeout" yaml:"first_frame_timeout"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Pipeline:          ppg.DefaultConfig(),
		ROI:               images.DefaultROIOptions(),
		AcquireTimeout:    5 * time.Second,
		FirstFrameTimeout: 5 * time.Second,
	}
}

// session is the per-Start measurement context.
type session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	pipeline    *ppg.State
	summary     ppg.SummaryRecorder
	advisory    string
	illuminated bool
	startedAt   time.Time
}

// Controller drives measurement sessions on a single source.
type Controller struct {
	source capture.Source
	cfg    Config
	prof   *profiler.Profiler

	// ctrl serializes Start and Stop. It is always taken before mu.
	ctrl sync.Mutex

	mu          sync.Mutex
	state       State
	current     *session
	display     Display
	lastSummary ppg.Summary
	workers     []*sinkWorker
	closed      bool
}

// New creates an idle controller.
//
// Arguments:
//   - source: The frame source. The controller owns it from now on.
//   - cfg: The session configuration.
//   - prof: Optional profiler; nil disables timing.
//
// Returns:
//   - *Controller: The controller in the Idle state.
//
// @example
// ctrl := controller.New(capture.NewSimulator(capture.DefaultSimulatorConfig()), controller.DefaultConfig(), nil)
//
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//
// defer ctrl.Stop()
func New(source capture.Source, cfg Config, prof *profiler.Profiler) *Controller {
	return &Controller{
		source:  source,
		cfg:     cfg,
		prof:    prof,
		state:   Idle,
		display: Display{State: Idle, Message: MessageIdle},
	}
}

// Subscribe adds a sink receiving every subsequent Display.
//
// Each sink is fed from its own goroutine through a bounded queue, so a slow
// sink never delays frame processing or Stop. Subscribing after Close is a no-op.
func (c *Controller) Subscribe(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		slog.Warn("controller: subscribe after close", "sink", s.Name())
		return
	}
	c.workers = append(c.workers, newSinkWorker(s))
}

// Close stops the active session and waits, up to a bound, for every sink to
// receive the displays still queued for it. The controller cannot be started
// again afterwards.
func (c *Controller) Close() error {
	err := c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	c.closed = true
	workers := c.workers
	c.workers = nil
	for _, w := range workers {
		close(w.queue)
	}
	c.mu.Unlock()

	deadline := time.NewTimer(sinkDrainTimeout)
	defer deadline.Stop()
	for _, w := range workers {
		select {
		case <-w.done:
		case <-deadline.C:
			slog.Warn("controller: sinks did not drain", "timeout", sinkDrainTimeout)
			return err
		}
	}
	return err
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Display returns the most recent snapshot.
func (c *Controller) Display() Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Summary returns the statistics of the active session, or of the last one
// once it has stopped.
func (c *Controller) Summary() ppg.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current.summary.Summary()
	}
	return c.lastSummary
}

// Start begins a new session. An active session is stopped first.
//
// A controller that has stopped goes back through Idle before acquiring, so
// every session starts from the same state.
//
// Acquisition is bounded by AcquireTimeout. A failed acquisition leaves the
// controller Stopped with an advisory and is not retried. Missing or failing
// illumination is not fatal; the session carries AdvisoryFlashRequired.
//
// Arguments:
//   - ctx: Bounds acquisition. Cancelling it later does not end the session.
//
// Returns:
//   - error: capture.ErrAcquisition or ErrAcquireTimeout wrapped with the cause.
func (c *Controller) Start(ctx context.Context) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	if err := c.stopLocked(""); err != nil {
		slog.Warn("controller: stopping previous session failed", "error", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Stopped {
		slog.Info("controller: state changed", "from", c.state.String(), "to", Idle.String())
		c.state = Idle
		c.display = Display{State: Idle, Message: MessageIdle}
		c.dispatch(c.display)
	}
	c.mu.Unlock()

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		id:        uuid.NewString(),
		ctx:       sessCtx,
		cancel:    cancel,
		pipeline:  ppg.NewState(c.cfg.Pipeline),
		startedAt: time.Now(),
	}

	c.mu.Lock()
	c.current = sess
	c.transition(sess, Acquiring)
	c.display = Display{SessionID: sess.id, State: Acquiring, Message: MessageAcquiring}
	c.dispatch(c.display)
	c.mu.Unlock()

	slog.Info("controller: acquiring source", "session", sess.id, "timeout", c.cfg.AcquireTimeout)

	frames, err := c.acquire(ctx, sessCtx)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.current = nil
		c.lastSummary = ppg.Summary{}
		c.transition(sess, Stopped)
		c.display = Display{
			SessionID: sess.id,
			State:     Stopped,
			Message:   MessageStopped,
			Advisory:  AdvisoryCameraUnavailable,
		}
		c.dispatch(c.display)
		c.mu.Unlock()

		slog.Error("controller: acquisition failed", "session", sess.id, "error", err)
		return err
	}

	if !c.source.SupportsIllumination() {
		sess.advisory = AdvisoryFlashRequired
		slog.Warn("controller: source has no illumination", "session", sess.id)
	} else if err := c.source.SetIllumination(true); err != nil {
		sess.advisory = AdvisoryFlashRequired
		slog.Warn("controller: illumination failed", "session", sess.id, "error", err)
	} else {
		sess.illuminated = true
	}

	c.mu.Lock()
	c.display.Advisory = sess.advisory
	c.dispatch(c.display)
	c.mu.Unlock()

	go c.run(sess, frames)
	return nil
}

// acquire calls Source.Acquire with the session context, giving up after
// AcquireTimeout. A source that opens after the deadline is released.
func (c *Controller) acquire(ctx, sessCtx context.Context) (<-chan capture.Frame, error) {
	type result struct {
		frames <-chan capture.Frame
		err    error
	}

	timeout := c.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().AcquireTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := c.prof.StartOperation("controller.acquire")
	defer done()

	results := make(chan result, 1)
	go func() {
		frames, err := c.source.Acquire(sessCtx)
		results <- result{frames: frames, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "controller: acquire")
		}
		return r.frames, nil
	case <-waitCtx.Done():
		go func() {
			if r := <-results; r.err == nil {
				_ = c.source.Release()
			}
		}()
		return nil, errors.Wrapf(ErrAcquireTimeout, "after %v", timeout)
	}
}

// Stop ends the active session: the light goes off and the source is
// released before Stop returns. Stopping an inactive controller is a no-op.
func (c *Controller) Stop() error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()
	return c.stopLocked("")
}

// stopLocked requires c.ctrl. It never waits for the session goroutine,
// which may itself be blocked on c.ctrl. The light is switched off and the
// source released before sinks are told the session stopped.
func (c *Controller) stopLocked(advisory string) error {
	c.mu.Lock()
	sess := c.current
	if sess == nil || !c.state.Active() {
		c.mu.Unlock()
		return nil
	}
	sess.cancel()
	c.current = nil
	c.lastSummary = sess.summary.Summary()
	c.transition(sess, Stopped)
	if advisory == "" {
		advisory = sess.advisory
	}
	c.display = Display{
		SessionID:   sess.id,
		State:       Stopped,
		Message:     MessageStopped,
		Advisory:    advisory,
		TimestampMs: c.display.TimestampMs,
	}
	d, summary := c.display, c.lastSummary
	c.mu.Unlock()

	var err error
	if sess.illuminated {
		if lightErr := c.source.SetIllumination(false); lightErr != nil {
			err = errors.Wrap(lightErr, "controller: illumination off")
		}
	}
	if relErr := c.source.Release(); relErr != nil && err == nil {
		err = errors.Wrap(relErr, "controller: release")
	}

	// No other display can be produced in between: c.current is nil and
	// Start is excluded by c.ctrl.
	c.mu.Lock()
	c.dispatch(d)
	c.mu.Unlock()

	slog.Info("controller: session stopped",
		"session", sess.id,
		"duration", time.Since(sess.startedAt).Truncate(time.Millisecond),
		"frames", summary.Frames,
		"dropped", summary.Dropped,
		"beats", summary.Beats,
		"mean_bpm", summary.MeanBPM,
	)
	return err
}

// run feeds the session's frames to the pipeline until the session ends.
func (c *Controller) run(sess *session, frames <-chan capture.Frame) {
	timeout := c.cfg.FirstFrameTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().FirstFrameTimeout
	}
	firstFrame := time.NewTimer(timeout)
	defer firstFrame.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-firstFrame.C:
			if c.stateOf(sess) == Acquiring {
				slog.Warn("controller: no frame received", "session", sess.id, "timeout", timeout)
				c.end(sess, AdvisoryNoFrames)
				return
			}
		case f, ok := <-frames:
			if !ok {
				c.end(sess, AdvisoryStreamEnded)
				return
			}
			c.handleFrame(sess, f)
		}
	}
}

// end stops sess if it is still the active session.
func (c *Controller) end(sess *session, advisory string) {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	c.mu.Lock()
	current := c.current == sess
	c.mu.Unlock()
	if !current {
		return
	}
	if err := c.stopLocked(advisory); err != nil {
		slog.Warn("controller: stopping session failed", "session", sess.id, "error", err)
	}
}

// stateOf returns the controller state when sess is current, Stopped otherwise.
func (c *Controller) stateOf(sess *session) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != sess {
		return Stopped
	}
	return c.state
}

// HandleFrame processes one frame for the active session.
//
// Frames are ignored while Idle or Stopped. Frames that cannot be sampled or
// arrive out of order are dropped and logged.
//
// Arguments:
//   - f: The captured frame.
//
// Returns:
//   - Display: The snapshot after the frame, or the unchanged one when dropped.
//   - bool: Whether the frame was processed.
func (c *Controller) HandleFrame(f capture.Frame) (Display, bool) {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	if sess == nil {
		return c.Display(), false
	}
	return c.handleFrame(sess, f)
}

func (c *Controller) handleFrame(sess *session, f capture.Frame) (Display, bool) {
	done := c.prof.StartOperation("controller.frame")
	defer done()

	c.mu.Lock()
	if c.current != sess || !c.state.Active() {
		d := c.display
		c.mu.Unlock()
		return d, false
	}

	if c.state == Acquiring {
		sess.pipeline.Reset()
		sess.summary = ppg.SummaryRecorder{}
		c.transition(sess, Calibrating)
	}

	means, err := images.SampleROI(f.Image, c.cfg.ROI)
	if err != nil {
		sess.summary.Drop()
		d := c.display
		c.mu.Unlock()
		slog.Warn("controller: dropping frame", "session", sess.id, "seq", f.Seq, "error", err)
		return d, false
	}

	sample := ppg.ChannelSample{
		TimestampMs: f.TimestampMs(),
		Red:         means.Red,
		Green:       means.Green,
		Blue:        means.Blue,
	}
	res, err := sess.pipeline.Tick(sample, c.cfg.Pipeline)
	if err != nil {
		sess.summary.Drop()
		d := c.display
		c.mu.Unlock()
		slog.Warn("controller: dropping frame", "session", sess.id, "seq", f.Seq, "error", err)
		return d, false
	}
	sess.summary.Observe(sample, res)

	if c.state == Calibrating && res.Quality.QualityPercent >= c.cfg.Pipeline.Aggregator.DisplayThreshold {
		c.transition(sess, Measuring)
	}

	c.display = c.render(sess, sample, res)
	d := c.display
	c.dispatch(d)
	c.mu.Unlock()

	c.prof.RecordMetric("ppg.quality_percent", float64(res.Quality.QualityPercent))
	if res.Beat != nil {
		c.prof.RecordMetric("ppg.instantaneous_bpm", res.Beat.InstantaneousBPM)
	}
	return d, true
}

// render requires c.mu.
func (c *Controller) render(sess *session, sample ppg.ChannelSample, res ppg.TickResult) Display {
	d := Display{
		SessionID:      sess.id,
		State:          c.state,
		BPM:            res.BPM,
		QualityPercent: res.Quality.QualityPercent,
		FingerPresent:  res.FingerPresent,
		Advisory:       sess.advisory,
		TimestampMs:    sample.TimestampMs,
		Beat:           res.Beat != nil,
	}
	if res.Conditioned != nil {
		v := res.Conditioned.Value
		d.Waveform = &v
	}

	switch {
	case !res.FingerPresent:
		d.Message = AdvisoryPlaceFinger
	case c.state == Calibrating:
		d.Message = MessageCalibrating
	default:
		d.Message = MessageMeasuring
	}
	return d
}

// transition requires c.mu.
func (c *Controller) transition(sess *session, to State) {
	if c.state == to {
		return
	}
	slog.Info("controller: state changed", "session", sess.id, "from", c.state.String(), "to", to.String())
	c.state = to
}

// dispatch requires c.mu. Queuing under the lock keeps every sink's
// displays in the order the state changed.
func (c *Controller) dispatch(d Display) {
	for _, w := range c.workers {
		w.offer(d)
	}
}

// CollectMetrics exposes the session gauges to the profiler.
func (c *Controller) CollectMetrics() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped uint64
	for _, w := range c.workers {
		dropped += w.dropped.Load()
	}
	out := map[string]float64{
		"session.state":           float64(c.state),
		"session.quality_percent": float64(c.display.QualityPercent),
		"sinks.dropped":           float64(dropped),
	}
	if c.current != nil {
		s := c.current.summary.Summary()
		out["session.frames"] = float64(s.Frames)
		out["session.dropped"] = float64(s.Dropped)
		out["session.fps"] = s.FPS
	}
	return out
}
