package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/models"
	"github.com/mcdev12/pyroassist/go/internal/timeline"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

type commandType string

const (
	cmdLoad   commandType = "load"
	cmdStart  commandType = "start"
	cmdPause  commandType = "pause"
	cmdReset  commandType = "reset"
	cmdToggle commandType = "toggle"
	cmdView   commandType = "view"
)

type command struct {
	typ      commandType
	lines    []models.FiringLine
	settings models.Settings
	// src, when set on start or toggle, supplies the schedule of a fresh run.
	src   Source
	ctx   context.Context
	reply chan result
}

type result struct {
	view View
	err  error
}

// Runner drives a Machine with a ticker it owns. All state changes happen on
// one goroutine, in the order commands and ticks arrive.
type Runner struct {
	clock      Clock
	interval   time.Duration
	countdown  int
	sink       Sink
	metrics    MetricsRecorder
	instanceID string

	cmdCh     chan command
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	// owned by the run goroutine
	machine *Machine
	ticker  clockwork.Ticker
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithTickInterval sets the tick period. One second unless overridden.
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithCountdown sets the pre-start countdown length in ticks.
func WithCountdown(n int) Option {
	return func(r *Runner) { r.countdown = n }
}

// WithSink sets where views and alerts go.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewRunner creates and starts a Runner with an empty schedule. The runner
// stops, and its ticker with it, when ctx is cancelled or Close is called.
func NewRunner(ctx context.Context, opts ...Option) *Runner {
	r := &Runner{
		clock:      clockwork.NewRealClock(),
		interval:   time.Second,
		countdown:  DefaultCountdown,
		sink:       NopSink{},
		metrics:    NoOpMetricsRecorder{},
		instanceID: uuid.New().String()[:8],
		cmdCh:      make(chan command),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.machine = NewMachine([]timeline.AdjustedLine{}, r.countdown)

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.run(runCtx)

	log.Info().
		Str("instance", r.instanceID).
		Dur("interval", r.interval).
		Int("countdown", r.countdown).
		Msg("runner started")
	return r
}

// Load adjusts lines with settings and installs them as the schedule. It
// fails with ErrRunInProgress unless the runner is idle at zero.
func (r *Runner) Load(ctx context.Context, lines []models.FiringLine, settings models.Settings) (View, error) {
	return r.send(ctx, command{typ: cmdLoad, lines: lines, settings: settings})
}

// Start starts a countdown from a fresh state or resumes a paused run.
func (r *Runner) Start(ctx context.Context) (View, error) {
	return r.send(ctx, command{typ: cmdStart})
}

// StartFrom loads the current sheet from src when the run is fresh, then
// starts. A paused run resumes with the schedule it already has. The read and
// the start are one command, so concurrent callers cannot both load.
func (r *Runner) StartFrom(ctx context.Context, src Source) (View, error) {
	return r.send(ctx, command{typ: cmdStart, src: src, ctx: ctx})
}

// Pause stops the countdown or the run.
func (r *Runner) Pause(ctx context.Context) (View, error) {
	return r.send(ctx, command{typ: cmdPause})
}

// Reset returns to a fresh idle state. The schedule is kept.
func (r *Runner) Reset(ctx context.Context) (View, error) {
	return r.send(ctx, command{typ: cmdReset})
}

// Toggle pauses an armed runner and starts an idle one.
func (r *Runner) Toggle(ctx context.Context) (View, error) {
	return r.send(ctx, command{typ: cmdToggle})
}

// ToggleFrom is Toggle for a single start/pause button: a fresh run loads its
// schedule from src first, as StartFrom does.
func (r *Runner) ToggleFrom(ctx context.Context, src Source) (View, error) {
	return r.send(ctx, command{typ: cmdToggle, src: src, ctx: ctx})
}

// View returns the current view.
func (r *Runner) View(ctx context.Context) (View, error) {
	return r.send(ctx, command{typ: cmdView})
}

// Close stops the runner and its ticker and waits for the goroutine to exit.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
	})
	<-r.done
	return nil
}

// Done is closed once the runner goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) send(ctx context.Context, c command) (View, error) {
	c.reply = make(chan result, 1)

	select {
	case r.cmdCh <- c:
	case <-r.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	// Once accepted, the command is applied and answered before the
	// goroutine can exit.
	res := <-c.reply
	return res.view, res.err
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.disarm()

	for {
		var tickCh <-chan time.Time
		if r.ticker != nil {
			tickCh = r.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			log.Info().Str("instance", r.instanceID).Msg("runner shutting down")
			return

		case c := <-r.cmdCh:
			view, err := r.handle(c)
			c.reply <- result{view: view, err: err}

		case <-tickCh:
			step := r.machine.Tick()
			r.metrics.RecordTick(step.From)
			log.Debug().
				Str("instance", r.instanceID).
				Str("phase", string(step.To)).
				Int("elapsed", r.machine.State().Elapsed).
				Msg("tick")
			r.apply(step)
		}
	}
}

func (r *Runner) handle(c command) (View, error) {
	r.metrics.RecordCommand(string(c.typ))

	switch c.typ {
	case cmdLoad:
		if !r.fresh() {
			return r.machine.View(), ErrRunInProgress
		}
		r.load(c.lines, c.settings)
		view := r.machine.View()
		r.sink.Render(view)
		return view, nil

	case cmdStart:
		if err := r.loadFrom(c); err != nil {
			return r.machine.View(), err
		}
		r.apply(r.machine.Start())
	case cmdPause:
		r.apply(r.machine.Pause())
	case cmdReset:
		r.apply(r.machine.Reset())
	case cmdToggle:
		if r.machine.State().Phase.Armed() {
			r.apply(r.machine.Pause())
			break
		}
		if err := r.loadFrom(c); err != nil {
			return r.machine.View(), err
		}
		r.apply(r.machine.Start())
	case cmdView:
	}
	return r.machine.View(), nil
}

// fresh reports whether the machine is idle at zero, the only state a
// schedule may be loaded in.
func (r *Runner) fresh() bool {
	s := r.machine.State()
	return s.Phase == PhaseIdle && s.Elapsed == 0
}

func (r *Runner) load(lines []models.FiringLine, settings models.Settings) {
	adjusted := timeline.Adjust(lines, settings)
	r.machine.Load(adjusted)
	log.Info().
		Str("instance", r.instanceID).
		Int("lines", len(adjusted)).
		Bool("compensate_delay", settings.CompensateDelay).
		Msg("sequence loaded")
}

// loadFrom reads the command's source into a fresh machine. The source is
// read on the run goroutine; no ticker runs while the machine is fresh.
func (r *Runner) loadFrom(c command) error {
	if c.src == nil || !r.fresh() {
		return nil
	}
	lines, settings, err := c.src.Sequence(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to load sequence: %w", err)
	}
	r.load(lines, settings)
	return nil
}

// apply performs the side effects of a step: ticker arming, alert delivery
// and rendering.
func (r *Runner) apply(step Step) {
	if step.From != step.To {
		r.metrics.RecordPhase(step.To)
		log.Info().
			Str("instance", r.instanceID).
			Str("from", string(step.From)).
			Str("to", string(step.To)).
			Int("elapsed", r.machine.State().Elapsed).
			Msg("phase changed")
	}

	if step.To.Armed() {
		r.arm()
	} else {
		r.disarm()
	}

	if step.Alert != nil {
		notice := Notice{
			ID:      uuid.New().String(),
			FiredAt: r.clock.Now(),
			Alert:   *step.Alert,
		}
		r.metrics.RecordAlert()
		log.Info().
			Str("instance", r.instanceID).
			Str("line_id", notice.LineID).
			Int("line_number", notice.LineNumber).
			Int("elapsed", notice.Elapsed).
			Msg("line due")
		r.sink.Alert(notice)
	}

	r.sink.Render(r.machine.View())
}

func (r *Runner) arm() {
	if r.ticker != nil {
		return
	}
	r.ticker = r.clock.NewTicker(r.interval)
	r.metrics.RecordTickerArmed(true)
	log.Debug().Str("instance", r.instanceID).Msg("ticker armed")
}

func (r *Runner) disarm() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
	r.metrics.RecordTickerArmed(false)
	log.Debug().Str("instance", r.instanceID).Msg("ticker stopped")
}
