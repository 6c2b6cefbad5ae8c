// Package session implements the recording session controller: it
// validates the form, runs the one-second countdown on a background
// goroutine and fires the start and stop shortcuts at their offsets.
//
// The controller never talks to a UI directly. Everything the
// presentation layer needs arrives as Events through a Notifier, in
// the order they were produced.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apexion-ai/rectimer/internal/desktop"
	"github.com/google/uuid"
)

const (
	tickInterval = time.Second

	// DefaultStatusTimeout is how long a status message stays before the
	// bar falls back to "Ready".
	DefaultStatusTimeout = 3 * time.Second
)

// Options configures a Controller. Desktop is required.
type Options struct {
	Desktop  desktop.Desktop
	Notifier Notifier
	Clock    Clock
	Logger   *slog.Logger

	// ActivationAttempts is how many times the target window is activated
	// before the shortcut is sent. Values below 1 mean 1.
	ActivationAttempts int

	// SettleDelay is waited after each activation so the window manager
	// can hand over focus.
	SettleDelay time.Duration

	// StatusTimeout applies to messages that have no fixed timeout of
	// their own. Zero keeps them until replaced; negative selects
	// DefaultStatusTimeout.
	StatusTimeout time.Duration
}

// Controller owns the single session. Start and Cancel may be called
// from any goroutine.
type Controller struct {
	desktop  desktop.Desktop
	notifier Notifier
	clock    Clock
	log      *slog.Logger

	attempts      int
	settle        time.Duration
	statusTimeout time.Duration

	// baseCtx bounds external calls. Cancel does not touch it, so an
	// in-flight action always runs to completion.
	baseCtx  context.Context
	shutdown context.CancelFunc

	mu    sync.Mutex
	state State
	run   *run
}

// run is the state of one countdown. The timer goroutine shares only
// cancelled and notifyMu with the callers of Cancel. notifyMu makes the
// cancelled check and the Notify that follows it atomic with respect to
// Cancel, so nothing from a run is delivered after its Cancelled event.
type run struct {
	id        string
	cfg       Config
	notifyMu  sync.Mutex
	cancelled atomic.Bool
	ctx       context.Context
	stop      context.CancelFunc
	done      chan struct{}
}

// TickResult is what a single tick did.
type TickResult struct {
	Tick      Tick
	Actions   []ActionOutcome
	Done      bool
	Cancelled bool
}

// NewController builds an idle controller.
func NewController(opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Event) {})
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ActivationAttempts < 1 {
		opts.ActivationAttempts = 1
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.StatusTimeout < 0 {
		opts.StatusTimeout = DefaultStatusTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		desktop:       opts.Desktop,
		notifier:      opts.Notifier,
		clock:         opts.Clock,
		log:           opts.Logger.With("component", "session"),
		attempts:      opts.ActivationAttempts,
		settle:        opts.SettleDelay,
		statusTimeout: opts.StatusTimeout,
		baseCtx:       ctx,
		shutdown:      cancel,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start validates the form and, when idle, begins a new countdown. It
// returns the run ID of the new session.
func (c *Controller) Start(form Form) (string, error) {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		c.status(Status{Text: "Session already running!", Color: ColorOrange, Timeout: c.statusTimeout})
		return "", ErrAlreadyRunning
	}

	cfg, err := ParseForm(form)
	if err != nil {
		c.mu.Unlock()
		c.log.Info("session rejected", "error", err)
		c.status(Status{Text: "Invalid: " + invalidReason(err), Color: ColorRed, Timeout: c.statusTimeout})
		return "", err
	}

	ctx, stop := context.WithCancel(c.baseCtx)
	r := &run{
		id:   uuid.New().String(),
		cfg:  cfg,
		ctx:  ctx,
		stop: stop,
		done: make(chan struct{}),
	}
	c.state = Running
	c.run = r
	// Started goes out before Start returns so a Cancel can never precede it.
	c.emit(r, Event{Kind: EventStarted, Config: cfg})
	c.mu.Unlock()

	c.log.Info("session started",
		"run_id", r.id,
		"window_prefix", cfg.WindowPrefix,
		"start_offset", cfg.StartOffset,
		"end_offset", cfg.EndOffset)

	go c.loop(r)
	return r.id, nil
}

// Cancel stops the running session. The stop shortcut is not sent.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		c.status(Status{Text: "No session running", Color: ColorGray, Timeout: 1500 * time.Millisecond})
		return ErrNoActiveSession
	}
	r := c.detachLocked()
	c.mu.Unlock()

	c.cancelRun(r)
	return nil
}

// detachLocked makes the controller Idle and returns the run it held.
// c.mu must be held.
func (c *Controller) detachLocked() *run {
	r := c.run
	c.state = Idle
	c.run = nil
	return r
}

// cancelRun flags r and reports Cancelled. Holding notifyMu while the flag
// is set means any event already past its check is delivered first.
func (c *Controller) cancelRun(r *run) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.cancelled.Store(true)
	r.stop()
	c.log.Info("session cancelled", "run_id", r.id)
	c.notifier.Notify(Event{
		Kind:   EventCancelled,
		RunID:  r.id,
		Time:   time.Now(),
		Config: r.cfg,
		Status: Status{Text: "Session CANCELLED", Color: ColorOrange, Timeout: 2 * time.Second},
	})
}

// Close cancels any running session and waits for its timer goroutine
// to exit. In-flight external calls are interrupted.
func (c *Controller) Close() {
	c.mu.Lock()
	var r *run
	if c.state == Running {
		r = c.detachLocked()
	}
	c.mu.Unlock()

	if r != nil {
		c.cancelRun(r)
	}
	c.shutdown()
	if r != nil {
		<-r.done
	}
}

func (c *Controller) loop(r *run) {
	defer close(r.done)
	defer r.stop()

	for elapsed := 0; ; elapsed++ {
		res := c.tick(r, elapsed)
		if res.Done || res.Cancelled {
			return
		}
		select {
		case <-r.ctx.Done():
			return
		case <-c.clock.After(tickInterval):
		}
	}
}

// tick processes one second of the countdown.
func (c *Controller) tick(r *run, elapsed int) TickResult {
	if r.cancelled.Load() {
		return TickResult{Cancelled: true}
	}

	t := newTick(r.id, r.cfg, elapsed)
	res := TickResult{Tick: t}
	c.emit(r, Event{Kind: EventTick, Tick: t})

	if elapsed == r.cfg.StartOffset {
		res.Actions = append(res.Actions, c.fire(r, ActionStart, r.cfg.StartShortcut))
	}

	if elapsed == r.cfg.EndOffset {
		if r.cancelled.Load() {
			res.Cancelled = true
			return res
		}
		res.Actions = append(res.Actions, c.fire(r, ActionStop, r.cfg.StopShortcut))
		c.finish(r)
		res.Done = true
	}
	return res
}

// fire runs a scheduled trigger and reports it, unless the run was
// cancelled while the action was in flight.
func (c *Controller) fire(r *run, kind ActionKind, shortcut string) ActionOutcome {
	if r.cancelled.Load() {
		return ActionOutcome{
			Kind:     kind,
			Result:   ActionFailed,
			Shortcut: shortcut,
			Err:      fmt.Errorf("%w: session cancelled", ErrActionFailed),
		}
	}

	out := c.trigger(r.cfg.WindowPrefix, shortcut, func(s Status) {
		c.emit(r, Event{Kind: EventStatus, Status: s})
	})
	out.Kind = kind

	c.emit(r, Event{Kind: EventAction, Action: out, Status: c.actionStatus(out)})
	return out
}

func (c *Controller) finish(r *run) {
	c.mu.Lock()
	current := c.run == r
	if current {
		c.state = Idle
		c.run = nil
	}
	c.mu.Unlock()

	if !current {
		return
	}
	c.log.Info("session finished", "run_id", r.id)
	c.notifier.Notify(Event{Kind: EventFinished, RunID: r.id, Time: time.Now(), Config: r.cfg})
}

// TriggerAction focuses the first window whose title starts with prefix
// and sends shortcut to it. It is what the countdown runs at each offset
// and can also be invoked on its own.
func (c *Controller) TriggerAction(prefix, shortcut string) ActionOutcome {
	out := c.trigger(prefix, shortcut, c.status)
	out.Kind = ActionManual
	c.notifier.Notify(Event{Kind: EventAction, Time: time.Now(), Action: out, Status: c.actionStatus(out)})
	return out
}

func (c *Controller) trigger(prefix, shortcut string, report func(Status)) ActionOutcome {
	out := ActionOutcome{Result: ActionFailed, Shortcut: shortcut}
	if prefix == "" {
		prefix = DefaultWindowPrefix
	}
	ctx := c.baseCtx

	titles, err := c.desktop.ListWindowTitles(ctx)
	if err != nil {
		out.Err = fmt.Errorf("%w: list windows: %v", ErrActionFailed, err)
		c.log.Warn("list windows failed", "error", err)
		return out
	}
	title, ok := desktop.SelectWindow(titles, prefix)
	if !ok {
		out.Err = fmt.Errorf("%w: no window starting with %q found", ErrActionFailed, prefix)
		c.log.Warn("target window not found", "prefix", prefix, "windows", len(titles))
		return out
	}
	out.Window = title

	for i := 0; i < c.attempts; i++ {
		activated, err := c.desktop.ActivateWindow(ctx, title)
		if i == 0 && (err != nil || !activated) {
			if err == nil {
				err = fmt.Errorf("window %q could not be activated", title)
			}
			out.Err = fmt.Errorf("%w: %v", ErrActionFailed, err)
			c.log.Warn("activate window failed", "title", title, "error", err)
			return out
		}
		if err != nil {
			c.log.Debug("repeated activation failed", "title", title, "attempt", i+1, "error", err)
		}
		c.wait(ctx, c.settle)
	}
	report(Status{Text: "Activated " + title, Color: ColorGreen, Timeout: 2 * time.Second})

	hk, err := desktop.ParseHotkey(shortcut)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrActionFailed, err)
		return out
	}
	c.log.Info("Sending: "+hk.Display(), "window", title)
	if err := c.desktop.SendHotkey(ctx, hk); err != nil {
		out.Err = fmt.Errorf("%w: send %s: %v", ErrActionFailed, hk, err)
		c.log.Warn("send hotkey failed", "hotkey", hk.String(), "error", err)
		return out
	}

	out.Result = ActionSucceeded
	return out
}

func (c *Controller) actionStatus(out ActionOutcome) Status {
	switch {
	case out.Succeeded() && out.Kind == ActionStart:
		return Status{Text: "RECORDING STARTED!", Color: ColorLime, Timeout: 3 * time.Second}
	case out.Succeeded() && out.Kind == ActionStop:
		return Status{Text: "RECORDING STOPPED!", Color: ColorRed, Timeout: 3 * time.Second}
	case out.Succeeded():
		return Status{Text: "Sent " + out.Shortcut, Color: ColorGreen, Timeout: c.statusTimeout}
	case out.Kind == ActionStart:
		return Status{Text: "Failed to start recording: " + failureReason(out.Err), Color: ColorRed, Timeout: c.statusTimeout}
	case out.Kind == ActionStop:
		return Status{Text: "Failed to stop recording: " + failureReason(out.Err), Color: ColorRed, Timeout: c.statusTimeout}
	}
	return Status{Text: "Failed: " + failureReason(out.Err), Color: ColorRed, Timeout: c.statusTimeout}
}

// emit forwards a run's event unless the run has been cancelled, so a
// timer that is still finishing an external call stays silent.
func (c *Controller) emit(r *run, ev Event) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if r.cancelled.Load() {
		return
	}
	ev.RunID = r.id
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.notifier.Notify(ev)
}

func (c *Controller) status(s Status) {
	c.notifier.Notify(Event{Kind: EventStatus, Time: time.Now(), Status: s})
}

func (c *Controller) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-c.clock.After(d):
	}
}

func invalidReason(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
}

func failureReason(err error) string {
	if err == nil {
		return "unknown error"
	}
	return strings.TrimPrefix(err.Error(), ErrActionFailed.Error()+": ")
}
