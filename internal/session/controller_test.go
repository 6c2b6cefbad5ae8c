package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apexion-ai/rectimer/internal/desktop"
)

// ---------- fakes ----------

type fakeDesktop struct {
	mu        sync.Mutex
	titles    []string
	refuse    bool // ActivateWindow reports false for every title
	sendErr   error
	activated []string
	sent      []string
}

func (f *fakeDesktop) ListWindowTitles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.titles...), nil
}

func (f *fakeDesktop) ActivateWindow(_ context.Context, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, title)
	return !f.refuse, nil
}

func (f *fakeDesktop) SendHotkey(_ context.Context, hk desktop.Hotkey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, hk.String())
	return nil
}

func (f *fakeDesktop) sentKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeDesktop) activations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.activated...)
}

func obsDesktop() *fakeDesktop {
	return &fakeDesktop{titles: []string{"Terminal", "OBS 30.1.2 - Profile: Untitled"}}
}

// instantClock never waits.
type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// manualClock hands every wait to the test, which fires it with advance.
type manualClock struct {
	waits chan chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{waits: make(chan chan time.Time, 64)}
}

func (c *manualClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.waits <- ch
	return ch
}

func (c *manualClock) advance(t *testing.T) {
	t.Helper()
	select {
	case ch := <-c.waits:
		ch <- time.Now()
	case <-time.After(2 * time.Second):
		t.Fatal("timer goroutine never waited")
	}
}

func newTestController(d desktop.Desktop, clock Clock) (*Controller, *Queue) {
	q := NewQueue(256)
	c := NewController(Options{
		Desktop:       d,
		Notifier:      q,
		Clock:         clock,
		StatusTimeout: DefaultStatusTimeout,
	})
	return c, q
}

func nextEvent(t *testing.T, q *Queue) Event {
	t.Helper()
	select {
	case ev := <-q.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

// collectUntil reads events up to and including the first one for which
// stop returns true.
func collectUntil(t *testing.T, q *Queue, stop func(Event) bool) []Event {
	t.Helper()
	var events []Event
	for {
		ev := nextEvent(t, q)
		events = append(events, ev)
		if stop(ev) {
			return events
		}
	}
}

func isTick(n int) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventTick && ev.Tick.Elapsed == n }
}

func noPendingEvents(t *testing.T, q *Queue) {
	t.Helper()
	select {
	case ev := <-q.Events():
		t.Fatalf("unexpected event after run ended: %+v", ev)
	default:
	}
}

// ---------- Start validation ----------

func TestStart_InvalidInputKeepsIdle(t *testing.T) {
	d := obsDesktop()
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	f := validForm()
	f.StartSeconds = "20"

	if _, err := c.Start(f); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if c.State() != Idle {
		t.Fatalf("expected Idle, got %v", c.State())
	}

	ev := nextEvent(t, q)
	if ev.Kind != EventStatus || ev.Status.Color != ColorRed {
		t.Fatalf("expected red status event, got %+v", ev)
	}
	if !strings.HasPrefix(ev.Status.Text, "Invalid: start time must be less than end time") {
		t.Fatalf("unexpected status text %q", ev.Status.Text)
	}
	if len(d.sentKeys()) != 0 {
		t.Fatal("no hotkey may be sent for a rejected session")
	}
}

func TestStart_EmptyShortcutRejected(t *testing.T) {
	c, _ := newTestController(obsDesktop(), instantClock{})
	defer c.Close()

	f := validForm()
	f.StopShortcut = ""
	if _, err := c.Start(f); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if c.State() != Idle {
		t.Fatalf("expected Idle, got %v", c.State())
	}
}

// ---------- full countdown ----------

func TestRun_OBSScenario(t *testing.T) {
	d := obsDesktop()
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	runID, err := c.Start(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	if events[0].Kind != EventStarted || events[0].RunID != runID {
		t.Fatalf("expected Started first, got %+v", events[0])
	}

	var (
		ticks   []Tick
		actions []struct {
			afterTick int
			outcome   ActionOutcome
		}
	)
	for _, ev := range events {
		if ev.RunID != runID {
			t.Fatalf("event with foreign run id: %+v", ev)
		}
		switch ev.Kind {
		case EventTick:
			ticks = append(ticks, ev.Tick)
		case EventAction:
			actions = append(actions, struct {
				afterTick int
				outcome   ActionOutcome
			}{ticks[len(ticks)-1].Elapsed, ev.Action})
		}
	}

	if len(ticks) != 16 {
		t.Fatalf("expected ticks 0..15, got %d ticks", len(ticks))
	}
	for i, tk := range ticks {
		if tk.Elapsed != i || tk.Remaining != 15-i {
			t.Errorf("tick %d: elapsed=%d remaining=%d", i, tk.Elapsed, tk.Remaining)
		}
		wantPhase := StartingSoon
		if i >= 5 {
			wantPhase = Recording
		}
		if tk.Phase != wantPhase {
			t.Errorf("tick %d: expected phase %v, got %v", i, wantPhase, tk.Phase)
		}
	}
	if ticks[0].Display() != "00:00:15" || ticks[15].Display() != "00:00:00" {
		t.Errorf("unexpected countdown display %q .. %q", ticks[0].Display(), ticks[15].Display())
	}

	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].afterTick != 5 || actions[0].outcome.Kind != ActionStart || !actions[0].outcome.Succeeded() {
		t.Errorf("unexpected start action: %+v", actions[0])
	}
	if actions[1].afterTick != 15 || actions[1].outcome.Kind != ActionStop || !actions[1].outcome.Succeeded() {
		t.Errorf("unexpected stop action: %+v", actions[1])
	}
	if want := []string{"ctrl+alt+b", "ctrl+alt+n"}; !reflect.DeepEqual(d.sentKeys(), want) {
		t.Errorf("expected hotkeys %v, got %v", want, d.sentKeys())
	}
	if c.State() != Idle {
		t.Errorf("expected Idle after final tick, got %v", c.State())
	}
}

func TestRun_ActionStatusMessages(t *testing.T) {
	c, q := newTestController(obsDesktop(), instantClock{})
	defer c.Close()

	if _, err := c.Start(validForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	var texts []string
	for _, ev := range events {
		if ev.Kind == EventAction || ev.Kind == EventStatus {
			texts = append(texts, ev.Status.Text)
		}
	}
	want := []string{
		"Activated OBS 30.1.2 - Profile: Untitled",
		"RECORDING STARTED!",
		"Activated OBS 30.1.2 - Profile: Untitled",
		"RECORDING STOPPED!",
	}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("expected statuses %q, got %q", want, texts)
	}
}

func TestRun_StartOffsetZeroFiresOnFirstTick(t *testing.T) {
	d := obsDesktop()
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	f := validForm()
	f.StartSeconds = ""
	f.StopSeconds = "2"
	if _, err := c.Start(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := collectUntil(t, q, isTick(1))

	var sawStart bool
	for _, ev := range events {
		if ev.Kind == EventAction && ev.Action.Kind == ActionStart {
			sawStart = true
		}
		if ev.Kind == EventTick && ev.Tick.Phase != Recording {
			t.Errorf("tick %d should already be Recording", ev.Tick.Elapsed)
		}
	}
	if !sawStart {
		t.Fatal("expected start action before tick 1")
	}
	collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })
}

// ---------- cancellation ----------

func TestCancel_PreventsStopShortcut(t *testing.T) {
	for _, cancelAt := range []int{1, 5, 7, 14} {
		d := obsDesktop()
		clock := newManualClock()
		c, q := newTestController(d, clock)

		if _, err := c.Start(validForm()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.mu.Lock()
		r := c.run
		c.mu.Unlock()

		collectUntil(t, q, isTick(0))
		for i := 1; i <= cancelAt; i++ {
			clock.advance(t)
			collectUntil(t, q, isTick(i))
		}
		if cancelAt == 5 {
			// The start action is reported right after tick 5.
			collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventAction })
		}

		if err := c.Cancel(); err != nil {
			t.Fatalf("cancel at %d: unexpected error %v", cancelAt, err)
		}
		if c.State() != Idle {
			t.Fatalf("cancel at %d: expected Idle immediately, got %v", cancelAt, c.State())
		}
		ev := nextEvent(t, q)
		if ev.Kind != EventCancelled || ev.Status.Text != "Session CANCELLED" {
			t.Fatalf("cancel at %d: expected Cancelled event, got %+v", cancelAt, ev)
		}

		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("cancel at %d: timer goroutine did not exit", cancelAt)
		}
		noPendingEvents(t, q)

		for _, k := range d.sentKeys() {
			if k == "ctrl+alt+n" {
				t.Fatalf("cancel at %d: stop shortcut must never fire", cancelAt)
			}
		}
		c.Close()
	}
}

func TestCancel_WaitsForEventInDelivery(t *testing.T) {
	d := obsDesktop()
	clock := newManualClock()
	q := NewQueue(256)

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := NotifierFunc(func(ev Event) {
		if ev.Kind == EventTick && ev.Tick.Elapsed == 1 {
			close(entered)
			<-release
		}
	})
	c := NewController(Options{
		Desktop:       d,
		Notifier:      Notifiers(slow, q),
		Clock:         clock,
		StatusTimeout: DefaultStatusTimeout,
	})
	defer c.Close()

	id, err := c.Start(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()

	collectUntil(t, q, isTick(0))
	clock.advance(t)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick 1 never reached the first notifier")
	}

	errc := make(chan error, 1)
	go func() { errc <- c.Cancel() }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("unexpected cancel error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel did not return")
	}
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer goroutine did not exit")
	}

	events := collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventCancelled })
	if last := events[len(events)-2]; last.Kind != EventTick || last.Tick.Elapsed != 1 {
		t.Fatalf("tick 1 should be delivered before Cancelled, got %+v", last)
	}
	if events[len(events)-1].RunID != id {
		t.Fatalf("Cancelled for wrong run %+v", events[len(events)-1])
	}
	noPendingEvents(t, q)
}

func TestCancel_RightAfterStartFollowsStarted(t *testing.T) {
	for i := 0; i < 20; i++ {
		c, q := newTestController(obsDesktop(), newManualClock())

		if _, err := c.Start(validForm()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.mu.Lock()
		r := c.run
		c.mu.Unlock()
		if err := c.Cancel(); err != nil {
			t.Fatalf("unexpected cancel error: %v", err)
		}
		<-r.done

		if ev := nextEvent(t, q); ev.Kind != EventStarted {
			t.Fatalf("first event must be Started, got %+v", ev)
		}
		events := collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventCancelled })
		for _, ev := range events[:len(events)-1] {
			if ev.Kind != EventTick || ev.Tick.Elapsed != 0 {
				t.Fatalf("only tick 0 may precede Cancelled, got %+v", ev)
			}
		}
		noPendingEvents(t, q)
		c.Close()
	}
}

func TestClose_AfterFinishIsSilent(t *testing.T) {
	c, q := newTestController(obsDesktop(), instantClock{})

	if _, err := c.Start(validForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	c.Close()
	noPendingEvents(t, q)
}

func TestClose_WhileRunningCancels(t *testing.T) {
	d := obsDesktop()
	c, q := newTestController(d, newManualClock())

	if _, err := c.Start(validForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collectUntil(t, q, isTick(0))

	c.Close()
	ev := nextEvent(t, q)
	if ev.Kind != EventCancelled {
		t.Fatalf("expected Cancelled, got %+v", ev)
	}
	noPendingEvents(t, q)
	if c.State() != Idle {
		t.Fatalf("expected Idle after Close, got %v", c.State())
	}
}

func TestCancel_Idle(t *testing.T) {
	c, q := newTestController(obsDesktop(), instantClock{})
	defer c.Close()

	if err := c.Cancel(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	ev := nextEvent(t, q)
	if ev.Kind != EventStatus || ev.Status.Text != "No session running" || ev.Status.Color != ColorGray {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestTick_CancelledRunDoesNothing(t *testing.T) {
	d := obsDesktop()
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	cfg, err := ParseForm(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := &run{id: "r1", cfg: cfg}
	r.cancelled.Store(true)

	res := c.tick(r, cfg.EndOffset)
	if !res.Cancelled || res.Done || len(res.Actions) != 0 {
		t.Fatalf("unexpected tick result %+v", res)
	}
	if len(d.sentKeys()) != 0 {
		t.Fatal("cancelled tick must not send anything")
	}
	noPendingEvents(t, q)
}

func TestTick_Result(t *testing.T) {
	d := obsDesktop()
	c, _ := newTestController(d, instantClock{})
	defer c.Close()

	cfg, err := ParseForm(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := &run{id: "r1", cfg: cfg}

	res := c.tick(r, 3)
	if res.Tick.Remaining != 12 || res.Tick.Phase != StartingSoon || len(res.Actions) != 0 || res.Done {
		t.Fatalf("unexpected result at 3: %+v", res)
	}
	res = c.tick(r, 5)
	if len(res.Actions) != 1 || res.Actions[0].Kind != ActionStart || res.Done {
		t.Fatalf("unexpected result at 5: %+v", res)
	}
	res = c.tick(r, 15)
	if len(res.Actions) != 1 || res.Actions[0].Kind != ActionStop || !res.Done {
		t.Fatalf("unexpected result at 15: %+v", res)
	}
}

// ---------- AlreadyRunning ----------

func TestStart_WhileRunningLeavesSessionUntouched(t *testing.T) {
	d := obsDesktop()
	clock := newManualClock()
	c, q := newTestController(d, clock)
	defer c.Close()

	runID, err := c.Start(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collectUntil(t, q, isTick(0))
	clock.advance(t)
	collectUntil(t, q, isTick(1))

	other := validForm()
	other.StartShortcut = "ctrl+shift+x"
	if _, err := c.Start(other); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	ev := nextEvent(t, q)
	if ev.Kind != EventStatus || ev.Status.Text != "Session already running!" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if c.State() != Running {
		t.Fatalf("expected Running, got %v", c.State())
	}

	for i := 2; i <= 15; i++ {
		clock.advance(t)
		for _, ev := range collectUntil(t, q, isTick(i)) {
			if ev.RunID != "" && ev.RunID != runID {
				t.Fatalf("unexpected run id %q", ev.RunID)
			}
		}
	}
	collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	if want := []string{"ctrl+alt+b", "ctrl+alt+n"}; !reflect.DeepEqual(d.sentKeys(), want) {
		t.Fatalf("expected the first run's hotkeys %v, got %v", want, d.sentKeys())
	}
}

func TestStart_AgainAfterFinish(t *testing.T) {
	c, q := newTestController(obsDesktop(), instantClock{})
	defer c.Close()

	first, err := c.Start(validForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	second, err := c.Start(validForm())
	if err != nil {
		t.Fatalf("expected a new session to start, got %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh run id")
	}
	collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })
}

// ---------- trigger failures ----------

func TestRun_ActivationFailsEverywhere(t *testing.T) {
	d := obsDesktop()
	d.refuse = true
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	if _, err := c.Start(validForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := collectUntil(t, q, func(ev Event) bool { return ev.Kind == EventFinished })

	var outcomes []ActionOutcome
	var ticks int
	for _, ev := range events {
		switch ev.Kind {
		case EventAction:
			outcomes = append(outcomes, ev.Action)
		case EventTick:
			ticks++
		}
	}
	if ticks != 16 {
		t.Fatalf("session should keep ticking after a failed action, got %d ticks", ticks)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Result != ActionFailed || !errors.Is(o.Err, ErrActionFailed) {
			t.Errorf("expected ActionFailed, got %+v", o)
		}
	}
	if len(d.sentKeys()) != 0 {
		t.Fatalf("no hotkey may be dispatched, got %v", d.sentKeys())
	}
	if c.State() != Idle {
		t.Fatalf("expected Idle, got %v", c.State())
	}
}

func TestTriggerAction_NoMatchingWindow(t *testing.T) {
	d := &fakeDesktop{titles: []string{"Terminal", "Firefox"}}
	c, q := newTestController(d, instantClock{})
	defer c.Close()

	out := c.TriggerAction("OBS", "ctrl+alt+b")
	if out.Succeeded() || !errors.Is(out.Err, ErrActionFailed) {
		t.Fatalf("expected ActionFailed, got %+v", out)
	}
	if !strings.Contains(out.Err.Error(), `no window starting with "OBS" found`) {
		t.Fatalf("unexpected error %v", out.Err)
	}
	if len(d.activations()) != 0 || len(d.sentKeys()) != 0 {
		t.Fatal("nothing may be activated or sent")
	}
	ev := nextEvent(t, q)
	if ev.Kind != EventAction || ev.Status.Color != ColorRed {
		t.Fatalf("expected red action event, got %+v", ev)
	}
}

func TestTriggerAction_SendFailure(t *testing.T) {
	d := obsDesktop()
	d.sendErr = errors.New("xdotool missing")
	c, _ := newTestController(d, instantClock{})
	defer c.Close()

	out := c.TriggerAction("obs", "ctrl+alt+b")
	if out.Succeeded() || !errors.Is(out.Err, ErrActionFailed) {
		t.Fatalf("expected ActionFailed, got %+v", out)
	}
	if out.Window != "OBS 30.1.2 - Profile: Untitled" {
		t.Fatalf("expected selected window to be reported, got %q", out.Window)
	}
}

func TestTriggerAction_RepeatedActivation(t *testing.T) {
	d := obsDesktop()
	q := NewQueue(16)
	c := NewController(Options{
		Desktop:            d,
		Notifier:           q,
		Clock:              instantClock{},
		ActivationAttempts: 2,
		SettleDelay:        time.Second,
	})
	defer c.Close()

	out := c.TriggerAction("OBS", "ctrl+alt+b")
	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out)
	}
	if n := len(d.activations()); n != 2 {
		t.Fatalf("expected 2 activations, got %d", n)
	}
	if want := []string{"ctrl+alt+b"}; !reflect.DeepEqual(d.sentKeys(), want) {
		t.Fatalf("hotkey must be sent exactly once, got %v", d.sentKeys())
	}
}

// ---------- queue ----------

func TestNotifiersFanOutInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	record := func(tag string) Notifier {
		return NotifierFunc(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+string(ev.Kind))
		})
	}

	n := Notifiers(record("a"), nil, record("b"))
	n.Notify(Event{Kind: EventStarted})
	n.Notify(Event{Kind: EventTick})

	want := []string{"a:started", "b:started", "a:tick", "b:tick"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
