package session

import "time"

// State is the controller's session state.
type State int

const (
	Idle State = iota
	Running
	// Cancelled is only ever reported in events; after Cancel the
	// controller rests in Idle.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Phase is the display phase of a running countdown.
type Phase int

const (
	StartingSoon Phase = iota
	Recording
)

func (p Phase) String() string {
	if p == Recording {
		return "recording"
	}
	return "starting_soon"
}

// Label is the status phrase shown while in this phase.
func (p Phase) Label() string {
	if p == Recording {
		return "Recording..."
	}
	return "Starting soon..."
}

// Color is the color hint for the phase label.
func (p Phase) Color() Color {
	if p == Recording {
		return ColorBlue
	}
	return ColorOrange
}

// Tick is one second of countdown progress.
type Tick struct {
	RunID     string
	Elapsed   int
	Remaining int
	Phase     Phase
}

// Display renders the time remaining until the stop offset.
func (t Tick) Display() string { return FormatClock(t.Remaining) }

func newTick(runID string, cfg Config, elapsed int) Tick {
	phase := StartingSoon
	if elapsed >= cfg.StartOffset {
		phase = Recording
	}
	return Tick{
		RunID:     runID,
		Elapsed:   elapsed,
		Remaining: cfg.EndOffset - elapsed,
		Phase:     phase,
	}
}

// ActionKind names which scheduled action a trigger belongs to.
type ActionKind string

const (
	ActionStart  ActionKind = "start"
	ActionStop   ActionKind = "stop"
	ActionManual ActionKind = "manual"
)

// Result is the outcome of a trigger action.
type Result int

const (
	ActionSucceeded Result = iota
	ActionFailed
)

func (r Result) String() string {
	if r == ActionSucceeded {
		return "succeeded"
	}
	return "failed"
}

// ActionOutcome reports one activate-window + send-hotkey attempt.
type ActionOutcome struct {
	Kind     ActionKind
	Result   Result
	Shortcut string
	// Window is the title that was selected, empty when none matched.
	Window string
	Err    error
}

// Succeeded reports whether the shortcut was delivered.
func (o ActionOutcome) Succeeded() bool { return o.Result == ActionSucceeded }

// Color is a presentation hint from the status palette.
type Color string

const (
	ColorGreen  Color = "green"
	ColorLime   Color = "lime"
	ColorOrange Color = "orange"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorGray   Color = "gray"
)

// Status is a transient status-bar message. A zero Timeout means the
// message stays until replaced.
type Status struct {
	Text    string
	Color   Color
	Timeout time.Duration
}

// Empty reports whether there is no message.
func (s Status) Empty() bool { return s.Text == "" }

// ReadyStatus is what the status bar shows when nothing else does.
var ReadyStatus = Status{Text: "Ready", Color: ColorGreen}

// EventKind discriminates Event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventTick      EventKind = "tick"
	EventAction    EventKind = "action"
	EventCancelled EventKind = "cancelled"
	EventFinished  EventKind = "finished"
	// EventStatus carries only a Status (validation errors, activation
	// notices, informational rejections).
	EventStatus EventKind = "status"
)

// Event is one entry of the ordered stream from the controller to the
// presentation layer.
type Event struct {
	Kind   EventKind
	RunID  string
	Time   time.Time
	Config Config
	Tick   Tick
	Action ActionOutcome
	Status Status
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Kind == EventCancelled || e.Kind == EventFinished
}
