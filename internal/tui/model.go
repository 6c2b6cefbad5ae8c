package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/apexion-ai/rectimer/internal/session"
)

// ---------- messages ----------

// sessionEventMsg carries a controller event sent through TuiIO.
type sessionEventMsg struct{ ev session.Event }

type startResultMsg struct {
	runID string
	err   error
}
type cancelResultMsg struct{ err error }
type savedMsg struct{ err error }
type clearStatusMsg struct{ seq int }

// TUIConfig carries the values shown in the header and the form defaults.
type TUIConfig struct {
	Version string
	Profile string
	Backend string

	// Defaults prefills the form.
	Defaults session.Form

	// StatusTimeout applies to messages raised by the UI itself.
	// Zero keeps them until replaced.
	StatusTimeout time.Duration

	// SaveForm persists the form as the new defaults (ctrl+w). Nil
	// disables saving.
	SaveForm func(session.Config) error
}

// ---------- styles ----------

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	headerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Width(8).
			Foreground(lipgloss.Color("252"))

	labelFocusedStyle = lipgloss.NewStyle().
				Width(8).
				Foreground(lipgloss.Color("39")).
				Bold(true)

	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	fieldFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255")).
				Underline(true)

	fieldLockedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	buttonStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("2")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 2).
			Bold(true)

	buttonDisabledStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("238")).
				Foreground(lipgloss.Color("245")).
				Padding(0, 2)

	cancelButtonStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("196")).
				Foreground(lipgloss.Color("255")).
				Padding(0, 2).
				Bold(true)

	countdownStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("8"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	statusBarBgStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	helpBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// palette maps session colors to terminal colors.
var palette = map[session.Color]lipgloss.Color{
	session.ColorGreen:  lipgloss.Color("2"),
	session.ColorLime:   lipgloss.Color("118"),
	session.ColorOrange: lipgloss.Color("214"),
	session.ColorBlue:   lipgloss.Color("39"),
	session.ColorRed:    lipgloss.Color("196"),
	session.ColorGray:   lipgloss.Color("245"),
}

func colored(c session.Color) lipgloss.Style {
	if tc, ok := palette[c]; ok {
		return lipgloss.NewStyle().Foreground(tc)
	}
	return lipgloss.NewStyle()
}

var recSpinner = spinner.Spinner{
	Frames: []string{"●", "◉", "○", "◉"},
	FPS:    250 * time.Millisecond,
}

const helpText = `# rectimer

Focuses the first window whose title starts with the **window prefix** and
presses the **start key** once the start offset is reached, then the
**stop key** at the stop offset.

| Key | Action |
|---|---|
| tab / shift+tab | next / previous field |
| enter, ctrl+s | start the countdown |
| esc, ctrl+x | cancel the running session |
| ctrl+w | save the form as defaults |
| f1 | toggle this help |
| ctrl+c | quit (cancels a running session) |

Empty number fields count as 0. The start offset must be smaller than the
stop offset.`

// ---------- Model ----------

// Model is the bubbletea model for the session screen.
type Model struct {
	form    sessionForm
	spinner spinner.Model
	width   int
	height  int

	ctrl Controller
	cfg  TUIConfig

	running bool
	runID   string
	// endedRunID is the run that last finished or was cancelled; its late
	// events are dropped.
	endedRunID string

	countdown   string
	phrase      string
	phraseColor session.Color

	status    session.Status
	statusSeq int

	showHelp bool
	quitting bool

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel creates the initial model.
func NewModel(cfg TUIConfig, ctrl Controller) Model {
	sp := spinner.New()
	sp.Spinner = recSpinner
	sp.Style = spinnerStyle

	return Model{
		form:        newSessionForm(cfg.Defaults),
		spinner:     sp,
		ctrl:        ctrl,
		cfg:         cfg,
		phrase:      "Ready",
		phraseColor: session.ColorGreen,
		status:      session.ReadyStatus,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionEventMsg:
		return m.handleEvent(msg.ev)

	case startResultMsg:
		// Failures already arrived as status events.
		if msg.err == nil && m.runID == "" && msg.runID != m.endedRunID {
			m.runID = msg.runID
		}
		return m, nil

	case cancelResultMsg:
		return m, nil

	case savedMsg:
		if msg.err != nil {
			return m, m.setStatus(session.Status{Text: "Save failed: " + msg.err.Error(), Color: session.ColorRed, Timeout: m.cfg.StatusTimeout})
		}
		return m, m.setStatus(session.Status{Text: "Saved as defaults", Color: session.ColorGreen, Timeout: m.cfg.StatusTimeout})

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = session.ReadyStatus
		}
		return m, nil
	}

	return m, m.form.update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch key {
		case "f1", "esc", "q", "enter":
			m.showHelp = false
		}
		return m, nil
	}

	switch key {
	case "f1":
		m.showHelp = true
		return m, nil
	case "tab", "down":
		m.form.move(1)
		return m, nil
	case "shift+tab", "up":
		m.form.move(-1)
		return m, nil
	case "enter", "ctrl+s":
		return m, m.startCmd()
	case "esc", "ctrl+x":
		return m, m.cancelCmd()
	case "ctrl+w":
		return m, m.saveCmd()
	}

	return m, m.form.update(msg)
}

// startCmd and cancelCmd call the controller off the event loop; its
// notifications come back through program.Send.
func (m Model) startCmd() tea.Cmd {
	ctrl, form := m.ctrl, m.form.values()
	return func() tea.Msg {
		id, err := ctrl.Start(form)
		return startResultMsg{runID: id, err: err}
	}
}

func (m Model) cancelCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return cancelResultMsg{err: ctrl.Cancel()}
	}
}

func (m *Model) saveCmd() tea.Cmd {
	if m.cfg.SaveForm == nil {
		return m.setStatus(session.Status{Text: "Saving is not available", Color: session.ColorGray, Timeout: m.cfg.StatusTimeout})
	}
	cfg, err := session.ParseForm(m.form.values())
	if err != nil {
		return m.setStatus(session.Status{
			Text:    "Cannot save: " + strings.TrimPrefix(err.Error(), session.ErrInvalidInput.Error()+": "),
			Color:   session.ColorRed,
			Timeout: m.cfg.StatusTimeout,
		})
	}
	save := m.cfg.SaveForm
	return func() tea.Msg { return savedMsg{err: save(cfg)} }
}

func (m Model) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case session.EventStarted:
		if ev.RunID != "" && ev.RunID == m.endedRunID {
			return m, nil
		}
		m.running = true
		m.runID = ev.RunID
		m.form.lock()
		m.countdown = ""
		m.phrase, m.phraseColor = "Starting in...", session.ColorOrange
		return m, m.spinner.Tick

	case session.EventTick:
		if m.stale(ev) {
			return m, nil
		}
		m.countdown = ev.Tick.Display()
		m.phrase, m.phraseColor = ev.Tick.Phase.Label(), ev.Tick.Phase.Color()
		return m, nil

	case session.EventAction, session.EventStatus:
		if m.stale(ev) {
			return m, nil
		}
		return m, m.setStatus(ev.Status)

	case session.EventCancelled:
		if m.stale(ev) {
			return m, nil
		}
		m.endRun(ev.RunID)
		m.phrase, m.phraseColor = "Cancelled", session.ColorRed
		return m, m.setStatus(ev.Status)

	case session.EventFinished:
		if m.stale(ev) {
			return m, nil
		}
		m.endRun(ev.RunID)
		m.phrase, m.phraseColor = "Ready", session.ColorGreen
		return m, nil
	}
	return m, nil
}

// stale reports whether ev belongs to a run other than the current one,
// including the run that just ended. Events without a run ID (manual
// triggers, validation) always apply.
func (m Model) stale(ev session.Event) bool {
	if ev.RunID == "" {
		return false
	}
	if ev.RunID == m.endedRunID {
		return true
	}
	return m.runID != "" && ev.RunID != m.runID
}

func (m *Model) endRun(runID string) {
	if runID == "" {
		runID = m.runID
	}
	m.endedRunID = runID
	m.running = false
	m.runID = ""
	m.countdown = ""
	m.form.unlock()
}

// setStatus shows s and schedules the reset to "Ready". A newer message
// bumps statusSeq, which voids any pending reset.
func (m *Model) setStatus(s session.Status) tea.Cmd {
	if s.Empty() {
		return nil
	}
	m.statusSeq++
	m.status = s
	if s.Timeout <= 0 {
		return nil
	}
	seq := m.statusSeq
	return tea.Tick(s.Timeout, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

// ---------- view ----------

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := titleStyle.Render("rectimer")
	if info := m.headerInfo(); info != "" {
		header += headerInfoStyle.Render("  " + info)
	}

	button := buttonStyle.Render("Start")
	if m.running {
		button = buttonDisabledStyle.Render("Running...") + " " + cancelButtonStyle.Render("Cancel")
	}
	panel := panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, m.form.view(), "", button))

	countdown := m.countdown
	if countdown == "" {
		countdown = "--:--:--"
	}
	clock := countdownStyle.Foreground(palette[m.phraseColor]).Render(countdown)

	phrase := colored(m.phraseColor).Bold(true).Render(m.phrase)
	if m.running {
		phrase = m.spinner.View() + " " + phrase
	}

	body := lipgloss.JoinVertical(lipgloss.Center, header, "", panel, "", clock, phrase)
	if m.width > 0 {
		body = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, body)
	}
	return body + "\n\n" + m.renderStatusBar()
}

func (m Model) headerInfo() string {
	var parts []string
	if m.cfg.Version != "" {
		parts = append(parts, m.cfg.Version)
	}
	if m.cfg.Profile != "" {
		parts = append(parts, "profile "+m.cfg.Profile)
	}
	if m.cfg.Backend != "" {
		parts = append(parts, m.cfg.Backend)
	}
	return strings.Join(parts, " · ")
}

func (m Model) renderStatusBar() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	keys := "f1 help · ctrl+c quit"
	room := width - runewidth.StringWidth(keys) - 4
	if room < 10 {
		room = 10
	}
	text := runewidth.Truncate(m.status.Text, room, "…")
	pad := width - runewidth.StringWidth(text) - runewidth.StringWidth(keys) - 2
	if pad < 1 {
		pad = 1
	}
	line := " " + colored(m.status.Color).Inherit(statusBarBgStyle).Render(text) +
		statusBarBgStyle.Render(strings.Repeat(" ", pad)) +
		hintStyle.Inherit(statusBarBgStyle).Render(keys)
	return separatorStyle.Render(strings.Repeat("─", width)) + "\n" +
		statusBarBgStyle.Width(width).Render(line)
}

func (m Model) renderHelp() string {
	help := helpBorderStyle.Render(m.renderMarkdown(helpText))
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, help)
	}
	return help
}

// ---------- markdown rendering ----------

func (m *Model) getMarkdownRenderer() *glamour.TermRenderer {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 8
	if wrapWidth > 76 {
		wrapWidth = 76
	}
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

func (m *Model) renderMarkdown(text string) string {
	r := m.getMarkdownRenderer()
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

