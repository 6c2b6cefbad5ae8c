package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apexion-ai/rectimer/internal/session"
)

// form field indices, in tab order
const (
	fieldPrefix = iota
	fieldStartHours
	fieldStartMinutes
	fieldStartSeconds
	fieldStartShortcut
	fieldStopHours
	fieldStopMinutes
	fieldStopSeconds
	fieldStopShortcut
	fieldCount
)

type sessionForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	locked bool
}

func newSessionForm(values session.Form) sessionForm {
	var f sessionForm
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		switch i {
		case fieldPrefix:
			ti.Placeholder = session.DefaultWindowPrefix
			ti.CharLimit = 128
			ti.Width = 24
		case fieldStartShortcut, fieldStopShortcut:
			ti.Placeholder = "ctrl+alt+b"
			ti.CharLimit = 64
			ti.Width = 16
		default:
			ti.Placeholder = "0"
			ti.CharLimit = 5
			ti.Width = 3
		}
		f.inputs[i] = ti
	}
	f.setValues(values)
	f.inputs[fieldPrefix].Focus()
	return f
}

func (f *sessionForm) setValues(v session.Form) {
	f.inputs[fieldPrefix].SetValue(v.WindowPrefix)
	f.inputs[fieldStartHours].SetValue(v.StartHours)
	f.inputs[fieldStartMinutes].SetValue(v.StartMinutes)
	f.inputs[fieldStartSeconds].SetValue(v.StartSeconds)
	f.inputs[fieldStartShortcut].SetValue(v.StartShortcut)
	f.inputs[fieldStopHours].SetValue(v.StopHours)
	f.inputs[fieldStopMinutes].SetValue(v.StopMinutes)
	f.inputs[fieldStopSeconds].SetValue(v.StopSeconds)
	f.inputs[fieldStopShortcut].SetValue(v.StopShortcut)
}

func (f sessionForm) values() session.Form {
	return session.Form{
		WindowPrefix:  f.inputs[fieldPrefix].Value(),
		StartHours:    f.inputs[fieldStartHours].Value(),
		StartMinutes:  f.inputs[fieldStartMinutes].Value(),
		StartSeconds:  f.inputs[fieldStartSeconds].Value(),
		StartShortcut: f.inputs[fieldStartShortcut].Value(),
		StopHours:     f.inputs[fieldStopHours].Value(),
		StopMinutes:   f.inputs[fieldStopMinutes].Value(),
		StopSeconds:   f.inputs[fieldStopSeconds].Value(),
		StopShortcut:  f.inputs[fieldStopShortcut].Value(),
	}
}

func (f *sessionForm) move(delta int) {
	if f.locked {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	f.inputs[f.focus].Focus()
	f.inputs[f.focus].CursorEnd()
}

// lock blurs every field while a session runs.
func (f *sessionForm) lock() {
	f.locked = true
	f.inputs[f.focus].Blur()
}

func (f *sessionForm) unlock() {
	f.locked = false
	f.inputs[f.focus].Focus()
}

func (f *sessionForm) update(msg tea.Msg) tea.Cmd {
	if f.locked {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f sessionForm) view() string {
	prefix := formLabel("Window", f.focus == fieldPrefix && !f.locked) + f.field(fieldPrefix)
	start := f.offsetRow("Start", fieldStartHours, fieldStartShortcut)
	stop := f.offsetRow("Stop", fieldStopHours, fieldStopShortcut)
	return lipgloss.JoinVertical(lipgloss.Left, prefix, "", start, stop)
}

func (f sessionForm) offsetRow(label string, first, shortcut int) string {
	focused := !f.locked && f.focus >= first && f.focus <= shortcut
	return formLabel(label, focused) +
		unitStyle.Render("H ") + f.field(first) + " " +
		unitStyle.Render("M ") + f.field(first+1) + " " +
		unitStyle.Render("S ") + f.field(first+2) + "  " +
		unitStyle.Render("key ") + f.field(shortcut)
}

func (f sessionForm) field(i int) string {
	style := fieldStyle
	if i == f.focus && !f.locked {
		style = fieldFocusedStyle
	}
	if f.locked {
		style = fieldLockedStyle
	}
	return style.Render(f.inputs[i].View())
}

func formLabel(label string, focused bool) string {
	if focused {
		return labelFocusedStyle.Render(label)
	}
	return labelStyle.Render(label)
}
