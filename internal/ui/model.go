// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Shows backend status and maps keys to playback commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/sink"
	"github.com/Resonate-Protocol/resonate-engine/pkg/backend"
)

const (
	refreshInterval = 500 * time.Millisecond
	volumeStep      = audio.MaxVolume / 20
	maxEvents       = 5
)

// Controller is the part of the backend the TUI drives.
type Controller interface {
	Pause() error
	Resume() error
	Stop() error
	SetCurrentVolume(volume int)
	SetLoopMode(n int)
	Status() backend.Status
}

// Model represents the TUI state
type Model struct {
	ctl  Controller
	skip func() error

	status   backend.Status
	events   []string
	lastErr  string
	control  string
	quitting bool

	width  int
	height int
}

// statusMsg carries a fresh backend snapshot
type statusMsg backend.Status

// EventMsg is a notification line shown in the event log
type EventMsg string

// ControlMsg describes the control endpoint, shown in the header
type ControlMsg string

type tickMsg time.Time

type errMsg struct{ err error }

// NewModel creates a TUI model. skip is called for the next-track key and
// may be nil.
func NewModel(ctl Controller, skip func() error) Model {
	return Model{ctl: ctl, skip: skip}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return statusMsg(m.ctl.Status())
	}
}

// run executes a playback command and refreshes the status afterwards
func (m Model) run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return statusMsg(m.ctl.Status())
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())
	case statusMsg:
		m.status = backend.Status(msg)
	case EventMsg:
		m.events = append(m.events, string(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, m.refresh()
	case ControlMsg:
		m.control = string(msg)
	case errMsg:
		m.lastErr = msg.err.Error()
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastErr = ""
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		if m.status.State == sink.Paused {
			return m, m.run(m.ctl.Resume)
		}
		return m, m.run(m.ctl.Pause)
	case "s":
		return m, m.run(m.ctl.Stop)
	case "n":
		if m.skip != nil {
			return m, m.run(m.skip)
		}
	case "+", "=", "up":
		v := min(m.status.Volume+volumeStep, audio.MaxVolume)
		m.status.Volume = v
		return m, m.run(func() error { m.ctl.SetCurrentVolume(v); return nil })
	case "-", "down":
		v := max(m.status.Volume-volumeStep, 0)
		m.status.Volume = v
		return m, m.run(func() error { m.ctl.SetCurrentVolume(v); return nil })
	case "l":
		n := -1
		if m.status.LoopMode != 0 {
			n = 0
		}
		m.status.LoopMode = n
		return m, m.run(func() error { m.ctl.SetLoopMode(n); return nil })
	}

	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Resonate Play"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-9s", name+":")))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	st := m.status
	field("Sink", fmt.Sprintf("%s (%s)", st.Sink, st.State))
	if m.control != "" {
		field("Control", m.control)
	}
	if st.Resource == "" {
		field("Playing", "nothing")
	} else {
		field("Playing", describe(st))
		field("Position", formatPosition(st))
	}
	if st.Next != "" {
		field("Next", st.Next)
	}
	field("Volume", fmt.Sprintf("[%s] %d%%", renderBar(st.Volume, audio.MaxVolume, 10), percent(st.Volume)))
	field("Loop", loopName(st.LoopMode))

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, ev := range m.events {
			b.WriteString(eventStyle.Render("  " + truncate(ev, 70)))
			b.WriteString("\n")
		}
	}
	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Pause/Resume  n:Next  +/-:Volume  l:Loop  s:Stop  q:Quit"))
	return b.String()
}

func describe(st backend.Status) string {
	md := st.Metadata
	switch {
	case md.Artist != "" && md.Title != "":
		return truncate(md.Artist+" - "+md.Title, 60)
	case md.Title != "":
		return truncate(md.Title, 60)
	}
	return truncate(st.Resource, 60)
}

func formatPosition(st backend.Status) string {
	if st.TicksPerSecond <= 0 {
		return "-"
	}
	pos := time.Duration(st.Position) * time.Second / time.Duration(st.TicksPerSecond)
	if st.Length < 0 {
		return pos.Round(time.Second).String()
	}
	length := time.Duration(st.Length) * time.Second / time.Duration(st.TicksPerSecond)
	return fmt.Sprintf("%s / %s", pos.Round(time.Second), length.Round(time.Second))
}

func percent(volume int) int {
	return (volume*100 + audio.MaxVolume/2) / audio.MaxVolume
}

func loopName(n int) string {
	switch {
	case n < 0:
		return "forever"
	case n == 0:
		return "off"
	}
	return fmt.Sprintf("%d more", n)
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
