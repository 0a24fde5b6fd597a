// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards playback notifications
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI owns the terminal while playback runs
type TUI struct {
	program *tea.Program
	updates chan tea.Msg
}

// New creates the TUI for ctl. skip handles the next-track key.
func New(ctl Controller, skip func() error) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(ctl, skip), tea.WithAltScreen()),
		updates: make(chan tea.Msg, 32),
	}
}

// Run blocks until the user quits or ctx is done.
func (t *TUI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Send blocks until the program runs; playback goroutines never wait on it
	go func() {
		for {
			select {
			case msg := <-t.updates:
				t.program.Send(msg)
			case <-ctx.Done():
				t.program.Quit()
				return
			}
		}
	}()

	if _, err := t.program.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

// Notify shows a notification line in the event log.
func (t *TUI) Notify(line string) {
	t.update(EventMsg(line))
}

// SetControl shows the control endpoint in the header.
func (t *TUI) SetControl(addr string) {
	t.update(ControlMsg(addr))
}

func (t *TUI) update(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
		// Don't block if channel is full
	}
}
