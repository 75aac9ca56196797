// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards updates without blocking
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the monitor program
type TUI struct {
	program  *tea.Program
	updates  chan tea.Msg
	quitChan chan struct{}
}

// New creates a TUI with the given title
func New(title string) *TUI {
	t := &TUI{
		updates:  make(chan tea.Msg, 16),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(title, t.quitChan), tea.WithAltScreen())
	return t
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	go func() {
		for msg := range t.updates {
			t.program.Send(msg)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Send queues an update, dropping it if the UI is behind
func (t *TUI) Send(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Stop ends the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// QuitChan is signalled when the user asks to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
