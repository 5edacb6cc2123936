package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// feedbackTickMsg delivers a feedback expiry back into the update loop so the
// session is only touched from one goroutine.
type feedbackTickMsg struct {
	tick *scheduledTick
}

type scheduledTick struct {
	fire func()
	done bool
}

// tickScheduler schedules feedback expiry with tea.Tick. Commands queue up
// until the model drains them into its Update result.
type tickScheduler struct {
	pending []tea.Cmd
}

func (s *tickScheduler) schedule(d time.Duration, fire func()) func() bool {
	t := &scheduledTick{fire: fire}
	s.pending = append(s.pending, tea.Tick(d, func(time.Time) tea.Msg {
		return feedbackTickMsg{tick: t}
	}))
	return func() bool {
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

func (s *tickScheduler) drain() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	return tea.Batch(cmds...)
}

// run fires a tick unless it was stopped.
func (t *scheduledTick) run() {
	if t.done {
		return
	}
	t.done = true
	t.fire()
}
