// Package execution runs a firing sheet against a one-second clock.
//
// Machine is the pure state machine: it never blocks, never fails and knows
// nothing about clocks. Runner owns a Machine together with the ticker that
// drives it and serialises operator commands and ticks on one goroutine.
package execution

import "github.com/mcdev12/pyroassist/go/internal/timeline"

// DefaultCountdown is the length of the pre-start countdown in seconds.
const DefaultCountdown = 5

// Phase is the coarse execution mode.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	// PhaseFinished is never stored. Views report it while running with no
	// line left to fire.
	PhaseFinished Phase = "finished"
)

// Armed reports whether the tick source must run in this phase.
func (p Phase) Armed() bool {
	return p == PhaseCountdown || p == PhaseRunning
}

// State is the mutable execution state.
type State struct {
	Phase     Phase `json:"phase"`
	Countdown int   `json:"countdown"`
	// Elapsed counts running seconds since the run began.
	Elapsed int `json:"elapsed"`
	// LastAlertedID is the line the last alert fired for, empty when none.
	LastAlertedID string `json:"last_alerted_id,omitempty"`
}

// Paused reports whether the state is an interrupted run.
func (s State) Paused() bool {
	return s.Phase == PhaseIdle && s.Elapsed > 0
}

// Alert is raised once when a line becomes due.
type Alert struct {
	LineID     string  `json:"line_id"`
	LineNumber int     `json:"line_number"`
	Time       float64 `json:"time"`
	Elapsed    int     `json:"elapsed"`
}

// Step describes the outcome of one input.
type Step struct {
	From  Phase
	To    Phase
	Alert *Alert
}

// Machine is the execution state machine over an adjusted schedule.
type Machine struct {
	lines     []timeline.AdjustedLine
	countdown int
	state     State
}

// NewMachine returns an idle machine. A countdown of zero or less starts
// running straight away.
func NewMachine(lines []timeline.AdjustedLine, countdown int) *Machine {
	return &Machine{
		lines:     lines,
		countdown: countdown,
		state:     State{Phase: PhaseIdle},
	}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state
}

// Lines returns the schedule the machine runs.
func (m *Machine) Lines() []timeline.AdjustedLine {
	return m.lines
}

// Load replaces the schedule. Callers only do this on a fresh machine.
func (m *Machine) Load(lines []timeline.AdjustedLine) {
	m.lines = lines
}

// Start arms a countdown from a fresh state or resumes a paused run.
func (m *Machine) Start() Step {
	from := m.state.Phase
	if from != PhaseIdle {
		return m.step(from)
	}

	if m.state.Elapsed == 0 {
		m.state.LastAlertedID = ""
		m.state.Phase = PhaseCountdown
		m.state.Countdown = m.countdown
		if m.countdown <= 0 {
			m.state.Phase = PhaseRunning
			m.state.Countdown = 0
		}
	} else {
		m.state.Phase = PhaseRunning
	}
	return m.step(from)
}

// Pause stops a countdown or a run and keeps the elapsed time.
func (m *Machine) Pause() Step {
	from := m.state.Phase
	if from.Armed() {
		m.state.Phase = PhaseIdle
		m.state.Countdown = 0
	}
	return m.step(from)
}

// Reset returns to a fresh idle state.
func (m *Machine) Reset() Step {
	from := m.state.Phase
	m.state = State{Phase: PhaseIdle}
	return m.step(from)
}

// Tick advances the machine by one second. Ticks while idle are ignored.
func (m *Machine) Tick() Step {
	from := m.state.Phase
	switch from {
	case PhaseCountdown:
		if m.state.Countdown > 0 {
			m.state.Countdown--
		}
		if m.state.Countdown == 0 {
			m.state.Phase = PhaseRunning
		}
	case PhaseRunning:
		m.state.Elapsed++
	}
	return m.step(from)
}

// Next returns the first line, in schedule order, not yet behind elapsed.
func (m *Machine) Next() (timeline.AdjustedLine, bool) {
	elapsed := float64(m.state.Elapsed)
	for _, l := range m.lines {
		if l.Time >= elapsed {
			return l, true
		}
	}
	return timeline.AdjustedLine{}, false
}

func (m *Machine) step(from Phase) Step {
	return Step{From: from, To: m.state.Phase, Alert: m.checkAlert()}
}

// checkAlert fires at most once per line: the next line is due exactly now
// and has not been alerted yet.
func (m *Machine) checkAlert() *Alert {
	if m.state.Phase != PhaseRunning {
		return nil
	}
	next, ok := m.Next()
	if !ok || next.Time != float64(m.state.Elapsed) || next.ID == m.state.LastAlertedID {
		return nil
	}

	m.state.LastAlertedID = next.ID
	return &Alert{
		LineID:     next.ID,
		LineNumber: next.LineNumber,
		Time:       next.Time,
		Elapsed:    m.state.Elapsed,
	}
}
