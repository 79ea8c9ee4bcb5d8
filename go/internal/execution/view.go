package execution

import (
	"fmt"

	"github.com/mcdev12/pyroassist/go/internal/timeline"
)

// View is the derived execution state handed to the presentation layer.
type View struct {
	Phase        Phase                  `json:"phase"`
	Countdown    int                    `json:"countdown,omitempty"`
	Elapsed      int                    `json:"elapsed"`
	ElapsedLabel string                 `json:"elapsed_label"`
	Paused       bool                   `json:"paused"`
	Next         *timeline.AdjustedLine `json:"next,omitempty"`
	TimeToNext   *float64               `json:"time_to_next,omitempty"`
	Display      Category               `json:"display"`
	Color        string                 `json:"color"`
	TotalLines   int                    `json:"total_lines"`
}

// Finished reports whether every line is behind the run.
func (v View) Finished() bool {
	return v.Phase == PhaseFinished
}

// View derives the presentation state from the current state.
func (m *Machine) View() View {
	s := m.state
	v := View{
		Phase:        s.Phase,
		Elapsed:      s.Elapsed,
		ElapsedLabel: FormatClock(s.Elapsed),
		Paused:       s.Paused(),
		TotalLines:   len(m.lines),
	}
	if s.Phase == PhaseCountdown {
		v.Countdown = s.Countdown
	}

	if next, ok := m.Next(); ok {
		ttn := next.Time - float64(s.Elapsed)
		v.Next = &next
		v.TimeToNext = &ttn
	} else if s.Phase == PhaseRunning {
		v.Phase = PhaseFinished
	}

	v.Display = Classify(v.Phase, v.Countdown, v.TimeToNext)
	v.Color = v.Display.Color()
	return v
}

// FormatClock renders seconds as "1m 05s".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}
