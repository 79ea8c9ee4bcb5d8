package main

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/mcdev12/pyroassist/go/internal/execution"
	"github.com/mcdev12/pyroassist/go/internal/timeline"
)

// terminal renders a run as a progress bar over the schedule and rings the
// bell on every alert.
type terminal struct {
	progress *mpb.Progress
	total    int64
	bell     io.Writer

	// bar is only touched from the runner goroutine once the run starts.
	bar *mpb.Bar

	// mu guards view, which decorators read from the render goroutine. It is
	// never held across bar calls.
	mu   sync.Mutex
	view execution.View
}

func newTerminal(out io.Writer, total int64) *terminal {
	t := &terminal{
		progress: mpb.New(mpb.WithOutput(out), mpb.WithWidth(64)),
		total:    total,
		bell:     out,
	}
	t.bar = t.newBar()
	return t
}

func (t *terminal) newBar() *mpb.Bar {
	return t.progress.New(t.total,
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name("run", decor.WC{W: 4, C: decor.DindentRight}),
			decor.Any(func(decor.Statistics) string { return clockLabel(t.current()) }, decor.WC{W: 7}),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string { return statusLabel(t.current()) }),
		),
	)
}

func (t *terminal) current() execution.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

func (t *terminal) Render(view execution.View) {
	t.mu.Lock()
	t.view = view
	t.mu.Unlock()

	// A completed bar cannot move back, so a reset run gets a fresh one.
	if view.Phase == execution.PhaseIdle && view.Elapsed == 0 && t.bar.Completed() {
		t.bar.Abort(true)
		t.bar = t.newBar()
	}
	t.bar.SetCurrent(barCurrent(view, t.total))
}

func (t *terminal) Alert(notice execution.Notice) {
	fmt.Fprint(t.bell, "\a")
	log.Info().
		Int("line_number", notice.LineNumber).
		Str("elapsed", execution.FormatClock(notice.Elapsed)).
		Msg("FIRE")
}

// Wait stops the bar and waits for the last frame to be drawn.
func (t *terminal) Wait() {
	t.bar.Abort(false)
	t.progress.Wait()
}

// barTotal is one past the last effective second, so the bar fills when the
// run finishes.
func barTotal(schedule []timeline.AdjustedLine) int64 {
	return int64(math.Ceil(timeline.Last(schedule))) + 1
}

func barCurrent(view execution.View, total int64) int64 {
	if view.Finished() {
		return total
	}
	cur := int64(view.Elapsed)
	if cur >= total {
		cur = total - 1
	}
	return cur
}

func clockLabel(view execution.View) string {
	if view.Phase == execution.PhaseCountdown {
		return fmt.Sprintf("T-%d", view.Countdown)
	}
	return view.ElapsedLabel
}

func statusLabel(view execution.View) string {
	var status string
	switch {
	case view.Finished():
		status = "finished"
	case view.Next == nil:
		status = "no lines"
	default:
		status = fmt.Sprintf("next #%d in %.1fs", view.Next.LineNumber, *view.TimeToNext)
	}
	if view.Paused {
		return "paused, " + status
	}
	return status
}

var _ execution.Sink = (*terminal)(nil)
