// Package notify holds the alert sinks that are not part of the gateway.
package notify

import (
	"github.com/rs/zerolog"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

// LogSink writes alerts at info level and views at debug level.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "run").Logger()}
}

func (s *LogSink) Render(view execution.View) {
	ev := s.logger.Debug().
		Str("phase", string(view.Phase)).
		Str("elapsed", view.ElapsedLabel).
		Str("display", string(view.Display))
	if view.Next != nil {
		ev = ev.Int("next_line", view.Next.LineNumber).Float64("time_to_next", *view.TimeToNext)
	}
	ev.Msg("view")
}

func (s *LogSink) Alert(notice execution.Notice) {
	s.logger.Info().
		Str("alert_id", notice.ID).
		Str("line_id", notice.LineID).
		Int("line_number", notice.LineNumber).
		Str("elapsed", execution.FormatClock(notice.Elapsed)).
		Msg("FIRE")
}

// Fanout forwards to every sink in order.
type Fanout []execution.Sink

func (f Fanout) Render(view execution.View) {
	for _, s := range f {
		s.Render(view)
	}
}

func (f Fanout) Alert(notice execution.Notice) {
	for _, s := range f {
		s.Alert(notice)
	}
}

var (
	_ execution.Sink = (*LogSink)(nil)
	_ execution.Sink = Fanout(nil)
)
