package execution

import (
	"context"
	"time"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// Source supplies the sheet a run starts from.
type Source interface {
	Sequence(ctx context.Context) ([]models.FiringLine, models.Settings, error)
}

// Notice is an alert as delivered to sinks.
type Notice struct {
	ID      string    `json:"id"`
	FiredAt time.Time `json:"fired_at"`
	Alert
}

// Sink receives every rendered view and every alert. Implementations must
// return quickly; the runner calls them from its only goroutine.
type Sink interface {
	Render(view View)
	Alert(notice Notice)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Render(View)  {}
func (NopSink) Alert(Notice) {}

// MetricsRecorder is what the runner reports to.
type MetricsRecorder interface {
	RecordCommand(command string)
	RecordTick(phase Phase)
	RecordAlert()
	RecordPhase(phase Phase)
	RecordTickerArmed(armed bool)
}

// NoOpMetricsRecorder is used when no metrics are wired.
type NoOpMetricsRecorder struct{}

func (NoOpMetricsRecorder) RecordCommand(string)   {}
func (NoOpMetricsRecorder) RecordTick(Phase)       {}
func (NoOpMetricsRecorder) RecordAlert()           {}
func (NoOpMetricsRecorder) RecordPhase(Phase)      {}
func (NoOpMetricsRecorder) RecordTickerArmed(bool) {}
