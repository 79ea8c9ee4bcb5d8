// Package timeline turns a firing sheet into the effective schedule used
// during execution.
package timeline

import (
	"math"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// AdjustedLine is a firing line with its effective time.
type AdjustedLine struct {
	ID string `json:"id"`
	// Time is the effective offset used by the engine.
	Time float64 `json:"time"`
	// NominalTime is the offset as written on the sheet.
	NominalTime float64 `json:"nominal_time"`
	// LineNumber is the 1-based position in the sorted sheet.
	LineNumber int `json:"line_number"`
}

// Adjust returns the effective schedule for lines.
//
// Lines are stable-sorted by nominal time first, so lines sharing a time keep
// the order they were given in. With CompensateDelay set, the line at sorted
// position i is moved i seconds earlier, clamped at zero. The output keeps the
// sorted nominal order even when that subtraction makes tied lines decrease.
func Adjust(lines []models.FiringLine, settings models.Settings) []AdjustedLine {
	sorted := models.SortedCopy(lines)

	out := make([]AdjustedLine, len(sorted))
	for i, l := range sorted {
		t := l.Time
		if settings.CompensateDelay {
			t = math.Max(0, t-float64(i))
		}
		out[i] = AdjustedLine{
			ID:          l.ID,
			Time:        t,
			NominalTime: l.Time,
			LineNumber:  i + 1,
		}
	}
	return out
}

// Last returns the largest effective time in lines, or 0 when empty.
func Last(lines []AdjustedLine) float64 {
	var last float64
	for _, l := range lines {
		if l.Time > last {
			last = l.Time
		}
	}
	return last
}
