package execution

// Category is the urgency shown to the operator.
type Category string

const (
	CategoryDefault Category = "default"
	CategoryReady   Category = "ready"
	CategoryWarning Category = "warning"
	CategoryDanger  Category = "danger"
)

// warningWindow is how many seconds before a line the display turns to warning.
const warningWindow = 5

// Theme colours.
const (
	ColorBackground = "#34495e"
	ColorSuccess    = "#2ecc71"
	ColorWarning    = "#f39c12"
	ColorDanger     = "#e74c3c"
)

// Color returns the background colour for the category.
func (c Category) Color() string {
	switch c {
	case CategoryReady:
		return ColorSuccess
	case CategoryWarning:
		return ColorWarning
	case CategoryDanger:
		return ColorDanger
	default:
		return ColorBackground
	}
}

// Classify maps a phase, the countdown and the time to the next line to a
// display category. timeToNext is nil when no line is left.
func Classify(phase Phase, countdown int, timeToNext *float64) Category {
	switch phase {
	case PhaseCountdown:
		if countdown == 1 {
			return CategoryDanger
		}
		return CategoryWarning
	case PhaseRunning:
		if timeToNext == nil {
			return CategoryDefault
		}
		ttn := *timeToNext
		switch {
		case ttn > warningWindow:
			return CategoryReady
		case ttn > 0:
			return CategoryWarning
		case ttn == 0:
			return CategoryDanger
		}
	}
	return CategoryDefault
}
