package models

import "sort"

// FiringLine is one scheduled ignition on a firing sheet.
type FiringLine struct {
	ID string `json:"id" yaml:"id"`
	// Time is the offset from sequence start, in seconds. It may be fractional.
	Time float64 `json:"time" yaml:"time"`
}

// SortLines sorts lines ascending by time in place. Lines sharing a time keep
// their relative order.
func SortLines(lines []FiringLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Time < lines[j].Time
	})
}

// SortedCopy returns a sorted copy of lines and leaves the input untouched.
func SortedCopy(lines []FiringLine) []FiringLine {
	out := make([]FiringLine, len(lines))
	copy(out, lines)
	SortLines(out)
	return out
}
