package models

import "encoding/json"

// Settings holds the operator preferences that affect execution.
type Settings struct {
	// CompensateDelay subtracts one second per preceding line to absorb
	// cumulative ignition delay.
	CompensateDelay bool `json:"compensateDelay" yaml:"compensate_delay"`
}

// UnmarshalJSON also accepts the legacy "subtractOneSecond" key.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		CompensateDelay   *bool `json:"compensateDelay"`
		SubtractOneSecond *bool `json:"subtractOneSecond"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.CompensateDelay != nil:
		s.CompensateDelay = *raw.CompensateDelay
	case raw.SubtractOneSecond != nil:
		s.CompensateDelay = *raw.SubtractOneSecond
	default:
		s.CompensateDelay = false
	}
	return nil
}
