package sheet

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// Document is a firing sheet file. YAML and JSON are both accepted:
//
//	compensate_delay: true
//	lines:
//	  - time: 10
//	  - minutes: 1
//	    seconds: 15.5
type Document struct {
	CompensateDelay bool           `yaml:"compensate_delay"`
	Lines           []DocumentLine `yaml:"lines"`
}

// DocumentLine is one line of a Document. Time wins over minutes/seconds.
type DocumentLine struct {
	ID      string   `yaml:"id"`
	Time    *float64 `yaml:"time"`
	Minutes int      `yaml:"minutes"`
	Seconds float64  `yaml:"seconds"`
}

// Snapshot is a fixed sheet. It serves as an execution source.
type Snapshot struct {
	Lines    []models.FiringLine
	Settings models.Settings
}

// Sequence returns a sorted copy of the snapshot.
func (s Snapshot) Sequence(context.Context) ([]models.FiringLine, models.Settings, error) {
	return models.SortedCopy(s.Lines), s.Settings, nil
}

// ParseDocument decodes and validates a sheet file. Lines without an id get
// a fresh one.
func ParseDocument(data []byte) (Snapshot, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse sheet: %w", err)
	}

	lines := make([]models.FiringLine, 0, len(doc.Lines))
	seen := make(map[string]bool, len(doc.Lines))
	for i, l := range doc.Lines {
		t := float64(l.Minutes)*60 + l.Seconds
		if l.Time != nil {
			t = *l.Time
		}
		if err := validateTime(t); err != nil {
			return Snapshot{}, fmt.Errorf("line %d: %w", i+1, err)
		}

		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		if seen[id] {
			return Snapshot{}, fmt.Errorf("line %d: duplicate id %q", i+1, id)
		}
		seen[id] = true
		lines = append(lines, models.FiringLine{ID: id, Time: t})
	}
	models.SortLines(lines)

	return Snapshot{
		Lines:    lines,
		Settings: models.Settings{CompensateDelay: doc.CompensateDelay},
	}, nil
}

// ReadDocument reads and parses a sheet file.
func ReadDocument(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read sheet file: %w", err)
	}
	return ParseDocument(data)
}
