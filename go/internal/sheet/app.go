// Package sheet is the firing sheet editor: the ordered list of firing lines
// and the delay compensation setting, with their storage.
package sheet

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// App handles firing sheet business logic
type App struct {
	mu    sync.Mutex
	repo  Repository
	newID func() string
}

// NewApp creates a new sheet App
func NewApp(repo Repository) *App {
	return &App{
		repo:  repo,
		newID: func() string { return uuid.New().String() },
	}
}

// Lines returns the sheet in firing order.
func (a *App) Lines(ctx context.Context) ([]models.FiringLine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// AddLine appends a line firing at seconds from sequence start.
func (a *App) AddLine(ctx context.Context, seconds float64) (*models.FiringLine, error) {
	if err := validateTime(seconds); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lines, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	line := models.FiringLine{ID: a.newID(), Time: seconds}
	lines = append(lines, line)
	if err := a.save(ctx, lines); err != nil {
		return nil, err
	}

	log.Info().Str("line_id", line.ID).Float64("time", line.Time).Msg("firing line added")
	return &line, nil
}

// AddLineMS appends a line entered as minutes and seconds.
func (a *App) AddLineMS(ctx context.Context, minutes int, seconds float64) (*models.FiringLine, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("validation failed: %w: negative minutes", ErrInvalidTime)
	}
	return a.AddLine(ctx, float64(minutes)*60+seconds)
}

// UpdateLine changes the time of an existing line.
func (a *App) UpdateLine(ctx context.Context, id string, seconds float64) (*models.FiringLine, error) {
	if err := validateTime(seconds); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lines, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	i := indexOf(lines, id)
	if i < 0 {
		return nil, fmt.Errorf("line %s: %w", id, ErrLineNotFound)
	}
	lines[i].Time = seconds
	updated := lines[i]

	if err := a.save(ctx, lines); err != nil {
		return nil, err
	}

	log.Info().Str("line_id", id).Float64("time", seconds).Msg("firing line updated")
	return &updated, nil
}

// DeleteLine removes a line.
func (a *App) DeleteLine(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines, err := a.load(ctx)
	if err != nil {
		return err
	}

	i := indexOf(lines, id)
	if i < 0 {
		return fmt.Errorf("line %s: %w", id, ErrLineNotFound)
	}
	lines = append(lines[:i], lines[i+1:]...)

	if err := a.save(ctx, lines); err != nil {
		return err
	}

	log.Info().Str("line_id", id).Msg("firing line deleted")
	return nil
}

// Clear removes every line.
func (a *App) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.save(ctx, []models.FiringLine{}); err != nil {
		return err
	}
	log.Info().Msg("firing sheet cleared")
	return nil
}

// Settings returns the stored settings.
func (a *App) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := a.repo.LoadSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// SetCompensateDelay stores the delay compensation flag.
func (a *App) SetCompensateDelay(ctx context.Context, enabled bool) (models.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.storeSettings(ctx, models.Settings{CompensateDelay: enabled})
}

// ToggleCompensateDelay flips the delay compensation flag.
func (a *App) ToggleCompensateDelay(ctx context.Context) (models.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.repo.LoadSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	current.CompensateDelay = !current.CompensateDelay
	return a.storeSettings(ctx, current)
}

// Sequence returns a snapshot of the sheet and its settings for a run.
func (a *App) Sequence(ctx context.Context) ([]models.FiringLine, models.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines, err := a.load(ctx)
	if err != nil {
		return nil, models.Settings{}, err
	}
	settings, err := a.repo.LoadSettings(ctx)
	if err != nil {
		return nil, models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return lines, settings, nil
}

func (a *App) storeSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if err := a.repo.SaveSettings(ctx, settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	log.Info().Bool("compensate_delay", settings.CompensateDelay).Msg("settings saved")
	return settings, nil
}

func (a *App) load(ctx context.Context) ([]models.FiringLine, error) {
	lines, err := a.repo.LoadLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines: %w", err)
	}
	if lines == nil {
		lines = []models.FiringLine{}
	}
	models.SortLines(lines)
	return lines, nil
}

// save keeps the stored sheet sorted, as every reader expects.
func (a *App) save(ctx context.Context, lines []models.FiringLine) error {
	models.SortLines(lines)
	if err := a.repo.SaveLines(ctx, lines); err != nil {
		return fmt.Errorf("failed to save lines: %w", err)
	}
	return nil
}

func validateTime(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: not a number", ErrInvalidTime)
	}
	if seconds < 0 {
		return fmt.Errorf("%w: %v is negative", ErrInvalidTime, seconds)
	}
	return nil
}

func indexOf(lines []models.FiringLine, id string) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
