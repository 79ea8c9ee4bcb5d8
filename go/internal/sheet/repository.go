package sheet

import (
	"context"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// Repository defines what the app layer needs from storage. An empty store
// yields no lines and zero settings, never an error.
type Repository interface {
	LoadLines(ctx context.Context) ([]models.FiringLine, error)
	SaveLines(ctx context.Context, lines []models.FiringLine) error
	LoadSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
}
