package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

const (
	linesFile    = "tirLines.json"
	settingsFile = "settings.json"
)

// FileRepository keeps the sheet as two JSON documents in a directory.
type FileRepository struct {
	fs  afero.Fs
	dir string
}

// NewFileRepository creates a FileRepository rooted at dir on fsys.
func NewFileRepository(fsys afero.Fs, dir string) *FileRepository {
	return &FileRepository{fs: fsys, dir: dir}
}

func (r *FileRepository) LoadLines(_ context.Context) ([]models.FiringLine, error) {
	var lines []models.FiringLine
	found, err := r.read(linesFile, &lines)
	if err != nil || !found {
		return []models.FiringLine{}, err
	}
	return lines, nil
}

func (r *FileRepository) SaveLines(_ context.Context, lines []models.FiringLine) error {
	if lines == nil {
		lines = []models.FiringLine{}
	}
	return r.write(linesFile, lines)
}

func (r *FileRepository) LoadSettings(_ context.Context) (models.Settings, error) {
	var settings models.Settings
	if _, err := r.read(settingsFile, &settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

func (r *FileRepository) SaveSettings(_ context.Context, settings models.Settings) error {
	return r.write(settingsFile, settings)
}

func (r *FileRepository) read(name string, v any) (bool, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return true, nil
}

// write replaces the document through a temporary file so a crash never
// leaves a half-written sheet behind.
func (r *FileRepository) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

var _ Repository = (*FileRepository)(nil)

// DefaultDir is the directory used when none is configured.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pyroassist")
	}
	return ".pyroassist"
}
