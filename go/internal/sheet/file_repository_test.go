package sheet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

func TestFileRepository_EmptyStore(t *testing.T) {
	repo := NewFileRepository(afero.NewMemMapFs(), "/data")
	ctx := context.Background()

	lines, err := repo.LoadLines(ctx)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Settings{}, settings)
}

func TestFileRepository_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	repo := NewFileRepository(fs, "/data")
	ctx := context.Background()

	want := []models.FiringLine{{ID: "1700000000000", Time: 12.5}, {ID: "b", Time: 30}}
	require.NoError(t, repo.SaveLines(ctx, want))
	require.NoError(t, repo.SaveSettings(ctx, models.Settings{CompensateDelay: true}))

	got, err := repo.LoadLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.CompensateDelay)

	exists, err := afero.Exists(fs, filepath.Join("/data", linesFile+".tmp"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileRepository_ReadsLegacySettings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/settings.json", []byte(`{"subtractOneSecond":true}`), 0o644))

	settings, err := NewFileRepository(fs, "/data").LoadSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.CompensateDelay)
}

func TestFileRepository_CorruptDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/tirLines.json", []byte(`{not json`), 0o644))

	_, err := NewFileRepository(fs, "/data").LoadLines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), linesFile)
}
