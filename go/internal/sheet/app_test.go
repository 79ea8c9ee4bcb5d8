package sheet

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

func newTestApp(t *testing.T) (*App, *FileRepository) {
	t.Helper()
	repo := NewFileRepository(afero.NewMemMapFs(), "/sheet")
	return NewApp(repo), repo
}

func times(lines []models.FiringLine) []float64 {
	out := make([]float64, len(lines))
	for i, l := range lines {
		out[i] = l.Time
	}
	return out
}

func TestApp_AddLineKeepsOrder(t *testing.T) {
	app, repo := newTestApp(t)
	ctx := context.Background()

	for _, s := range []float64{30, 10, 20} {
		_, err := app.AddLine(ctx, s)
		require.NoError(t, err)
	}

	lines, err := app.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, times(lines))

	stored, err := repo.LoadLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, times(stored), "the stored sheet is sorted too")
}

func TestApp_AddLineAssignsIDs(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	a, err := app.AddLine(ctx, 5)
	require.NoError(t, err)
	b, err := app.AddLine(ctx, 5)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	lines, err := app.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, a.ID, lines[0].ID, "ties keep insertion order")
}

func TestApp_AddLineMS(t *testing.T) {
	app, _ := newTestApp(t)

	line, err := app.AddLineMS(context.Background(), 1, 15.5)
	require.NoError(t, err)
	assert.Equal(t, 75.5, line.Time)

	_, err = app.AddLineMS(context.Background(), -1, 0)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestApp_AddLineRejectsInvalidTimes(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := app.AddLine(ctx, v)
		assert.ErrorIs(t, err, ErrInvalidTime)
	}

	lines, err := app.Lines(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestApp_UpdateLine(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	first, err := app.AddLine(ctx, 10)
	require.NoError(t, err)
	_, err = app.AddLine(ctx, 20)
	require.NoError(t, err)

	updated, err := app.UpdateLine(ctx, first.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Time)

	lines, err := app.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 25}, times(lines))
	assert.Equal(t, first.ID, lines[1].ID)

	_, err = app.UpdateLine(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)

	_, err = app.UpdateLine(ctx, first.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestApp_DeleteAndClear(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	a, err := app.AddLine(ctx, 1)
	require.NoError(t, err)
	_, err = app.AddLine(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, app.DeleteLine(ctx, a.ID))
	assert.ErrorIs(t, app.DeleteLine(ctx, a.ID), ErrLineNotFound)

	lines, err := app.Lines(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, times(lines))

	require.NoError(t, app.Clear(ctx))
	lines, err = app.Lines(ctx)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestApp_Settings(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	s, err := app.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, s.CompensateDelay)

	s, err = app.SetCompensateDelay(ctx, true)
	require.NoError(t, err)
	assert.True(t, s.CompensateDelay)

	s, err = app.ToggleCompensateDelay(ctx)
	require.NoError(t, err)
	assert.False(t, s.CompensateDelay)

	s, err = app.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, s.CompensateDelay)
}

func TestApp_Sequence(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	_, err := app.AddLine(ctx, 20)
	require.NoError(t, err)
	_, err = app.AddLine(ctx, 10)
	require.NoError(t, err)
	_, err = app.SetCompensateDelay(ctx, true)
	require.NoError(t, err)

	lines, settings, err := app.Sequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, times(lines))
	assert.True(t, settings.CompensateDelay)
}

type failingRepo struct{ FileRepository }

func (failingRepo) SaveLines(context.Context, []models.FiringLine) error {
	return errors.New("disk full")
}

func TestApp_SaveErrorIsWrapped(t *testing.T) {
	app := NewApp(&failingRepo{FileRepository: *NewFileRepository(afero.NewMemMapFs(), "/x")})

	_, err := app.AddLine(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save lines")
	assert.Contains(t, err.Error(), "disk full")
}
