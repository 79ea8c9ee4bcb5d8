package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

func times(lines []AdjustedLine) []float64 {
	out := make([]float64, len(lines))
	for i, l := range lines {
		out[i] = l.Time
	}
	return out
}

func ids(lines []AdjustedLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.ID
	}
	return out
}

func TestAdjust_CompensatesByIndex(t *testing.T) {
	lines := []models.FiringLine{
		{ID: "a", Time: 10},
		{ID: "b", Time: 20},
		{ID: "c", Time: 30},
	}

	got := Adjust(lines, models.Settings{CompensateDelay: true})

	assert.Equal(t, []float64{10, 19, 28}, times(got))
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, []float64{10, 20, 30}, []float64{got[0].NominalTime, got[1].NominalTime, got[2].NominalTime})
	assert.Equal(t, 3, got[2].LineNumber)
}

func TestAdjust_DisabledKeepsTimesButSorts(t *testing.T) {
	lines := []models.FiringLine{
		{ID: "c", Time: 30},
		{ID: "a", Time: 10},
		{ID: "b", Time: 20.5},
	}

	got := Adjust(lines, models.Settings{})

	assert.Equal(t, []float64{10, 20.5, 30}, times(got))
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestAdjust_Empty(t *testing.T) {
	got := Adjust(nil, models.Settings{CompensateDelay: true})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdjust_ClampsAtZero(t *testing.T) {
	lines := []models.FiringLine{
		{ID: "a", Time: 0},
		{ID: "b", Time: 0.5},
		{ID: "c", Time: 1},
		{ID: "d", Time: 2},
	}

	got := Adjust(lines, models.Settings{CompensateDelay: true})

	assert.Equal(t, []float64{0, 0, 0, 0}, times(got))
}

// Tied nominal times keep input order and each still gets its own index, so
// the tie turns into a strictly decreasing pair.
func TestAdjust_TieBreakKeepsInsertionOrder(t *testing.T) {
	lines := []models.FiringLine{
		{ID: "late", Time: 40},
		{ID: "first", Time: 10},
		{ID: "second", Time: 10},
		{ID: "third", Time: 10},
	}

	got := Adjust(lines, models.Settings{CompensateDelay: true})

	assert.Equal(t, []string{"first", "second", "third", "late"}, ids(got))
	assert.Equal(t, []float64{10, 9, 8, 37}, times(got))
}

func TestAdjust_DoesNotMutateInput(t *testing.T) {
	lines := []models.FiringLine{{ID: "b", Time: 20}, {ID: "a", Time: 10}}

	_ = Adjust(lines, models.Settings{CompensateDelay: true})

	assert.Equal(t, []models.FiringLine{{ID: "b", Time: 20}, {ID: "a", Time: 10}}, lines)
}

func TestAdjust_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(12)
		lines := make([]models.FiringLine, n)
		for i := range lines {
			lines[i] = models.FiringLine{
				ID:   string(rune('a' + i)),
				Time: float64(rng.Intn(30)),
			}
		}

		for _, compensate := range []bool{false, true} {
			settings := models.Settings{CompensateDelay: compensate}
			first := Adjust(lines, settings)
			second := Adjust(lines, settings)

			require.Equal(t, first, second, "adjust must be deterministic")
			require.Len(t, first, n)

			for i, l := range first {
				require.GreaterOrEqual(t, l.Time, 0.0, "adjusted time must not be negative")
				require.LessOrEqual(t, l.Time, l.NominalTime)
				if i > 0 {
					require.GreaterOrEqual(t, l.NominalTime, first[i-1].NominalTime, "nominal order must be kept")
				}
				if !compensate {
					require.Equal(t, l.NominalTime, l.Time)
				}
			}

			// Feeding the sorted sheet back in gives the same schedule.
			resorted := make([]models.FiringLine, len(first))
			for i, l := range first {
				resorted[i] = models.FiringLine{ID: l.ID, Time: l.NominalTime}
			}
			require.Equal(t, first, Adjust(resorted, settings))
		}
	}
}

func TestLast(t *testing.T) {
	assert.Equal(t, 0.0, Last(nil))
	assert.Equal(t, 28.0, Last([]AdjustedLine{{Time: 10}, {Time: 28}, {Time: 19}}))
}
