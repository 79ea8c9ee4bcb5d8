package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedCopy_StableOnTies(t *testing.T) {
	in := []FiringLine{
		{ID: "c", Time: 30},
		{ID: "a", Time: 10},
		{ID: "b1", Time: 20},
		{ID: "b2", Time: 20},
	}

	out := SortedCopy(in)

	ids := make([]string, len(out))
	for i, l := range out {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
	assert.Equal(t, "c", in[0].ID, "input must not be reordered")
}

func TestSettings_UnmarshalLegacyKey(t *testing.T) {
	var s Settings
	require.NoError(t, json.Unmarshal([]byte(`{"subtractOneSecond":true}`), &s))
	assert.True(t, s.CompensateDelay)

	require.NoError(t, json.Unmarshal([]byte(`{"compensateDelay":false,"subtractOneSecond":true}`), &s))
	assert.False(t, s.CompensateDelay, "new key wins over legacy key")

	require.NoError(t, json.Unmarshal([]byte(`{}`), &s))
	assert.False(t, s.CompensateDelay)
}

func TestSettings_MarshalUsesNewKey(t *testing.T) {
	data, err := json.Marshal(Settings{CompensateDelay: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"compensateDelay":true}`, string(data))
}
