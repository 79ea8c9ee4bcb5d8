package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

func envelopeBytes(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Envelope{EventID: "e1", EventType: eventType, Payload: body})
	require.NoError(t, err)
	return data
}

func TestDispatch_DecodesAlert(t *testing.T) {
	data := envelopeBytes(t, "alert", execution.Notice{ID: "n1", Alert: execution.Alert{LineID: "a", LineNumber: 4}})

	var got execution.Notice
	err := dispatch(context.Background(), data, func(_ context.Context, env Envelope) error {
		n, err := DecodeAlert(env)
		got = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "a", got.LineID)
	assert.Equal(t, 4, got.LineNumber)
}

func TestDispatch_DecodesView(t *testing.T) {
	data := envelopeBytes(t, "phase", execution.View{Phase: execution.PhaseFinished, Elapsed: 31})

	err := dispatch(context.Background(), data, func(_ context.Context, env Envelope) error {
		v, err := DecodeView(env)
		require.NoError(t, err)
		assert.True(t, v.Finished())
		return nil
	})
	require.NoError(t, err)
}

func TestDispatch_Errors(t *testing.T) {
	err := dispatch(context.Background(), []byte("not json"), func(context.Context, Envelope) error { return nil })
	assert.ErrorContains(t, err, "unmarshal event envelope")

	boom := errors.New("boom")
	err = dispatch(context.Background(), envelopeBytes(t, "alert", nil), func(context.Context, Envelope) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = DecodeAlert(Envelope{EventType: "phase"})
	assert.Error(t, err)
	_, err = DecodeView(Envelope{EventType: "alert"})
	assert.Error(t, err)
}
