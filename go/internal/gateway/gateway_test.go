package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pyroassist/go/internal/execution"
	"github.com/mcdev12/pyroassist/go/internal/models"
	"github.com/mcdev12/pyroassist/go/internal/sheet"
)

type testEnv struct {
	server *httptest.Server
	clock  *clockwork.FakeClock
	runner *execution.Runner
	svc    *Service
}

func newTestEnv(t *testing.T, countdown int) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	app := sheet.NewApp(sheet.NewFileRepository(afero.NewMemMapFs(), "/sheet"))
	svc := NewService(DefaultConfig(), app, app, nil)

	fc := clockwork.NewFakeClock()
	runner := execution.NewRunner(ctx,
		execution.WithClock(fc),
		execution.WithCountdown(countdown),
		execution.WithSink(svc.Sink()),
	)
	svc.Attach(runner)
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		_ = runner.Close()
	})
	return &testEnv{server: server, clock: fc, runner: runner, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// tick fires one clock tick and waits until the runner has applied it.
func (e *testEnv) tick(t *testing.T, done func(execution.View) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))

	e.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		v, err := e.runner.View(context.Background())
		return err == nil && done(v)
	}, time.Second, time.Millisecond)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSheetRoutes(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": 20})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/lines", map[string]any{"minutes": 0, "seconds": 10.5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[models.FiringLine](t, resp)
	assert.Equal(t, 10.5, added.Time)

	resp = env.do(t, http.MethodGet, "/api/lines", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lines := decode[[]models.FiringLine](t, resp)
	require.Len(t, lines, 2)
	assert.Equal(t, added.ID, lines[0].ID)

	resp = env.do(t, http.MethodPut, "/api/lines/"+added.ID, map[string]any{"time": 30})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 30.0, decode[models.FiringLine](t, resp).Time)

	resp = env.do(t, http.MethodDelete, "/api/lines/"+added.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/lines/"+added.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/lines", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/lines", nil)
	assert.Empty(t, decode[[]models.FiringLine](t, resp))
}

func TestSheetRoutes_BadInput(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": -5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/lines", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/lines", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, decode[errorResponse](t, resp).Error)
}

func TestSettingsRoutes(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Settings](t, resp).CompensateDelay)

	resp = env.do(t, http.MethodPut, "/api/settings", `{"subtractOneSecond": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Settings](t, resp).CompensateDelay)

	resp = env.do(t, http.MethodPost, "/api/settings/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Settings](t, resp).CompensateDelay)
}

func TestRunRoutes(t *testing.T) {
	env := newTestEnv(t, 0)

	env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": 10})
	env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": 20})
	env.do(t, http.MethodPut, "/api/settings", map[string]any{"compensateDelay": true})

	resp := env.do(t, http.MethodGet, "/api/run/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseIdle, view.Phase)
	assert.Equal(t, 0, view.TotalLines, "nothing is loaded before the first start")

	resp = env.do(t, http.MethodPost, "/api/run/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseRunning, view.Phase)
	assert.Equal(t, 2, view.TotalLines)
	require.NotNil(t, view.Next)
	assert.Equal(t, 10.0, view.Next.Time)

	resp = env.do(t, http.MethodPost, "/api/run/toggle", nil)
	view = decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseIdle, view.Phase)

	resp = env.do(t, http.MethodPost, "/api/run/toggle", nil)
	view = decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseRunning, view.Phase)

	resp = env.do(t, http.MethodPost, "/api/run/pause", nil)
	assert.Equal(t, execution.PhaseIdle, decode[execution.View](t, resp).Phase)

	resp = env.do(t, http.MethodPost, "/api/run/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseIdle, view.Phase)
	assert.Equal(t, 0, view.Elapsed)

	resp = env.do(t, http.MethodGet, "/api/run/start", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunRoutes_ToggleLoadsSheet(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": 5})

	resp := env.do(t, http.MethodPost, "/api/run/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[execution.View](t, resp)
	assert.Equal(t, execution.PhaseRunning, view.Phase)
	assert.Equal(t, 1, view.TotalLines)

	resp = env.do(t, http.MethodPost, "/api/run/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, execution.PhaseIdle, decode[execution.View](t, resp).Phase)
}

func TestWebSocketStream(t *testing.T) {
	env := newTestEnv(t, 2)
	env.do(t, http.MethodPost, "/api/lines", map[string]any{"time": 0})

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/run?client=test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	first := read()
	assert.Equal(t, EventTypeState, first.Type)

	require.Eventually(t, func() bool {
		return env.svc.Stats().TotalConnections == 1
	}, time.Second, 5*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/run/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.tick(t, func(v execution.View) bool { return v.Countdown == 1 })
	env.tick(t, func(v execution.View) bool { return v.Phase == execution.PhaseRunning })

	var sawAlert bool
	for i := 0; i < 10 && !sawAlert; i++ {
		ev := read()
		if ev.Type == EventTypeAlert {
			sawAlert = true
			data, err := json.Marshal(ev.Data)
			require.NoError(t, err)
			var notice execution.Notice
			require.NoError(t, json.Unmarshal(data, &notice))
			assert.Equal(t, 0, notice.Elapsed)
			assert.Equal(t, 1, notice.LineNumber)
		}
	}
	assert.True(t, sawAlert, "expected an alert when the countdown ends on a line at zero")
}

func TestConnectionManager_SendToKeepsBroadcastOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := NewConnectionManager(DefaultConnectionConfig(), nil)
	go cm.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cm.UpgradeConnection(w, r, "test")
		if err != nil {
			return
		}
		// A reset landing between accepting the client and sending it the
		// current state must still reach it, ahead of that state.
		cm.Broadcast(newStateEvent(execution.View{Phase: execution.PhaseIdle, Elapsed: 0}))
		_ = cm.SendTo(r.Context(), conn, newStateEvent(execution.View{Phase: execution.PhaseIdle, Elapsed: 0, TotalLines: 3}))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() execution.View {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		require.Equal(t, EventTypeState, ev.Type)
		data, err := json.Marshal(ev.Data)
		require.NoError(t, err)
		var v execution.View
		require.NoError(t, json.Unmarshal(data, &v))
		return v
	}

	assert.Equal(t, 0, read().TotalLines)
	assert.Equal(t, 3, read().TotalLines)
}
