package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

// RunController is the part of the execution runner the gateway drives.
type RunController interface {
	View(ctx context.Context) (execution.View, error)
	StartFrom(ctx context.Context, src execution.Source) (execution.View, error)
	ToggleFrom(ctx context.Context, src execution.Source) (execution.View, error)
	Pause(ctx context.Context) (execution.View, error)
	Reset(ctx context.Context) (execution.View, error)
}

// RunHandler handles HTTP requests that read or command the run
type RunHandler struct {
	runner RunController
	source execution.Source
}

// NewRunHandler creates a new run handler. source supplies the sheet when a
// fresh run starts.
func NewRunHandler(runner RunController, source execution.Source) *RunHandler {
	return &RunHandler{runner: runner, source: source}
}

// HandleState handles GET /api/run/state
func (h *RunHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.runner.View(r.Context()))
}

// HandleStart handles POST /api/run/start
func (h *RunHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.runner.StartFrom(r.Context(), h.source))
}

// HandlePause handles POST /api/run/pause
func (h *RunHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.runner.Pause(r.Context()))
}

// HandleReset handles POST /api/run/reset
func (h *RunHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.runner.Reset(r.Context()))
}

// HandleToggle handles POST /api/run/toggle, the single start/pause button.
func (h *RunHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.runner.ToggleFrom(r.Context(), h.source))
}

func (h *RunHandler) respond(w http.ResponseWriter, r *http.Request) func(execution.View, error) {
	return func(view execution.View, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// RegisterRoutes registers run routes
func (h *RunHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/run/state", h.HandleState)
	mux.HandleFunc("POST /api/run/start", h.HandleStart)
	mux.HandleFunc("POST /api/run/pause", h.HandlePause)
	mux.HandleFunc("POST /api/run/reset", h.HandleReset)
	mux.HandleFunc("POST /api/run/toggle", h.HandleToggle)
}
