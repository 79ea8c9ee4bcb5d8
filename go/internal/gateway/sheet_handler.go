package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/pyroassist/go/internal/models"
)

// SheetEditor is the firing sheet as the gateway edits it.
type SheetEditor interface {
	Lines(ctx context.Context) ([]models.FiringLine, error)
	AddLine(ctx context.Context, seconds float64) (*models.FiringLine, error)
	AddLineMS(ctx context.Context, minutes int, seconds float64) (*models.FiringLine, error)
	UpdateLine(ctx context.Context, id string, seconds float64) (*models.FiringLine, error)
	DeleteLine(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Settings(ctx context.Context) (models.Settings, error)
	SetCompensateDelay(ctx context.Context, enabled bool) (models.Settings, error)
	ToggleCompensateDelay(ctx context.Context) (models.Settings, error)
}

// LineRequest carries a firing time either in seconds or as minutes and
// seconds.
type LineRequest struct {
	Time    *float64 `json:"time,omitempty"`
	Minutes *int     `json:"minutes,omitempty"`
	Seconds *float64 `json:"seconds,omitempty"`
}

// SheetHandler handles HTTP requests that edit the firing sheet
type SheetHandler struct {
	sheet SheetEditor
}

// NewSheetHandler creates a new sheet handler
func NewSheetHandler(sheet SheetEditor) *SheetHandler {
	return &SheetHandler{sheet: sheet}
}

// HandleListLines handles GET /api/lines
func (h *SheetHandler) HandleListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.sheet.Lines(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// HandleAddLine handles POST /api/lines
func (h *SheetHandler) HandleAddLine(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLineRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var line *models.FiringLine
	if req.Time != nil {
		line, err = h.sheet.AddLine(r.Context(), *req.Time)
	} else {
		line, err = h.sheet.AddLineMS(r.Context(), deref(req.Minutes), derefFloat(req.Seconds))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// HandleUpdateLine handles PUT /api/lines/{id}
func (h *SheetHandler) HandleUpdateLine(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLineRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	seconds := float64(deref(req.Minutes))*60 + derefFloat(req.Seconds)
	if req.Time != nil {
		seconds = *req.Time
	}

	line, err := h.sheet.UpdateLine(r.Context(), r.PathValue("id"), seconds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// HandleDeleteLine handles DELETE /api/lines/{id}
func (h *SheetHandler) HandleDeleteLine(w http.ResponseWriter, r *http.Request) {
	if err := h.sheet.DeleteLine(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /api/lines
func (h *SheetHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.sheet.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSettings handles GET /api/settings
func (h *SheetHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.sheet.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandlePutSettings handles PUT /api/settings
func (h *SheetHandler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	settings, err := h.sheet.SetCompensateDelay(r.Context(), req.CompensateDelay)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleToggleSettings handles POST /api/settings/toggle
func (h *SheetHandler) HandleToggleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.sheet.ToggleCompensateDelay(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// RegisterRoutes registers sheet routes
func (h *SheetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/lines", h.HandleListLines)
	mux.HandleFunc("POST /api/lines", h.HandleAddLine)
	mux.HandleFunc("DELETE /api/lines", h.HandleClear)
	mux.HandleFunc("PUT /api/lines/{id}", h.HandleUpdateLine)
	mux.HandleFunc("DELETE /api/lines/{id}", h.HandleDeleteLine)
	mux.HandleFunc("GET /api/settings", h.HandleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.HandlePutSettings)
	mux.HandleFunc("POST /api/settings/toggle", h.HandleToggleSettings)
}

func decodeLineRequest(r *http.Request) (LineRequest, error) {
	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.Time == nil && req.Minutes == nil && req.Seconds == nil {
		return req, fmt.Errorf("%w: time or minutes/seconds required", errBadRequest)
	}
	return req, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
