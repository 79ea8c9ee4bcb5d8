package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for run watchers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	runner            RunController
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, runner RunController) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		runner:            runner,
	}
}

// HandleRunConnection handles GET /ws/run. The client first receives the
// current state, then every state change and alert.
func (h *WebSocketHandler) HandleRunConnection(w http.ResponseWriter, r *http.Request) {
	client := r.URL.Query().Get("client")
	if client == "" {
		client = "anonymous"
	}

	// The upgrader has already replied on failure.
	conn, err := h.connectionManager.UpgradeConnection(w, r, client)
	if err != nil {
		log.Error().
			Err(err).
			Str("client", client).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// The view is read after registering, and queued behind any broadcast
	// already pending, so no later change is missed or overtaken.
	view, err := h.runner.View(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("connection_id", conn.ID).Msg("no initial state for WebSocket client")
		return
	}
	if err := h.connectionManager.SendTo(r.Context(), conn, newStateEvent(view)); err != nil {
		log.Warn().Err(err).Str("connection_id", conn.ID).Msg("failed to queue initial state")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.Stats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/run", h.HandleRunConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
