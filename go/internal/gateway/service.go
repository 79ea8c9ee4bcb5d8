// Package gateway is the HTTP and WebSocket face of the firing run: sheet
// editing, run commands, and a live stream of views and alerts.
package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

// Service wires the handlers and the connection manager together
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	runHandler        *RunHandler
	sheetHandler      *SheetHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service. The runner must be created with
// the service's Sink for WebSocket clients to see anything, so the runner is
// attached afterwards with Attach.
func NewService(config Config, sheet SheetEditor, source execution.Source, metrics ConnectionMetrics) *Service {
	cm := NewConnectionManager(config.ConnectionConfig, metrics)
	return &Service{
		connectionManager: cm,
		sheetHandler:      NewSheetHandler(sheet),
		runHandler:        NewRunHandler(nil, source),
		wsHandler:         NewWebSocketHandler(cm, nil),
	}
}

// Attach sets the runner the run and WebSocket handlers drive.
func (s *Service) Attach(runner RunController) {
	s.runHandler.runner = runner
	s.wsHandler.runner = runner
}

// Start processes broadcasts until ctx is done
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.sheetHandler.RegisterRoutes(mux)
	s.runHandler.RegisterRoutes(mux)
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// Sink returns the execution sink that streams to WebSocket clients.
func (s *Service) Sink() execution.Sink {
	return broadcastSink{cm: s.connectionManager}
}

type broadcastSink struct {
	cm *ConnectionManager
}

func (b broadcastSink) Render(view execution.View) {
	b.cm.Broadcast(newStateEvent(view))
}

func (b broadcastSink) Alert(notice execution.Notice) {
	b.cm.Broadcast(newAlertEvent(notice))
}
