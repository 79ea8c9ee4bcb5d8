package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

// Event is the envelope of every message pushed to WebSocket clients.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// EventType represents the type of run event
type EventType string

const (
	EventTypeState EventType = "state"
	EventTypeAlert EventType = "alert"
)

func newStateEvent(view execution.View) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeState,
		Timestamp: time.Now().UTC(),
		Data:      view,
	}
}

func newAlertEvent(notice execution.Notice) *Event {
	return &Event{
		ID:        notice.ID,
		Type:      EventTypeAlert,
		Timestamp: notice.FiredAt.UTC(),
		Data:      notice,
	}
}
