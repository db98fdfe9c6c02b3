// Package analytics provides the fire-and-forget event sink navigation
// tracking reports into. Tracking must never influence control flow, so
// Track has no error return.
package analytics

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one tracked user action.
type Event struct {
	ID   string
	Name string
	Path string
	At   time.Time
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(name, path string) Event {
	return Event{
		ID:   uuid.NewString(),
		Name: name,
		Path: path,
		At:   time.Now().UTC(),
	}
}

// Tracker receives events. Implementations must not block the caller for
// longer than a local write.
type Tracker interface {
	Track(event Event)
}

// LogTracker emits events to the structured log, the default sink when no
// external collector is configured.
type LogTracker struct {
	logger *zap.Logger
}

// NewLogTracker creates a LogTracker.
func NewLogTracker(logger *zap.Logger) *LogTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracker{logger: logger}
}

func (t *LogTracker) Track(event Event) {
	t.logger.Info("analytics event",
		zap.String("event_id", event.ID),
		zap.String("event", event.Name),
		zap.String("path", event.Path),
		zap.Time("at", event.At))
}

// NopTracker discards every event.
type NopTracker struct{}

func (NopTracker) Track(Event) {}
