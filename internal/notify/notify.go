// Package notify informs the chat/notification transport of committed state
// changes. Delivery is best-effort and never part of a core transaction.
package notify

import (
	"context" // Cancellation
	"sync"    // Recorder locking

	"labour_connect/internal/domain" // Domain events

	"github.com/sirupsen/logrus" // Structured logging
)

// Notifier publishes domain events to the notification collaborator
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// Fallback is used when no broker is configured; it logs and drops events
type Fallback struct{}

func (Fallback) Notify(ctx context.Context, event domain.Event) error {
	logrus.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"type":      event.Type,
		"entity_id": event.EntityID,
	}).Debug("event publish skipped, no broker configured")
	return nil
}

// Emit publishes the event and logs failures instead of returning them
func Emit(ctx context.Context, n Notifier, event domain.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id":  event.ID,
			"type":      event.Type,
			"entity_id": event.EntityID,
			"error":     err.Error(),
		}).Warn("event publish failed")
	}
}

// Recorder keeps events in memory; tests and local runs use it
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Notify(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// OfType returns the recorded events of one type
func (r *Recorder) OfType(typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
