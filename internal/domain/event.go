package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // UUID identifiers
)

// EventType names a status/notification event emitted to collaborators
type EventType string

const (
	EventJobCreated       EventType = "job.created"
	EventJobStatusChanged EventType = "job.status_changed"
	EventOfferCreated     EventType = "offer.created"
	EventOfferResponded   EventType = "offer.responded"
	EventRatingSubmitted  EventType = "rating.submitted"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
)

// Event is published after the state change it describes has committed
type Event struct {
	ID         uuid.UUID      `json:"id"`          // Event ID
	Type       EventType      `json:"type"`        // Event type, also the routing key
	Recipients []uuid.UUID    `json:"recipients"`  // Users to notify
	EntityID   uuid.UUID      `json:"entity_id"`   // Job, offer, rating or payment id
	Data       map[string]any `json:"data"`        // Event payload
	OccurredAt time.Time      `json:"occurred_at"` // Commit time
}

// NewEvent builds an Event stamped with a fresh id and the current time
func NewEvent(typ EventType, entityID uuid.UUID, data map[string]any, recipients ...uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		Recipients: recipients,
		EntityID:   entityID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
