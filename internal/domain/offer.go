package domain

import (
	"time" // Timestamps

	"github.com/google/uuid"         // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
)

// OfferStatus is the state of a priced offer
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCountered OfferStatus = "countered" // Answered with a reverse offer
)

// Offer Model
type Offer struct {
	ID         uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`                 // Primary key
	JobID      uuid.UUID       `gorm:"type:char(36);index;not null" json:"job_id"`         // Job under negotiation
	FromUserID uuid.UUID       `gorm:"type:char(36);index;not null" json:"from_user_id"`   // Sender, charged for the offer
	ToUserID   uuid.UUID       `gorm:"type:char(36);index;not null" json:"to_user_id"`     // Recipient, the only party who may respond
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`          // Proposed price
	Message    string          `gorm:"type:text" json:"message,omitempty"`                 // Optional note
	Status     OfferStatus     `gorm:"type:varchar(16);index;not null" json:"status"`      // pending, accepted, rejected or countered
	CounterOf  *uuid.UUID      `gorm:"type:char(36);index" json:"counter_of,omitempty"`    // Offer this one answers
	CreatedAt  time.Time       `json:"created_at"`                                         // Creation time
	UpdatedAt  time.Time       `json:"updated_at"`                                         // Last response time
}
