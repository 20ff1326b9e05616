package domain

import (
	"time" // Timestamps

	"github.com/google/uuid"         // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
)

// PaymentMethod is a supported mobile-money rail
type PaymentMethod string

const (
	MethodEcocash  PaymentMethod = "ecocash"  // EcoCash mobile money
	MethodInnbucks PaymentMethod = "innbucks" // InnBucks mobile money
)

// Valid reports whether m is a supported method
func (m PaymentMethod) Valid() bool {
	return m == MethodEcocash || m == MethodInnbucks
}

// PaymentStatus is the lifecycle of a purchase intent
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"   // Awaiting gateway confirmation
	PaymentCompleted PaymentStatus = "completed" // Confirmed and credited, terminal
	PaymentFailed    PaymentStatus = "failed"    // Rejected or cancelled, terminal
)

// Terminal reports whether no further transition is possible
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// PaymentIntent Model
type PaymentIntent struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`                     // Primary key
	UserID       uuid.UUID       `gorm:"type:char(36);index;not null" json:"user_id"`            // Purchaser
	Amount       int64           `gorm:"not null" json:"amount"`                                 // Tokens to credit
	CurrencyCost decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"currency_cost"`       // Price charged at the gateway
	Currency     string          `gorm:"type:varchar(8);not null;default:USD" json:"currency"`   // ISO currency
	Method       PaymentMethod   `gorm:"type:varchar(16);not null" json:"method"`                // Mobile-money rail
	Phone        string          `gorm:"type:varchar(32);not null" json:"phone"`                 // Payer phone number
	Status       PaymentStatus   `gorm:"type:varchar(16);index;not null" json:"status"`          // pending, completed or failed
	ExternalRef  *string         `gorm:"type:varchar(128);uniqueIndex" json:"external_ref"`      // Gateway reference
	PollURL      string          `gorm:"type:varchar(512)" json:"-"`                             // Gateway status URL
	CreatedAt    time.Time       `json:"created_at"`                                             // Creation time
	UpdatedAt    time.Time       `json:"updated_at"`                                             // Last transition time
}
