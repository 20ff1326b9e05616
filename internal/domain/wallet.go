package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // UUID identifiers
)

// Wallet Model
type Wallet struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`                        // Primary key
	UserID         uuid.UUID `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`         // One wallet per user
	Balance        int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`      // Token balance, never negative
	TotalPurchased int64     `gorm:"not null;default:0" json:"total_purchased"`                 // Lifetime tokens credited
	TotalSpent     int64     `gorm:"not null;default:0" json:"total_spent"`                     // Lifetime tokens debited
	Version        int64     `gorm:"not null;default:0" json:"-"`                               // Optimistic concurrency counter
	CreatedAt      time.Time `json:"created_at"`                                                // Creation time
	UpdatedAt      time.Time `json:"updated_at"`                                                // Last mutation time
}
