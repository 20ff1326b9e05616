package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // UUID identifiers
	"gorm.io/datatypes"      // JSON column types
)

// AuditLog records compensations and operator actions
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`          // Primary key
	UserID     *uuid.UUID     `gorm:"type:char(36);index" json:"user_id"`          // Affected user
	Action     string         `gorm:"type:varchar(64);index;not null" json:"action"` // e.g. refund, refund_failed, admin_grant
	EntityType string         `gorm:"type:varchar(32)" json:"entity_type"`         // wallet, job, offer, payment
	EntityID   string         `gorm:"type:varchar(64)" json:"entity_id"`           // Referenced entity
	Details    datatypes.JSON `json:"details"`                                     // Free-form context
	CreatedAt  time.Time      `json:"created_at"`                                  // Creation time
}
