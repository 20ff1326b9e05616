package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // UUID identifiers
)

// TransactionKind classifies a ledger entry
type TransactionKind string

const (
	KindPurchase    TransactionKind = "purchase"     // Tokens bought through a payment intent
	KindJobPost     TransactionKind = "job_post"     // Charge for posting a job
	KindOfferSend   TransactionKind = "offer_send"   // Charge for sending an offer
	KindMessageSend TransactionKind = "message_send" // Charge for sending a message
	KindRefund      TransactionKind = "refund"       // Compensation for a failed gated action
	KindAdminGrant  TransactionKind = "admin_grant"  // Manual grant by an operator
)

// Valid reports whether k is a known kind
func (k TransactionKind) Valid() bool {
	switch k {
	case KindPurchase, KindJobPost, KindOfferSend, KindMessageSend, KindRefund, KindAdminGrant:
		return true
	}
	return false
}

// Transaction Model, append-only
type Transaction struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`                 // Primary key
	WalletID     uuid.UUID       `gorm:"type:char(36);index;not null" json:"wallet_id"`      // Owning wallet
	Amount       int64           `gorm:"not null" json:"amount"`                             // Signed amount: credit > 0, debit < 0
	Kind         TransactionKind `gorm:"type:varchar(32);not null" json:"kind"`              // Entry kind
	BalanceAfter int64           `gorm:"not null" json:"balance_after"`                      // Wallet balance after this entry
	ReferenceID  string          `gorm:"type:varchar(64);index" json:"reference_id,omitempty"` // Job, offer, payment or message id
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`                            // Creation time
}
