// Package authorizer gates token-priced actions: capability check, debit
// before the side effect, and a compensating refund when the side effect fails.
package authorizer

import (
	"context"       // Cancellation
	"encoding/json" // Audit details
	"time"          // Timestamps

	"labour_connect/internal/domain" // Domain models

	"github.com/google/uuid"     // UUID identifiers
	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/datatypes"         // JSON columns
	"gorm.io/gorm"               // GORM ORM library
)

// Action is a gated, token-priced action
type Action string

const (
	ActionJobPost     Action = "job_post"
	ActionOfferSend   Action = "offer_send"
	ActionMessageSend Action = "message_send"
)

// kind maps an action to the ledger entry kind of its charge
func (a Action) kind() domain.TransactionKind {
	switch a {
	case ActionJobPost:
		return domain.KindJobPost
	case ActionOfferSend:
		return domain.KindOfferSend
	default:
		return domain.KindMessageSend
	}
}

// Ledger is the subset of the WalletLedger the authorizer needs
type Ledger interface {
	Debit(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error)
}

// Costs holds the token price of each action
type Costs map[Action]int64

// capabilities is the role → action table
var capabilities = map[Action][]domain.Role{
	ActionJobPost:     {domain.RoleEmployer, domain.RoleAdmin},
	ActionOfferSend:   {domain.RoleEmployer, domain.RoleEmployee},
	ActionMessageSend: {domain.RoleEmployer, domain.RoleEmployee, domain.RoleAdmin},
}

// Can reports whether role may perform action
func Can(role domain.Role, action Action) bool {
	for _, r := range capabilities[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorizer is the ActionAuthorizer
type Authorizer struct {
	ledger Ledger
	costs  Costs
	audit  *gorm.DB
}

// New creates an Authorizer; audit may be nil to skip audit records
func New(ledger Ledger, costs Costs, audit *gorm.DB) *Authorizer {
	return &Authorizer{ledger: ledger, costs: costs, audit: audit}
}

// Cost returns the token price of action
func (a *Authorizer) Cost(action Action) int64 {
	return a.costs[action]
}

// Authorize charges user for action and then runs fn. If fn fails, the charge
// is refunded and fn's error returned. refID labels the ledger entries.
func (a *Authorizer) Authorize(ctx context.Context, user domain.User, action Action, refID string, fn func(ctx context.Context) error) error {
	if !Can(user.Role, action) {
		return domain.Forbidden("role %s may not perform %s", user.Role, action)
	}
	cost := a.costs[action]
	if cost > 0 {
		if _, err := a.ledger.Debit(ctx, user.ID, cost, action.kind(), refID); err != nil {
			return err // Nothing charged, nothing executed
		}
	}
	if fn == nil {
		return nil
	}
	err := fn(ctx)
	if err == nil || cost == 0 {
		return err
	}
	a.compensate(ctx, user, action, cost, refID, err)
	return err
}

// ChargeMessage charges the message price; delivery belongs to the chat transport
func (a *Authorizer) ChargeMessage(ctx context.Context, user domain.User, refID string) error {
	return a.Authorize(ctx, user, ActionMessageSend, refID, nil)
}

// compensate refunds a charge whose action did not take effect. The refund
// runs on a context detached from the caller's cancellation.
func (a *Authorizer) compensate(ctx context.Context, user domain.User, action Action, cost int64, refID string, cause error) {
	rctx := context.WithoutCancel(ctx)
	fields := logrus.Fields{
		"user_id":   user.ID,                         // Charged user
		"action":    action,                          // Gated action
		"amount":    cost,                            // Refunded amount
		"ref_id":    refID,                           // Reference
		"cause":     cause.Error(),                   // Downstream failure
		"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
	}
	_, err := a.ledger.Credit(rctx, user.ID, cost, domain.KindRefund, refID)
	auditAction := "refund"
	if err != nil {
		auditAction = "refund_failed"
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("Compensating refund failed, manual follow-up required")
	} else {
		logrus.WithFields(fields).Warn("Gated action failed, charge refunded")
	}
	a.record(rctx, user.ID, auditAction, refID, fields)
}

func (a *Authorizer) record(ctx context.Context, userID uuid.UUID, action, refID string, details logrus.Fields) {
	if a.audit == nil {
		return
	}
	raw, _ := json.Marshal(details)
	entry := domain.AuditLog{
		ID:         uuid.New(),
		UserID:     &userID,
		Action:     action,
		EntityType: "wallet",
		EntityID:   refID,
		Details:    datatypes.JSON(raw),
	}
	if err := a.audit.WithContext(ctx).Create(&entry).Error; err != nil {
		logrus.WithError(err).WithField("ref_id", refID).Error("failed to write audit log")
	}
}
