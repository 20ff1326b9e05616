// Package payment turns mobile-money purchase intents into ledger credits.
// Resolution is idempotent: only the first pending to completed transition credits.
package payment

import (
	"context" // Cancellation
	"errors"  // Error matching
	"strings" // Status normalisation
	"time"    // Timestamps

	"labour_connect/internal/db"     // Retried transactions
	"labour_connect/internal/domain" // Domain models
	"labour_connect/internal/notify" // Status events

	"github.com/google/uuid"        // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Ledger is the part of the WalletLedger the reconciler needs
type Ledger interface {
	CreditInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error)
	AfterCommit(ctx context.Context, userID uuid.UUID)
}

// Options configures a Reconciler
type Options struct {
	TokenPrice decimal.Decimal // Price of one token
	Currency   string          // Currency charged at the gateway
	Attempts   int             // Optimistic retries
}

// Reconciler is the PaymentReconciler
type Reconciler struct {
	db       *gorm.DB
	ledger   Ledger
	gateway  Gateway
	notifier notify.Notifier
	opts     Options
}

// NewReconciler creates a Reconciler
func NewReconciler(gdb *gorm.DB, ledger Ledger, gateway Gateway, notifier notify.Notifier, opts Options) *Reconciler {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &Reconciler{db: gdb, ledger: ledger, gateway: gateway, notifier: notifier, opts: opts}
}

// Resolution reports what a Resolve call did
type Resolution struct {
	Intent          *domain.PaymentIntent `json:"intent"`           // Intent after resolution
	Credited        bool                  `json:"credited"`         // This call credited the wallet
	AlreadyTerminal bool                  `json:"already_terminal"` // Intent was terminal before this call
}

// NormalizeStatus maps a provider status onto an intent status. Unknown
// values are treated as still pending.
func NormalizeStatus(raw string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "completed", "paid":
		return domain.PaymentCompleted
	case "failed", "failure", "cancelled", "canceled", "declined", "error", "time_out", "timeout":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

// CreateIntent records a pending purchase and asks the gateway to prompt the payer
func (r *Reconciler) CreateIntent(ctx context.Context, userID uuid.UUID, amount int64, method domain.PaymentMethod, phone string) (*domain.PaymentIntent, error) {
	if amount <= 0 {
		return nil, domain.Validation("token amount must be positive")
	}
	if !method.Valid() {
		return nil, domain.Validation("unsupported payment method %q", method)
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.Validation("phone number is required")
	}

	intent := domain.PaymentIntent{
		ID:           uuid.New(),                                        // Intent ID
		UserID:       userID,                                            // Purchaser
		Amount:       amount,                                            // Tokens
		CurrencyCost: r.opts.TokenPrice.Mul(decimal.NewFromInt(amount)), // Price at the gateway
		Currency:     r.opts.Currency,                                   // Currency
		Method:       method,                                            // Rail
		Phone:        phone,                                             // Payer
		Status:       domain.PaymentPending,                             // Initial status
	}
	if err := r.db.WithContext(ctx).Create(&intent).Error; err != nil {
		return nil, err
	}

	res, err := r.gateway.Initiate(ctx, InitiateRequest{
		Reference: intent.ID.String(),
		Amount:    intent.CurrencyCost,
		Currency:  intent.Currency,
		Method:    string(method),
		Phone:     phone,
		Reason:    "Labour Connect tokens",
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"intent_id": intent.ID,   // Intent
			"user_id":   userID,      // Purchaser
			"error":     err.Error(), // Error message
		}).Error("Payment initiation failed")
		mark := r.db.WithContext(context.WithoutCancel(ctx)).Model(&domain.PaymentIntent{}).
			Where("id = ? AND status = ?", intent.ID, domain.PaymentPending).
			Update("status", domain.PaymentFailed)
		if mark.Error != nil {
			// The intent stays pending; the sweeper skips it without a poll URL
			logrus.WithFields(logrus.Fields{
				"intent_id": intent.ID,          // Intent
				"error":     mark.Error.Error(), // Error message
			}).Error("Failed to mark payment intent failed")
		}
		return nil, domain.ErrGateway.WithCause(err)
	}

	updates := map[string]any{"poll_url": res.PollURL}
	if res.Reference != "" {
		updates["external_ref"] = res.Reference
		intent.ExternalRef = &res.Reference
	}
	intent.PollURL = res.PollURL
	if err := r.db.WithContext(ctx).Model(&domain.PaymentIntent{}).Where("id = ?", intent.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"intent_id":     intent.ID,           // Intent
		"user_id":       userID,              // Purchaser
		"amount":        amount,              // Tokens
		"currency_cost": intent.CurrencyCost, // Price
		"method":        method,              // Rail
		"timestamp":     time.Now().Format(time.RFC3339),
	}).Info("Payment intent created")

	// Some rails confirm synchronously
	if NormalizeStatus(res.Status) != domain.PaymentPending {
		resolution, err := r.Resolve(ctx, intent.ID, res.Status, "")
		if err != nil {
			return nil, err
		}
		return resolution.Intent, nil
	}
	return &intent, nil
}

// Resolve applies a provider status to the intent. Repeated or late signals
// are safe: a terminal intent is never changed again and never credited twice.
func (r *Reconciler) Resolve(ctx context.Context, intentID uuid.UUID, providerStatus, providerRef string) (*Resolution, error) {
	target := NormalizeStatus(providerStatus)
	var res Resolution
	err := db.Transact(ctx, r.db, r.opts.Attempts, func(tx *gorm.DB) error {
		res = Resolution{}
		var intent domain.PaymentIntent
		if err := tx.Where("id = ?", intentID).First(&intent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound("payment intent")
			}
			return err
		}
		res.Intent = &intent
		if target == domain.PaymentPending {
			return nil
		}
		if intent.Status.Terminal() {
			res.AlreadyTerminal = true
			return nil
		}

		updates := map[string]any{"status": target}
		if providerRef != "" && intent.ExternalRef == nil {
			updates["external_ref"] = providerRef
		}
		cas := tx.Model(&domain.PaymentIntent{}).
			Where("id = ? AND status = ?", intent.ID, domain.PaymentPending).
			Updates(updates)
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			res.AlreadyTerminal = true // Lost the race to another resolver
			return tx.Where("id = ?", intentID).First(&intent).Error
		}
		intent.Status = target
		if ref, ok := updates["external_ref"].(string); ok {
			intent.ExternalRef = &ref
		}

		if target == domain.PaymentCompleted {
			if _, err := r.ledger.CreditInTx(ctx, tx, intent.UserID, intent.Amount, domain.KindPurchase, intent.ID.String()); err != nil {
				return err
			}
			res.Credited = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	intent := res.Intent
	fields := logrus.Fields{
		"intent_id":       intent.ID,      // Intent
		"user_id":         intent.UserID,  // Purchaser
		"provider_status": providerStatus, // Raw provider status
		"status":          intent.Status,  // Stored status
	}
	switch {
	case res.AlreadyTerminal:
		if intent.Status != target {
			logrus.WithFields(fields).Warn("Conflicting terminal payment signal ignored")
		} else {
			logrus.WithFields(fields).Debug("Duplicate payment signal ignored")
		}
	case res.Credited:
		r.ledger.AfterCommit(ctx, intent.UserID)
		logrus.WithFields(fields).WithField("amount", intent.Amount).Info("Payment completed, tokens credited")
		notify.Emit(ctx, r.notifier, domain.NewEvent(domain.EventPaymentCompleted, intent.ID,
			map[string]any{"amount": intent.Amount}, intent.UserID))
	case intent.Status == domain.PaymentFailed:
		logrus.WithFields(fields).Info("Payment failed")
		notify.Emit(ctx, r.notifier, domain.NewEvent(domain.EventPaymentFailed, intent.ID,
			map[string]any{"amount": intent.Amount}, intent.UserID))
	}
	return &res, nil
}

// ResolveByReference resolves the intent matching a gateway reference or our own id
func (r *Reconciler) ResolveByReference(ctx context.Context, ref, providerStatus string) (*Resolution, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.Validation("reference is required")
	}
	var intent domain.PaymentIntent
	q := r.db.WithContext(ctx).Where("external_ref = ?", ref)
	if id, err := uuid.Parse(ref); err == nil {
		q = q.Or("id = ?", id)
	}
	if err := q.First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("payment intent")
		}
		return nil, err
	}
	return r.Resolve(ctx, intent.ID, providerStatus, "")
}

// Status returns the intent to its owner or an admin. A pending intent with a
// poll URL is checked against the gateway once; gateway errors are logged only.
func (r *Reconciler) Status(ctx context.Context, user domain.User, intentID uuid.UUID) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	if err := r.db.WithContext(ctx).Where("id = ?", intentID).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("payment intent")
		}
		return nil, err
	}
	if intent.UserID != user.ID && !user.IsAdmin() {
		return nil, domain.NotFound("payment intent") // Hide other users' intents
	}
	if intent.Status.Terminal() || intent.PollURL == "" || r.gateway == nil {
		return &intent, nil
	}

	providerStatus, err := r.gateway.Check(ctx, intent.PollURL)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"intent_id": intent.ID,   // Intent
			"error":     err.Error(), // Error message
		}).Warn("Payment status poll failed")
		return &intent, nil
	}
	res, err := r.Resolve(ctx, intent.ID, providerStatus, "")
	if err != nil {
		return nil, err
	}
	return res.Intent, nil
}

// Pending lists intents still awaiting resolution, oldest first
func (r *Reconciler) Pending(ctx context.Context, limit int) ([]domain.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	var intents []domain.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.PaymentPending).
		Order("created_at asc").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}
