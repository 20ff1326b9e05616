package payment

import (
	"context" // Cancellation
	"errors"  // Sentinel
	"time"    // Intervals

	"labour_connect/internal/domain" // Domain models

	"github.com/sirupsen/logrus" // Structured logging
)

// ErrPollExhausted is returned when a Poller gives up without a terminal status.
// The intent stays pending server-side and a later resolution still credits.
var ErrPollExhausted = errors.New("payment still pending after polling")

// StatusFunc reads the current status of an intent
type StatusFunc func(ctx context.Context) (*domain.PaymentIntent, error)

// Poller is a client-side bounded polling policy over an idempotent status read
type Poller struct {
	MaxAttempts int           // Reads before giving up
	Interval    time.Duration // Delay between reads
}

// Wait reads status until the intent is terminal or the attempts run out.
// It never mutates server state itself.
func (p Poller) Wait(ctx context.Context, status StatusFunc) (*domain.PaymentIntent, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var last *domain.PaymentIntent
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(p.Interval):
			}
		}
		intent, err := status(ctx)
		if err != nil {
			return last, err
		}
		last = intent
		if intent.Status.Terminal() {
			return intent, nil
		}
	}
	return last, ErrPollExhausted
}

// Sweep checks every pending intent with a poll URL against the gateway once.
// Webhooks can be lost; this is the server's own late-resolution path.
func (r *Reconciler) Sweep(ctx context.Context, limit int) (int, error) {
	intents, err := r.Pending(ctx, limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, intent := range intents {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if intent.PollURL == "" || r.gateway == nil {
			continue
		}
		providerStatus, err := r.gateway.Check(ctx, intent.PollURL)
		if err != nil {
			logrus.WithField("intent_id", intent.ID).WithError(err).Warn("Sweep poll failed")
			continue
		}
		res, err := r.Resolve(ctx, intent.ID, providerStatus, "")
		if err != nil {
			logrus.WithField("intent_id", intent.ID).WithError(err).Error("Sweep resolve failed")
			continue
		}
		if res.Intent.Status.Terminal() && !res.AlreadyTerminal {
			resolved++
		}
	}
	return resolved, nil
}

// RunSweeper sweeps on every tick until ctx is done
func (r *Reconciler) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx, 100); err != nil {
				logrus.WithError(err).Error("Payment sweep failed")
			} else if n > 0 {
				logrus.WithField("resolved", n).Info("Payment sweep resolved intents")
			}
		}
	}
}
