package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/idempotency"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Notification is a verified gateway callback, decoded from the delivery
// body after its signature checked out.
type Notification struct {
	CallbackID  string    `json:"callback_id" validate:"required"`
	Reference   string    `json:"reference"`
	ChargeKey   string    `json:"charge_key"`
	Succeeded   bool      `json:"succeeded"`
	ErrorReason string    `json:"error_reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Result describes how a delivery was handled.
type Result string

const (
	// ResultApplied means the callback resolved the transaction.
	ResultApplied Result = "applied"
	// ResultDuplicate means this callback id was seen before; nothing ran.
	ResultDuplicate Result = "duplicate"
	// ResultAlreadyResolved means another path settled the transaction
	// first with the same outcome.
	ResultAlreadyResolved Result = "already_resolved"
	// ResultMismatch means the callback disagrees with a terminal state.
	// The stored state wins and the disagreement is flagged for operators.
	ResultMismatch Result = "mismatch"
	// ResultUnmatched means no transaction matched the callback.
	ResultUnmatched Result = "unmatched"
)

// idempotencyTTL is how long processed callback ids are remembered.
const idempotencyTTL = 72 * time.Hour

// Reconciler converges transactions onto outcomes reported by gateway
// callbacks. Deliveries are retried by the gateway, so processing must be
// idempotent on callback id, and acknowledgement must not depend on the
// callback changing anything.
type Reconciler struct {
	txRepo   transaction.Repository
	idemRepo idempotency.Repository
	applier  *appPayment.OutcomeApplier
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	txRepo transaction.Repository,
	idemRepo idempotency.Repository,
	applier *appPayment.OutcomeApplier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		txRepo:   txRepo,
		idemRepo: idemRepo,
		applier:  applier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes one verified notification. Every non-error result means
// the delivery should be acknowledged; the gateway only retries on error.
func (r *Reconciler) Handle(ctx context.Context, n Notification) (Result, error) {
	if n.CallbackID == "" {
		return "", domainErrors.NewValidationError("callback_id", "is required")
	}

	seen, err := r.idemRepo.Get(ctx, idempotency.KindWebhook, n.CallbackID)
	if err != nil {
		return "", fmt.Errorf("check callback id: %w", err)
	}
	if seen != nil {
		return ResultDuplicate, nil
	}

	t, err := r.lookup(ctx, n)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			// Nothing to converge; remember the id so retries stay cheap.
			r.logger.Warn().
				Str("callback_id", n.CallbackID).
				Str("reference", n.Reference).
				Msg("webhook matched no transaction")
			if err := r.markProcessed(ctx, n.CallbackID); err != nil {
				return "", err
			}
			return ResultUnmatched, nil
		}
		return "", err
	}

	res := &gateway.ChargeResult{Reference: n.Reference}
	if n.Succeeded {
		res.Status = gateway.ChargeSucceeded
	} else {
		res.Status = gateway.ChargeDeclined
		res.DeclineReason = n.ErrorReason
	}

	// The idempotency record commits in the same database transaction as
	// the state change, so a crash between them cannot strand a half-done
	// delivery.
	_, resolution, err := r.applier.Apply(ctx, t.ID, res, func(txCtx context.Context) error {
		return r.markProcessed(txCtx, n.CallbackID)
	})
	if err != nil {
		return "", err
	}

	switch resolution {
	case appPayment.ResolutionApplied:
		r.metrics.WebhooksProcessed.WithLabelValues(string(ResultApplied)).Inc()
		return ResultApplied, nil
	case appPayment.ResolutionMismatch:
		// The applier already counted the mismatch; only the delivery
		// result is recorded here.
		r.metrics.WebhooksProcessed.WithLabelValues(string(ResultMismatch)).Inc()
		if err := r.markProcessed(ctx, n.CallbackID); err != nil {
			return "", err
		}
		return ResultMismatch, nil
	default:
		r.metrics.WebhooksProcessed.WithLabelValues(string(ResultAlreadyResolved)).Inc()
		if err := r.markProcessed(ctx, n.CallbackID); err != nil {
			return "", err
		}
		return ResultAlreadyResolved, nil
	}
}

// lookup matches a notification to a transaction: by the gateway reference
// first, then by the charge idempotency key. The key fallback is what lets a
// callback settle a charge whose synchronous response was lost before the
// reference was ever stored.
func (r *Reconciler) lookup(ctx context.Context, n Notification) (*transaction.Transaction, error) {
	if n.Reference != "" {
		t, err := r.txRepo.GetByExternalRef(ctx, n.Reference)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domainErrors.ErrTransactionNotFound) {
			return nil, err
		}
	}
	if n.ChargeKey != "" {
		return r.txRepo.GetByChargeKey(ctx, n.ChargeKey)
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (r *Reconciler) markProcessed(ctx context.Context, callbackID string) error {
	now := time.Now()
	return r.idemRepo.Set(ctx, &idempotency.Record{
		Kind:      idempotency.KindWebhook,
		Key:       callbackID,
		CreatedAt: now,
		ExpiresAt: now.Add(idempotencyTTL),
	})
}
