package payment

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resolution describes how an outcome application ended.
type Resolution string

const (
	// ResolutionApplied means this caller won the version-gated slot and
	// moved the transaction to its terminal state.
	ResolutionApplied Resolution = "applied"
	// ResolutionAlreadyResolved means another path (orchestrator retry or
	// webhook) resolved the transaction first and the outcomes agree.
	ResolutionAlreadyResolved Resolution = "already_resolved"
	// ResolutionMismatch means the transaction was already terminal with a
	// conflicting outcome. The stored state is never overwritten; the
	// disagreement is surfaced loudly instead.
	ResolutionMismatch Resolution = "mismatch"
)

// maxApplyAttempts bounds the fresh-read retry loop on version conflicts.
const maxApplyAttempts = 3

// OutcomeApplier converges a transaction onto a definitive gateway outcome.
// It is the single version-gated transition and event-staging path shared by
// the synchronous orchestrator, the reconcile worker and the webhook
// reconciler: concurrent resolvers race for the same version slot and the
// loser lands in the already-resolved branch.
type OutcomeApplier struct {
	txRepo     transaction.Repository
	outboxRepo outbox.Repository
	txManager  TransactionManager
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewOutcomeApplier creates a new OutcomeApplier.
func NewOutcomeApplier(
	txRepo transaction.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutcomeApplier {
	return &OutcomeApplier{
		txRepo:     txRepo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		metrics:    metrics,
		logger:     logger,
	}
}

// Apply drives the transaction to the terminal state described by res.
// inTx, when non-nil, runs inside the same database transaction as the state
// change and its staged event (used by the webhook reconciler to record its
// idempotency key atomically with the work it covers).
func (a *OutcomeApplier) Apply(
	ctx context.Context,
	transactionID uuid.UUID,
	res *gateway.ChargeResult,
	inTx func(ctx context.Context) error,
) (*transaction.Transaction, Resolution, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		t, err := a.txRepo.GetByID(ctx, transactionID)
		if err != nil {
			return nil, "", fmt.Errorf("load transaction: %w", err)
		}

		if t.IsTerminal() {
			return a.alreadyResolved(t, res)
		}

		// A still-pending record means the creator crashed before the
		// processing transition; take it through Processing to keep the
		// state machine monotone.
		if t.Status == transaction.StatusPending {
			if err := t.MarkProcessing(); err != nil {
				return nil, "", err
			}
			if err := a.txRepo.Update(ctx, t); err != nil {
				if errors.Is(err, domainErrors.ErrVersionConflict) {
					continue // someone else moved it, re-read
				}
				return nil, "", err
			}
		}

		switch res.Status {
		case gateway.ChargeSucceeded:
			if err := t.MarkSuccessful(res.Reference); err != nil {
				return nil, "", err
			}
		case gateway.ChargeDeclined:
			if err := t.MarkFailed(res.DeclineReason); err != nil {
				return nil, "", err
			}
		default:
			return nil, "", fmt.Errorf("unexpected charge status %q", res.Status)
		}

		err = a.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := a.txRepo.Update(txCtx, t); err != nil {
				return err
			}
			if err := a.outboxRepo.Insert(txCtx, outbox.NewPaymentProcessed(t)); err != nil {
				return err
			}
			if inTx != nil {
				return inTx(txCtx)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, domainErrors.ErrVersionConflict) {
				continue // lost the race, re-read and take the no-op branch
			}
			return nil, "", err
		}

		return t, ResolutionApplied, nil
	}

	return nil, "", fmt.Errorf("apply outcome for %s: %w", transactionID, domainErrors.ErrVersionConflict)
}

// alreadyResolved verifies that the stored terminal outcome agrees with the
// one this caller observed.
func (a *OutcomeApplier) alreadyResolved(t *transaction.Transaction, res *gateway.ChargeResult) (*transaction.Transaction, Resolution, error) {
	claimed := res.Status == gateway.ChargeSucceeded
	if t.Succeeded() == claimed {
		return t, ResolutionAlreadyResolved, nil
	}

	a.metrics.OutcomeMismatches.Inc()
	a.logger.Error().
		Str("transaction_id", t.ID.String()).
		Str("stored_status", string(t.Status)).
		Bool("claimed_succeeded", claimed).
		Msg("terminal transaction outcome disagrees with gateway report")
	return t, ResolutionMismatch, nil
}
