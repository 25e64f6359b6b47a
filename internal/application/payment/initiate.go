package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// InitiateInput carries the caller-supplied fields for a new transaction.
type InitiateInput struct {
	OwnerID         uuid.UUID
	AmountMinor     int64
	Currency        string
	PaymentMethodID *uuid.UUID // nil selects the owner's default method
	GatewayName     string
}

// InitiateUseCase creates a transaction and drives it through the gateway.
// The create and its payment.initiated event commit atomically; the charge
// itself runs detached from the caller's context so that a disconnecting
// client can never orphan an issued charge.
type InitiateUseCase struct {
	txRepo         transaction.Repository
	methodRepo     method.Repository
	outboxRepo     outbox.Repository
	txManager      TransactionManager
	gatewayFactory *gateway.Factory
	applier        *OutcomeApplier
	reconcileQueue ReconcileQueue
	chargeTimeout  time.Duration
	logger         zerolog.Logger
}

// NewInitiateUseCase creates a new InitiateUseCase.
func NewInitiateUseCase(
	txRepo transaction.Repository,
	methodRepo method.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gatewayFactory *gateway.Factory,
	applier *OutcomeApplier,
	reconcileQueue ReconcileQueue,
	chargeTimeout time.Duration,
	logger zerolog.Logger,
) *InitiateUseCase {
	if chargeTimeout <= 0 {
		chargeTimeout = 30 * time.Second
	}
	return &InitiateUseCase{
		txRepo:         txRepo,
		methodRepo:     methodRepo,
		outboxRepo:     outboxRepo,
		txManager:      txManager,
		gatewayFactory: gatewayFactory,
		applier:        applier,
		reconcileQueue: reconcileQueue,
		chargeTimeout:  chargeTimeout,
		logger:         logger,
	}
}

// Execute runs the full initiation flow. It returns the transaction in
// whatever state it reached: terminal when the gateway answered in time,
// processing when the outcome is still being reconciled.
func (uc *InitiateUseCase) Execute(ctx context.Context, in InitiateInput) (*transaction.Transaction, error) {
	m, err := uc.resolveMethod(ctx, in)
	if err != nil {
		return nil, err
	}

	t, err := transaction.New(in.OwnerID, transaction.Amount{
		MinorUnits: in.AmountMinor,
		Currency:   in.Currency,
	}, m.ID)
	if err != nil {
		return nil, err
	}

	// The row and its initiated event commit together: consumers never see
	// an event for a transaction that does not exist, and no committed
	// transaction is missing its event.
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.txRepo.Create(txCtx, t); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewPaymentInitiated(t))
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if err := t.MarkProcessing(); err != nil {
		return nil, err
	}
	if err := uc.txRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	// Caller gone before a charge was issued: hand the transaction to the
	// reconcile worker, which will issue the charge under the same derived
	// key.
	if ctx.Err() != nil {
		uc.deferToReconcile(t)
		return t, nil
	}

	return uc.charge(ctx, t, m, in.GatewayName)
}

func (uc *InitiateUseCase) resolveMethod(ctx context.Context, in InitiateInput) (*method.PaymentMethod, error) {
	if in.PaymentMethodID == nil {
		m, err := uc.methodRepo.GetDefaultByOwner(ctx, in.OwnerID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrMethodNotFound) {
				return nil, domainErrors.ErrNoDefaultMethod
			}
			return nil, err
		}
		return m, nil
	}

	m, err := uc.methodRepo.GetByID(ctx, *in.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !m.BelongsTo(in.OwnerID) {
		return nil, domainErrors.ErrForbidden
	}
	return m, nil
}

// charge issues the gateway call on a context detached from the caller. Once
// the charge is in flight the outcome is applied even if the caller hangs up;
// the caller at most gets back a processing snapshot early.
func (uc *InitiateUseCase) charge(ctx context.Context, t *transaction.Transaction, m *method.PaymentMethod, gatewayName string) (*transaction.Transaction, error) {
	gw, breaker, err := uc.gatewayFactory.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	req := gateway.ChargeRequest{
		AmountMinor:    t.Amount.MinorUnits,
		Currency:       t.Amount.Currency,
		MethodToken:    m.Token,
		IdempotencyKey: t.ChargeKey,
	}

	type chargeOutcome struct {
		txn *transaction.Transaction
		err error
	}
	done := make(chan chargeOutcome, 1)

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.chargeTimeout)
	go func() {
		defer cancel()
		txn, err := uc.completeCharge(detached, t, gw, breaker, req)
		done <- chargeOutcome{txn: txn, err: err}
	}()

	select {
	case out := <-done:
		return out.txn, out.err
	case <-ctx.Done():
		// The detached goroutine keeps running and applies the outcome.
		snapshot := *t
		return &snapshot, nil
	}
}

func (uc *InitiateUseCase) completeCharge(
	ctx context.Context,
	t *transaction.Transaction,
	gw gateway.Gateway,
	breaker *gobreaker.CircuitBreaker[*gateway.ChargeResult],
	req gateway.ChargeRequest,
) (*transaction.Transaction, error) {
	result, err := breaker.Execute(func() (*gateway.ChargeResult, error) {
		return gw.Charge(ctx, req)
	})
	if err != nil {
		// Timeouts, gateway unavailability, an open breaker and the
		// detached deadline all mean the charge may or may not have
		// landed. The transaction stays processing and the reconcile
		// worker takes over; a failure is never inferred here.
		uc.logger.Warn().
			Err(err).
			Str("transaction_id", t.ID.String()).
			Str("gateway", gw.Name()).
			Msg("charge outcome ambiguous, deferring to reconciliation")
		uc.deferToReconcile(t)
		return t, nil
	}

	txn, _, err := uc.applier.Apply(ctx, t.ID, result, nil)
	return txn, err
}

func (uc *InitiateUseCase) deferToReconcile(t *transaction.Transaction) {
	// Enqueue on a background context: this path runs exactly when the
	// caller's context is unusable.
	enqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.reconcileQueue.Enqueue(enqCtx, t.ID, 0); err != nil {
		// The transaction is still processing; the worker's stale sweep
		// requeues it, so the enqueue failure loses nothing permanently.
		uc.logger.Error().
			Err(err).
			Str("transaction_id", t.ID.String()).
			Msg("failed to enqueue transaction for reconciliation")
	}
}
