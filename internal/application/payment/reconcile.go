package payment

import (
	"context"
	"fmt"

	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconcileChargeUseCase resolves transactions whose charge outcome was
// ambiguous. It re-issues the charge under the transaction's stored
// idempotency key: a charge that landed the first time is replayed by the
// gateway, one that never landed is issued now. Either way the answer is
// definitive and converges through the same version-gated path the
// orchestrator and webhook use.
type ReconcileChargeUseCase struct {
	txRepo         transaction.Repository
	methodRepo     method.Repository
	gatewayFactory *gateway.Factory
	applier        *OutcomeApplier
	logger         zerolog.Logger
}

// NewReconcileChargeUseCase creates a new ReconcileChargeUseCase.
func NewReconcileChargeUseCase(
	txRepo transaction.Repository,
	methodRepo method.Repository,
	gatewayFactory *gateway.Factory,
	applier *OutcomeApplier,
	logger zerolog.Logger,
) *ReconcileChargeUseCase {
	return &ReconcileChargeUseCase{
		txRepo:         txRepo,
		methodRepo:     methodRepo,
		gatewayFactory: gatewayFactory,
		applier:        applier,
		logger:         logger,
	}
}

// Execute attempts to resolve one transaction. It returns true when the
// transaction is terminal afterwards. An ambiguous gateway answer returns
// the gateway error so the caller can schedule another attempt; the
// transaction is never failed on ambiguity.
func (uc *ReconcileChargeUseCase) Execute(ctx context.Context, transactionID uuid.UUID, gatewayName string) (bool, error) {
	t, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("load transaction: %w", err)
	}

	if t.IsTerminal() {
		return true, nil
	}

	m, err := uc.methodRepo.GetByID(ctx, t.PaymentMethodID)
	if err != nil {
		return false, fmt.Errorf("load payment method: %w", err)
	}

	gw, breaker, err := uc.gatewayFactory.Get(gatewayName)
	if err != nil {
		return false, err
	}

	result, err := breaker.Execute(func() (*gateway.ChargeResult, error) {
		return gw.Charge(ctx, gateway.ChargeRequest{
			AmountMinor:    t.Amount.MinorUnits,
			Currency:       t.Amount.Currency,
			MethodToken:    m.Token,
			IdempotencyKey: t.ChargeKey,
		})
	})
	if err != nil {
		uc.logger.Warn().
			Err(err).
			Str("transaction_id", t.ID.String()).
			Msg("reconcile charge still ambiguous")
		return false, err
	}

	txn, resolution, err := uc.applier.Apply(ctx, t.ID, result, nil)
	if err != nil {
		return false, err
	}

	uc.logger.Info().
		Str("transaction_id", txn.ID.String()).
		Str("status", string(txn.Status)).
		Str("resolution", string(resolution)).
		Msg("transaction reconciled")
	return true, nil
}
