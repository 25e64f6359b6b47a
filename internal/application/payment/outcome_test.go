package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/paycore/internal/application/payment"
	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/gateway"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/cassiomorais/paycore/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type applierDeps struct {
	txRepo     *testutil.MockTransactionRepository
	outboxRepo *testutil.MockOutboxRepository
	metrics    *observability.Metrics
	applier    *payment.OutcomeApplier
}

func newApplierDeps() *applierDeps {
	txRepo := testutil.NewMockTransactionRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	metrics := observability.NewMetrics("paycore_test", prometheus.NewRegistry())
	applier := payment.NewOutcomeApplier(txRepo, outboxRepo, &testutil.MockTxManager{}, metrics, zerolog.Nop())
	return &applierDeps{txRepo: txRepo, outboxRepo: outboxRepo, metrics: metrics, applier: applier}
}

func TestApply_Success(t *testing.T) {
	deps := newApplierDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	got, resolution, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:    gateway.ChargeSucceeded,
		Reference: "stripe_ch_1",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resolution != payment.ResolutionApplied {
		t.Errorf("expected applied, got %s", resolution)
	}
	if got.Status != transaction.StatusSuccessful {
		t.Errorf("expected successful, got %s", got.Status)
	}

	entries := deps.outboxRepo.Entries()
	if len(entries) != 1 || entries[0].Kind != outbox.KindPaymentProcessed {
		t.Fatalf("expected one processed event, got %d entries", len(entries))
	}
}

func TestApply_PromotesPending(t *testing.T) {
	// The creator crashed before the processing transition; the applier
	// takes the record through processing itself.
	deps := newApplierDeps()
	txn := testutil.NewTestTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	got, resolution, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:        gateway.ChargeDeclined,
		DeclineReason: "card_declined",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolution != payment.ResolutionApplied {
		t.Errorf("expected applied, got %s", resolution)
	}
	if got.Status != transaction.StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
}

func TestApply_AlreadyResolvedAgreement(t *testing.T) {
	deps := newApplierDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txn.MarkSuccessful("stripe_ch_1")
	deps.txRepo.Create(context.Background(), txn)

	got, resolution, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:    gateway.ChargeSucceeded,
		Reference: "stripe_ch_1",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolution != payment.ResolutionAlreadyResolved {
		t.Errorf("expected already resolved, got %s", resolution)
	}
	if got.Status != transaction.StatusSuccessful {
		t.Errorf("stored state changed: %s", got.Status)
	}
	if len(deps.outboxRepo.Entries()) != 0 {
		t.Error("no new event may be staged for an already resolved transaction")
	}
}

func TestApply_MismatchKeepsStoredState(t *testing.T) {
	deps := newApplierDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txn.MarkFailed("card_declined")
	deps.txRepo.Create(context.Background(), txn)

	got, resolution, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:    gateway.ChargeSucceeded,
		Reference: "stripe_ch_9",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolution != payment.ResolutionMismatch {
		t.Errorf("expected mismatch, got %s", resolution)
	}
	if got.Status != transaction.StatusFailed {
		t.Errorf("stored terminal state must win, got %s", got.Status)
	}
	// The mismatch counter fires from the applier itself, so every
	// resolver path reports the disagreement, not only the webhook one.
	if got := promtestutil.ToFloat64(deps.metrics.OutcomeMismatches); got != 1 {
		t.Errorf("expected 1 outcome mismatch recorded, got %v", got)
	}
}

func TestApply_RetriesOnVersionConflict(t *testing.T) {
	deps := newApplierDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	conflicts := 1
	deps.txRepo.UpdateFunc = func(ctx context.Context, u *transaction.Transaction) error {
		if conflicts > 0 {
			conflicts--
			return domainErrors.ErrVersionConflict
		}
		deps.txRepo.UpdateFunc = nil
		return deps.txRepo.Update(ctx, u)
	}

	_, resolution, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:    gateway.ChargeSucceeded,
		Reference: "stripe_ch_1",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if resolution != payment.ResolutionApplied {
		t.Errorf("expected applied, got %s", resolution)
	}
}

func TestApply_InTxHookFailureAborts(t *testing.T) {
	deps := newApplierDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	boom := errors.New("hook failed")
	_, _, err := deps.applier.Apply(context.Background(), txn.ID, &gateway.ChargeResult{
		Status:    gateway.ChargeSucceeded,
		Reference: "stripe_ch_1",
	}, func(ctx context.Context) error { return boom })

	if !errors.Is(err, boom) {
		t.Fatalf("expected hook failure to surface, got %v", err)
	}
}

func TestApply_UnknownTransaction(t *testing.T) {
	deps := newApplierDeps()

	_, _, err := deps.applier.Apply(context.Background(), uuid.New(), &gateway.ChargeResult{
		Status: gateway.ChargeSucceeded,
	}, nil)
	if !errors.Is(err, domainErrors.ErrTransactionNotFound) {
		t.Errorf("expected ErrTransactionNotFound, got %v", err)
	}
}
