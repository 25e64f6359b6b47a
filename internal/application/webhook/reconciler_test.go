package webhook_test

import (
	"context"
	"testing"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/application/webhook"
	"github.com/cassiomorais/paycore/internal/domain/idempotency"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/cassiomorais/paycore/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type reconcilerDeps struct {
	txRepo     *testutil.MockTransactionRepository
	idemRepo   *testutil.MockIdempotencyRepository
	outboxRepo *testutil.MockOutboxRepository
	reconciler *webhook.Reconciler
}

func newReconcilerDeps() *reconcilerDeps {
	txRepo := testutil.NewMockTransactionRepository()
	idemRepo := testutil.NewMockIdempotencyRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	metrics := observability.NewMetrics("paycore_test", prometheus.NewRegistry())
	applier := appPayment.NewOutcomeApplier(txRepo, outboxRepo, &testutil.MockTxManager{}, metrics, zerolog.Nop())
	return &reconcilerDeps{
		txRepo:     txRepo,
		idemRepo:   idemRepo,
		outboxRepo: outboxRepo,
		reconciler: webhook.NewReconciler(txRepo, idemRepo, applier, metrics, zerolog.Nop()),
	}
}

func TestHandle_ConvergesProcessingTransaction(t *testing.T) {
	deps := newReconcilerDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	result, err := deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		ChargeKey:  txn.ChargeKey,
		Reference:  "stripe_ch_1",
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != webhook.ResultApplied {
		t.Errorf("expected applied, got %s", result)
	}

	stored, _ := deps.txRepo.GetByID(context.Background(), txn.ID)
	if stored.Status != transaction.StatusSuccessful {
		t.Errorf("expected successful, got %s", stored.Status)
	}
	if stored.ExternalRef == nil || *stored.ExternalRef != "stripe_ch_1" {
		t.Error("expected the callback reference to be stored")
	}

	rec, _ := deps.idemRepo.Get(context.Background(), idempotency.KindWebhook, "cb_1")
	if rec == nil {
		t.Error("expected the callback id to be recorded")
	}
}

func TestHandle_DuplicateCallbackIsNoOp(t *testing.T) {
	deps := newReconcilerDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	n := webhook.Notification{
		CallbackID:  "cb_1",
		ChargeKey:   txn.ChargeKey,
		Succeeded:   false,
		ErrorReason: "card_declined",
	}
	if _, err := deps.reconciler.Handle(context.Background(), n); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	eventsAfterFirst := len(deps.outboxRepo.Entries())

	result, err := deps.reconciler.Handle(context.Background(), n)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result != webhook.ResultDuplicate {
		t.Errorf("expected duplicate, got %s", result)
	}
	if len(deps.outboxRepo.Entries()) != eventsAfterFirst {
		t.Error("a duplicate delivery must not stage new events")
	}
}

func TestHandle_ReferenceLookupFirst(t *testing.T) {
	deps := newReconcilerDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txn.MarkSuccessful("stripe_ch_1")
	deps.txRepo.Create(context.Background(), txn)

	result, err := deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		Reference:  "stripe_ch_1",
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != webhook.ResultAlreadyResolved {
		t.Errorf("expected already resolved, got %s", result)
	}
}

func TestHandle_ChargeKeyFallback(t *testing.T) {
	// The synchronous charge response was lost, so no reference was ever
	// stored; the callback still matches through the derived charge key.
	deps := newReconcilerDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	deps.txRepo.Create(context.Background(), txn)

	result, err := deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		Reference:  "stripe_ch_unknown",
		ChargeKey:  txn.ChargeKey,
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != webhook.ResultApplied {
		t.Errorf("expected applied via charge key fallback, got %s", result)
	}
}

func TestHandle_MismatchKeepsStoredOutcome(t *testing.T) {
	deps := newReconcilerDeps()
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txn.MarkFailed("card_declined")
	deps.txRepo.Create(context.Background(), txn)

	result, err := deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		ChargeKey:  txn.ChargeKey,
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("mismatch must still acknowledge: %v", err)
	}
	if result != webhook.ResultMismatch {
		t.Errorf("expected mismatch, got %s", result)
	}

	stored, _ := deps.txRepo.GetByID(context.Background(), txn.ID)
	if stored.Status != transaction.StatusFailed {
		t.Errorf("stored terminal state must win, got %s", stored.Status)
	}
	rec, _ := deps.idemRepo.Get(context.Background(), idempotency.KindWebhook, "cb_1")
	if rec == nil {
		t.Error("mismatched callback must still be marked processed")
	}
}

func TestHandle_Unmatched(t *testing.T) {
	deps := newReconcilerDeps()

	result, err := deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		Reference:  "stripe_ch_ghost",
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != webhook.ResultUnmatched {
		t.Errorf("expected unmatched, got %s", result)
	}

	// Redelivery of the unmatched callback is a cheap duplicate.
	result, err = deps.reconciler.Handle(context.Background(), webhook.Notification{
		CallbackID: "cb_1",
		Reference:  "stripe_ch_ghost",
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != webhook.ResultDuplicate {
		t.Errorf("expected duplicate, got %s", result)
	}
}

func TestHandle_MissingCallbackID(t *testing.T) {
	deps := newReconcilerDeps()

	if _, err := deps.reconciler.Handle(context.Background(), webhook.Notification{}); err == nil {
		t.Fatal("expected validation error for missing callback id")
	}
}
