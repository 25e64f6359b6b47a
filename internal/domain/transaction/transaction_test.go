package transaction_test

import (
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

func validAmount() transaction.Amount {
	return transaction.Amount{MinorUnits: 10_50, Currency: "USD"}
}

func TestNew(t *testing.T) {
	ownerID := uuid.New()
	methodID := uuid.New()

	txn, err := transaction.New(ownerID, validAmount(), methodID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.Status != transaction.StatusPending {
		t.Errorf("expected pending status, got %s", txn.Status)
	}
	if txn.ChargeKey == "" {
		t.Error("expected charge key to be derived at creation")
	}
	if txn.ChargeKey != transaction.DeriveChargeKey(txn.ID) {
		t.Error("charge key does not match derivation from transaction id")
	}
	if txn.Version != 0 {
		t.Errorf("expected version 0, got %d", txn.Version)
	}
}

func TestNew_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount transaction.Amount
	}{
		{"zero amount", transaction.Amount{MinorUnits: 0, Currency: "USD"}},
		{"negative amount", transaction.Amount{MinorUnits: -100, Currency: "USD"}},
		{"bad currency length", transaction.Amount{MinorUnits: 100, Currency: "USDT"}},
		{"lowercase currency", transaction.Amount{MinorUnits: 100, Currency: "usd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := transaction.New(uuid.New(), tt.amount, uuid.New()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDeriveChargeKey_Deterministic(t *testing.T) {
	id := uuid.New()
	k1 := transaction.DeriveChargeKey(id)
	k2 := transaction.DeriveChargeKey(id)
	if k1 != k2 {
		t.Error("charge key must be deterministic for the same transaction id")
	}
	if k1 == transaction.DeriveChargeKey(uuid.New()) {
		t.Error("different transactions must derive different charge keys")
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestTransitions(t *testing.T) {
	txn, _ := transaction.New(uuid.New(), validAmount(), uuid.New())

	// Pending can only go to processing.
	if err := txn.MarkSuccessful("ref"); err == nil {
		t.Error("pending transaction must not jump to successful")
	}
	if err := txn.MarkProcessing(); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}

	if err := txn.MarkSuccessful("stripe_ch_1"); err != nil {
		t.Fatalf("processing -> successful: %v", err)
	}
	if txn.ExternalRef == nil || *txn.ExternalRef != "stripe_ch_1" {
		t.Error("expected external reference to be stored")
	}
	if !txn.IsTerminal() || !txn.Succeeded() {
		t.Error("successful transaction must be terminal and succeeded")
	}
}

func TestTerminalIsAbsorbing(t *testing.T) {
	txn, _ := transaction.New(uuid.New(), validAmount(), uuid.New())
	txn.MarkProcessing()
	txn.MarkFailed("card_declined")

	if err := txn.MarkSuccessful("ref"); !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if err := txn.MarkProcessing(); !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if txn.ErrorReason == nil || *txn.ErrorReason != "card_declined" {
		t.Error("expected failure reason to survive rejected transitions")
	}
}

func TestMarkFailed_KeepsReason(t *testing.T) {
	txn, _ := transaction.New(uuid.New(), validAmount(), uuid.New())
	txn.MarkProcessing()
	if err := txn.MarkFailed("insufficient_funds"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.Succeeded() {
		t.Error("failed transaction must not report success")
	}
}
