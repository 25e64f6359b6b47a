package testutil

import (
	"time"

	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

func NewTestMethod(ownerID uuid.UUID, isDefault bool) *method.PaymentMethod {
	now := time.Now()
	return &method.PaymentMethod{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      method.TypeCard,
		Brand:     "visa",
		LastFour:  "4242",
		Token:     "stripe_tok_" + uuid.New().String()[:8],
		IsDefault: isDefault,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewTestTransaction(ownerID, methodID uuid.UUID, amountMinor int64) *transaction.Transaction {
	now := time.Now()
	id := uuid.New()
	return &transaction.Transaction{
		ID:              id,
		OwnerID:         ownerID,
		Amount:          transaction.Amount{MinorUnits: amountMinor, Currency: "USD"},
		Status:          transaction.StatusPending,
		PaymentMethodID: methodID,
		ChargeKey:       transaction.DeriveChargeKey(id),
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func NewProcessingTransaction(ownerID, methodID uuid.UUID, amountMinor int64) *transaction.Transaction {
	t := NewTestTransaction(ownerID, methodID, amountMinor)
	t.Status = transaction.StatusProcessing
	return t
}
