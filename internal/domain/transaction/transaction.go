package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the transaction status in the state machine
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// Transaction represents a single payment attempt against the gateway.
type Transaction struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Amount          Amount
	Status          Status
	PaymentMethodID uuid.UUID
	// ChargeKey is the idempotency key forwarded to the gateway, derived
	// from the transaction id so a retried charge cannot double-bill.
	ChargeKey   string
	ExternalRef *string
	ErrorReason *string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	MinorUnits int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.MinorUnits / 100
	frac := a.MinorUnits % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	return validateAmount(a)
}

// New creates a pending transaction for the given owner and method.
func New(ownerID uuid.UUID, amount Amount, paymentMethodID uuid.UUID) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if ownerID == uuid.Nil {
		return nil, errors.NewValidationError("owner_id", "cannot be empty")
	}
	if paymentMethodID == uuid.Nil {
		return nil, errors.NewValidationError("payment_method_id", "cannot be empty")
	}

	id := uuid.New()
	now := time.Now()
	return &Transaction{
		ID:              id,
		OwnerID:         ownerID,
		Amount:          amount,
		Status:          StatusPending,
		PaymentMethodID: paymentMethodID,
		ChargeKey:       DeriveChargeKey(id),
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// DeriveChargeKey derives the gateway idempotency key from the transaction id.
// The derivation is deterministic so a crashed-and-retried charge reuses the
// same key.
func DeriveChargeKey(id uuid.UUID) string {
	sum := sha256.Sum256(id[:])
	return hex.EncodeToString(sum[:])
}

// CanTransitionTo checks if the transaction can transition to the given status
func (t *Transaction) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusSuccessful, StatusFailed},
		StatusSuccessful: {}, // Terminal state
		StatusFailed:     {}, // Terminal state
	}

	allowed, exists := transitions[t.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the transaction to a new status
func (t *Transaction) TransitionTo(newStatus Status) error {
	if !t.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing transitions the transaction to processing status
func (t *Transaction) MarkProcessing() error {
	return t.TransitionTo(StatusProcessing)
}

// MarkSuccessful transitions the transaction to successful status and records
// the gateway reference.
func (t *Transaction) MarkSuccessful(externalRef string) error {
	if err := t.TransitionTo(StatusSuccessful); err != nil {
		return err
	}
	t.ExternalRef = &externalRef
	return nil
}

// MarkFailed transitions the transaction to failed status with a reason.
func (t *Transaction) MarkFailed(reason string) error {
	if err := t.TransitionTo(StatusFailed); err != nil {
		return err
	}
	t.ErrorReason = &reason
	return nil
}

// IsTerminal checks if the transaction is in a terminal state
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSuccessful || t.Status == StatusFailed
}

// Succeeded reports the stored outcome of a terminal transaction.
func (t *Transaction) Succeeded() bool {
	return t.Status == StatusSuccessful
}

func validateAmount(amount Amount) error {
	if amount.MinorUnits <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if amount.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	// Simple currency validation (3-letter code)
	if len(amount.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	for _, c := range amount.Currency {
		if c < 'A' || c > 'Z' {
			return errors.NewValidationError("currency", "must be uppercase letters")
		}
	}
	return nil
}
