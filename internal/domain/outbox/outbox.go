package outbox

import (
	"time"

	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

// Event kinds carried by the outbox. The payload schemas are part of the
// wire contract consumed by downstream services.
const (
	KindPaymentInitiated = "payment.initiated"
	KindPaymentProcessed = "payment.processed"
)

// DispatchStatus of an outbox entry. There is no terminal failure status:
// delivery is at-least-once and an undeliverable entry stays pending and
// visible for alerting.
type DispatchStatus string

const (
	StatusPending    DispatchStatus = "pending"
	StatusDispatched DispatchStatus = "dispatched"
)

// Entry is a staged domain event. Its ID is the event id, distinct from any
// business id; CorrelationID carries the transaction id.
type Entry struct {
	ID            uuid.UUID
	Kind          string
	CorrelationID uuid.UUID
	Payload       map[string]any
	Status        DispatchStatus
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

// NewEntry stages a domain event for the given correlation id.
func NewEntry(kind string, correlationID uuid.UUID, payload map[string]any) *Entry {
	now := time.Now()
	return &Entry{
		ID:            uuid.New(),
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       payload,
		Status:        StatusPending,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// NewPaymentInitiated stages the payment.initiated event for a transaction.
func NewPaymentInitiated(t *transaction.Transaction) *Entry {
	return NewEntry(KindPaymentInitiated, t.ID, map[string]any{
		"transaction_id": t.ID.String(),
		"owner_id":       t.OwnerID.String(),
		"amount_minor":   t.Amount.MinorUnits,
		"currency":       t.Amount.Currency,
	})
}

// NewPaymentProcessed stages the payment.processed event for a terminal
// transaction, snapshotting the outcome fields.
func NewPaymentProcessed(t *transaction.Transaction) *Entry {
	payload := map[string]any{
		"transaction_id": t.ID.String(),
		"owner_id":       t.OwnerID.String(),
		"amount_minor":   t.Amount.MinorUnits,
		"currency":       t.Amount.Currency,
		"succeeded":      t.Succeeded(),
	}
	if t.ExternalRef != nil {
		payload["external_reference"] = *t.ExternalRef
	}
	if t.ErrorReason != nil {
		payload["error_reason"] = *t.ErrorReason
	}
	return NewEntry(KindPaymentProcessed, t.ID, payload)
}

// Envelope is the wire shape published to the message channel.
type Envelope struct {
	EventID       string         `json:"event_id"`
	Kind          string         `json:"kind"`
	CorrelationID string         `json:"correlation_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
}

// Envelope returns the wire representation of the entry.
func (e *Entry) Envelope() Envelope {
	return Envelope{
		EventID:       e.ID.String(),
		Kind:          e.Kind,
		CorrelationID: e.CorrelationID.String(),
		OccurredAt:    e.CreatedAt,
		Payload:       e.Payload,
	}
}
