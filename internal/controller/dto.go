package controller

import (
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// Amounts cross the API as decimal strings ("10.50") and are converted to
// minor units exactly; floats never touch money.

// InitiatePaymentRequest holds the input for initiating a payment.
type InitiatePaymentRequest struct {
	Amount          string  `json:"amount" validate:"required"`
	Currency        string  `json:"currency" validate:"required,len=3"`
	PaymentMethodID *string `json:"payment_method_id,omitempty"`
	Gateway         string  `json:"gateway,omitempty"`
}

// AddMethodRequest holds the input for vaulting a payment method.
type AddMethodRequest struct {
	Type            string `json:"type" validate:"required,oneof=card bank wallet"`
	InstrumentProof string `json:"instrument_proof" validate:"required"`
	MakeDefault     bool   `json:"make_default"`
	Gateway         string `json:"gateway,omitempty"`
}

// --- Response DTOs ---

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	PaymentMethodID string     `json:"payment_method_id"`
	ExternalRef     *string    `json:"external_ref,omitempty"`
	ErrorReason     *string    `json:"error_reason,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MethodResponse represents a payment method in API responses. The gateway
// token is internal and never serialized.
type MethodResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Brand     string    `json:"brand,omitempty"`
	LastFour  string    `json:"last_four,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromTransaction converts a domain transaction to API response.
func FromTransaction(t *transaction.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:              t.ID.String(),
		OwnerID:         t.OwnerID.String(),
		Amount:          minorToDecimalString(t.Amount.MinorUnits),
		Currency:        t.Amount.Currency,
		Status:          string(t.Status),
		PaymentMethodID: t.PaymentMethodID.String(),
		ExternalRef:     t.ExternalRef,
		ErrorReason:     t.ErrorReason,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// FromMethod converts a domain payment method to API response.
func FromMethod(m *method.PaymentMethod) *MethodResponse {
	return &MethodResponse{
		ID:        m.ID.String(),
		Type:      string(m.Type),
		Brand:     m.Brand,
		LastFour:  m.LastFour,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt,
	}
}

// decimalToMinor converts a decimal amount string to minor units. Amounts
// with more than two fractional digits are rejected rather than rounded.
func decimalToMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domainErrors.NewValidationError("amount", "must be a decimal number")
	}
	if d.Exponent() < -2 {
		return 0, domainErrors.NewValidationError("amount", "at most two decimal places")
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, domainErrors.NewValidationError("amount", "at most two decimal places")
	}
	return minor.IntPart(), nil
}

// minorToDecimalString renders minor units as a two-decimal string.
func minorToDecimalString(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// parseUUID parses a UUID string, returning nil if invalid.
func parseUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
