package gateway

import (
	"context"

	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/google/uuid"
)

// ChargeStatus is the normalized, definitive outcome of a charge. Ambiguous
// outcomes (timeout, unavailable) are not statuses: they surface as
// errors.ErrGatewayTimeout / errors.ErrGatewayUnavailable because the remote
// state is unknown.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeDeclined  ChargeStatus = "declined"
)

// ChargeResult holds the normalized result of a gateway charge.
type ChargeResult struct {
	Status        ChargeStatus
	Reference     string // gateway-assigned reference, set when succeeded
	DeclineReason string // set when declined
}

// ChargeRequest contains the data needed to charge a payment instrument.
// IdempotencyKey is forwarded on the gateway protocol so a resubmission at
// the transport layer cannot produce a second charge.
type ChargeRequest struct {
	AmountMinor    int64
	Currency       string
	MethodToken    string
	IdempotencyKey string
}

// TokenizeRequest contains the data needed to tokenize a raw instrument.
type TokenizeRequest struct {
	OwnerID         uuid.UUID
	Type            method.Type
	InstrumentProof string // one-time proof from the client-side SDK
}

// TokenizeResult holds the gateway token and masked display data.
type TokenizeResult struct {
	Token    string
	Brand    string
	LastFour string
}

// Gateway is the capability abstraction over an external payment processor.
// Implementations normalize processor-specific status vocabulary into the
// three-way outcome above; callers never see gateway wire formats.
type Gateway interface {
	// Name returns the gateway name.
	Name() string
	// Charge creates a charge against a tokenized instrument.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Tokenize exchanges a raw instrument proof for an opaque token.
	Tokenize(ctx context.Context, req TokenizeRequest) (*TokenizeResult, error)
}
